package codec

import (
	"testing"
	"time"
)

func TestControlSignalRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	want := ControlSignal{Signal: SignalStart, SessionID: "S1", Timestamp: now}

	data, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got ControlSignal
	if err := Decode(data, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
	}
}

func TestControlSignalRejectsUnknownSignal(t *testing.T) {
	sig := ControlSignal{Signal: "explode", SessionID: "S1", Timestamp: time.Now()}
	if err := sig.Validate(); err == nil {
		t.Fatal("expected validation error for unknown signal")
	}
}

func TestControlSignalPingAllowsEmptySession(t *testing.T) {
	sig := ControlSignal{Signal: SignalPing, Timestamp: time.Now()}
	if err := sig.Validate(); err != nil {
		t.Fatalf("ping should not require a session id: %v", err)
	}
}

func TestSessionIDBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"empty", "", true},
		{"one char", "a", false},
		{"hundred chars", string(make([]byte, 100)), false},
		{"hundred and one chars", string(make([]byte, 101)), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSessionID(tc.id)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for id of length %d", len(tc.id))
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for id of length %d: %v", len(tc.id), err)
			}
		})
	}
}

func validChunk() ChunkMetadata {
	return ChunkMetadata{
		SessionID:       "S1",
		ChunkID:         0,
		SampleRate:      16000,
		Channels:        1,
		Format:          FormatPCM16,
		DurationSeconds: 0.8,
		Timestamp:       time.Now(),
	}
}

func TestChunkMetadataValid(t *testing.T) {
	if err := validChunk().Validate(); err != nil {
		t.Fatalf("expected valid chunk, got %v", err)
	}
}

func TestChunkMetadataRejectsZeroDuration(t *testing.T) {
	m := validChunk()
	m.DurationSeconds = 0
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestChunkMetadataRejectsExcessiveDuration(t *testing.T) {
	m := validChunk()
	m.DurationSeconds = 10.1
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for duration > 10s")
	}
}

func TestChunkMetadataRejectsWrongSampleRate(t *testing.T) {
	m := validChunk()
	m.SampleRate = 44100
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for non-16kHz sample rate")
	}
}

func TestChunkMetadataRejectsWrongChannelCount(t *testing.T) {
	m := validChunk()
	m.Channels = 2
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for non-mono channel count")
	}
}

func TestChunkMetadataRejectsStaleTimestamp(t *testing.T) {
	m := validChunk()
	now := time.Now()
	m.Timestamp = now.Add(-301 * time.Second)
	if err := m.ValidateAt(now); err == nil {
		t.Fatal("expected error for timestamp drift beyond 300s")
	}
}

func TestChunkMetadataAcceptsTimestampWithinDrift(t *testing.T) {
	m := validChunk()
	now := time.Now()
	m.Timestamp = now.Add(-299 * time.Second)
	if err := m.ValidateAt(now); err != nil {
		t.Fatalf("unexpected error within drift bound: %v", err)
	}
}

func TestValidateChunkSizeWithinTolerance(t *testing.T) {
	m := validChunk()
	expected := m.ExpectedPCMBytes()
	if err := ValidateChunkSize(m, expected); err != nil {
		t.Fatalf("exact size should pass: %v", err)
	}
	if err := ValidateChunkSize(m, int(float64(expected)*1.05)); err != nil {
		t.Fatalf("5%% over should pass: %v", err)
	}
	if err := ValidateChunkSize(m, int(float64(expected)*1.5)); err == nil {
		t.Fatal("50%% over should fail")
	}
}

func TestFinalTranscriptRejectsBadConfidence(t *testing.T) {
	bad := 1.5
	f := FinalTranscript{SessionID: "S1", Text: "hi", IsFinal: true, Confidence: &bad}
	if err := f.Validate(); err == nil {
		t.Fatal("expected error for confidence out of range")
	}
}

func TestErrorRecordRejectsUnknownKind(t *testing.T) {
	e := ErrorRecord{ErrorKind: "nope", Description: "x", Recoverable: true, Timestamp: time.Now()}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error for unknown error kind")
	}
}

func TestSettingsDefaultValid(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("default settings should be valid: %v", err)
	}
}

func TestSettingsRejectsChunkSizeOutOfRange(t *testing.T) {
	s := DefaultSettings()
	s.ChunkSizeMS = 10
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for chunk_size_ms below minimum")
	}
	s.ChunkSizeMS = 5000
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for chunk_size_ms above maximum")
	}
}

func TestSettingsRejectsBadLanguageCode(t *testing.T) {
	s := DefaultSettings()
	s.Language = "english"
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for non 2-char language code")
	}
}

func TestFinalTranscriptRoundTrip(t *testing.T) {
	conf := 0.91
	want := FinalTranscript{
		SessionID:        "S1",
		Text:             "hello world",
		IsFinal:          true,
		ProcessingTimeMS: 1234,
		Confidence:       &conf,
		Timestamp:        time.Now().UTC().Truncate(time.Millisecond),
	}
	data, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got FinalTranscript
	if err := Decode(data, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Text != want.Text || *got.Confidence != *want.Confidence || !got.Timestamp.Equal(want.Timestamp) {
		t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
	}
}
