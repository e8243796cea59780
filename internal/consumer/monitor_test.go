package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/voicebridge/sttcoord/internal/codec"
	"github.com/voicebridge/sttcoord/internal/engine"
	"github.com/voicebridge/sttcoord/internal/orchestrator"
	"github.com/voicebridge/sttcoord/internal/rendezvous"
	"github.com/voicebridge/sttcoord/internal/sequencer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *rendezvous.Store {
	t.Helper()
	store, err := rendezvous.Open(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func testMonitor(t *testing.T, store *rendezvous.Store) *Monitor {
	t.Helper()
	orch := orchestrator.New(engine.NewStubEngine(discardLogger(), "base.en"), "base.en", nil, 0, 0, discardLogger())
	seq := sequencer.New(sequencer.DefaultCapacity, discardLogger())
	return New(store, seq, orch, discardLogger())
}

func writeControl(t *testing.T, store *rendezvous.Store, sig codec.ControlSignal) {
	t.Helper()
	data, err := codec.Encode(sig)
	if err != nil {
		t.Fatalf("Encode control signal: %v", err)
	}
	if err := store.WriteAtomic(rendezvous.Control, rendezvous.ControlSignalFile, data); err != nil {
		t.Fatalf("WriteAtomic control signal: %v", err)
	}
}

func writeChunk(t *testing.T, store *rendezvous.Store, sessionID string, chunkID int, isLast bool) {
	t.Helper()
	meta := codec.ChunkMetadata{
		SessionID:       sessionID,
		ChunkID:         chunkID,
		SampleRate:      16000,
		Channels:        1,
		Format:          codec.FormatPCM16,
		DurationSeconds: 0.5,
		Timestamp:       time.Now(),
		IsLastChunk:     isLast,
	}
	pcmName := rendezvous.ChunkPCMName(sessionID, chunkID)
	pcm := make([]byte, meta.ExpectedPCMBytes())
	if err := store.WriteAtomic(rendezvous.Audio, pcmName, pcm); err != nil {
		t.Fatalf("WriteAtomic pcm: %v", err)
	}
	data, err := codec.Encode(codec.ChunkFile{Metadata: meta, PCMFilename: pcmName})
	if err != nil {
		t.Fatalf("Encode chunk metadata: %v", err)
	}
	if err := store.WriteAtomic(rendezvous.Audio, rendezvous.ChunkMetadataName(sessionID, chunkID), data); err != nil {
		t.Fatalf("WriteAtomic chunk metadata: %v", err)
	}
}

func TestMonitorProcessesSessionEndToEnd(t *testing.T) {
	store := testStore(t)
	mon := testMonitor(t, store)
	ctx := context.Background()

	writeControl(t, store, codec.ControlSignal{Signal: codec.SignalStart, SessionID: "S1", Timestamp: time.Now()})
	mon.Tick(ctx)
	if mon.CurrentSession() != "S1" {
		t.Fatalf("expected active session S1, got %q", mon.CurrentSession())
	}

	writeChunk(t, store, "S1", 0, true)
	mon.Tick(ctx)

	if mon.CurrentSession() != "" {
		t.Fatalf("expected session to close after final chunk, got %q", mon.CurrentSession())
	}

	data, err := store.Read(rendezvous.Transcripts, rendezvous.FinalTranscriptFile)
	if err != nil {
		t.Fatalf("expected a final transcript to be written: %v", err)
	}
	var final codec.FinalTranscript
	if err := codec.Decode(data, &final); err != nil {
		t.Fatalf("Decode final transcript: %v", err)
	}
	if final.SessionID != "S1" {
		t.Fatalf("unexpected final transcript session: %+v", final)
	}

	entries, err := store.List(rendezvous.Audio)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected chunk files to be consumed, got %+v", entries)
	}
}

func TestMonitorDropsChunksForForeignSession(t *testing.T) {
	store := testStore(t)
	mon := testMonitor(t, store)
	ctx := context.Background()

	writeControl(t, store, codec.ControlSignal{Signal: codec.SignalStart, SessionID: "S1", Timestamp: time.Now()})
	mon.Tick(ctx)

	writeChunk(t, store, "other-session", 0, false)
	mon.Tick(ctx)

	entries, err := store.List(rendezvous.Audio)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected foreign-session chunk to be discarded, got %+v", entries)
	}
}

func TestMonitorCancelClearsSession(t *testing.T) {
	store := testStore(t)
	mon := testMonitor(t, store)
	ctx := context.Background()

	writeControl(t, store, codec.ControlSignal{Signal: codec.SignalStart, SessionID: "S1", Timestamp: time.Now()})
	mon.Tick(ctx)
	if mon.CurrentSession() != "S1" {
		t.Fatalf("expected session S1 active")
	}

	writeControl(t, store, codec.ControlSignal{Signal: codec.SignalCancel, SessionID: "S1", Timestamp: time.Now().Add(time.Millisecond)})
	mon.Tick(ctx)
	if mon.CurrentSession() != "" {
		t.Fatalf("expected session cleared after cancel, got %q", mon.CurrentSession())
	}
}

func TestMonitorOutOfOrderChunksDeliverInOrder(t *testing.T) {
	store := testStore(t)
	mon := testMonitor(t, store)
	ctx := context.Background()

	writeControl(t, store, codec.ControlSignal{Signal: codec.SignalStart, SessionID: "S1", Timestamp: time.Now()})
	mon.Tick(ctx)

	writeChunk(t, store, "S1", 1, false)
	mon.Tick(ctx)
	if mon.CurrentSession() != "S1" {
		t.Fatal("expected session to remain open while chunk 0 is still missing")
	}

	writeChunk(t, store, "S1", 0, false)
	writeChunk(t, store, "S1", 2, true)
	mon.Tick(ctx)

	if mon.CurrentSession() != "" {
		t.Fatalf("expected session to close after final chunk arrives in order, got %q", mon.CurrentSession())
	}
}

func TestMonitorDisableRefusesNewSessions(t *testing.T) {
	store := testStore(t)
	mon := testMonitor(t, store)
	ctx := context.Background()

	mon.Disable(errors.New("model file not found"))

	writeControl(t, store, codec.ControlSignal{Signal: codec.SignalStart, SessionID: "S1", Timestamp: time.Now()})
	mon.Tick(ctx)

	if mon.CurrentSession() != "" {
		t.Fatalf("expected start to be refused while disabled, got session %q", mon.CurrentSession())
	}

	data, err := store.Read(rendezvous.Control, rendezvous.ErrorFile)
	if err != nil {
		t.Fatalf("expected an error record to be published: %v", err)
	}
	var rec codec.ErrorRecord
	if err := codec.Decode(data, &rec); err != nil {
		t.Fatalf("Decode error record: %v", err)
	}
	if rec.ErrorKind != codec.ErrorModelLoadFailed || rec.Recoverable {
		t.Fatalf("unexpected error record: %+v", rec)
	}
}

func TestMonitorThrottledSkipsChunkProcessing(t *testing.T) {
	store := testStore(t)
	orch := orchestrator.New(engine.NewStubEngine(discardLogger(), "base.en"), "base.en", nil, 0.001, time.Minute, discardLogger())
	seq := sequencer.New(sequencer.DefaultCapacity, discardLogger())
	mon := New(store, seq, orch, discardLogger())
	ctx := context.Background()

	writeControl(t, store, codec.ControlSignal{Signal: codec.SignalStart, SessionID: "S1", Timestamp: time.Now()})
	mon.Tick(ctx)

	writeChunk(t, store, "S1", 0, false)
	mon.Tick(ctx)
	if orch.ThrottledUntil().IsZero() {
		t.Fatal("expected the ceiling breach to set a backoff deadline")
	}

	writeControl(t, store, codec.ControlSignal{Signal: codec.SignalStart, SessionID: "S1", Timestamp: time.Now().Add(time.Millisecond)})
	mon.Tick(ctx)
	if mon.CurrentSession() != "S1" {
		t.Fatalf("expected the restarted session to be accepted, got %q", mon.CurrentSession())
	}

	writeChunk(t, store, "S1", 1, false)
	mon.Tick(ctx)

	entries, err := store.List(rendezvous.Audio)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected the chunk to remain unconsumed while throttled")
	}
}
