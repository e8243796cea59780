package telemetry

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestRecorderSnapshot(t *testing.T) {
	recorder := NewRecorder(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if snapshot := recorder.Snapshot(); snapshot.TotalSessions != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snapshot)
	}

	stream := recorder.StartSession("session-1", map[string]string{"source": "test"})
	if stream == nil {
		t.Fatalf("expected stream metrics")
	}

	stream.RecordChunk(1, 160, false)
	stream.RecordTranscript(1, "hello", false)
	stream.RecordChunk(2, 80, true)
	stream.RecordTranscript(2, "hello world", true)
	stream.RecordFlush()

	time.Sleep(5 * time.Millisecond)
	stream.Finish(nil)

	snapshot := recorder.Snapshot()
	if snapshot.TotalSessions != 1 {
		t.Fatalf("unexpected TotalSessions: %d", snapshot.TotalSessions)
	}
	if snapshot.TotalChunks != 2 {
		t.Fatalf("unexpected TotalChunks: %d", snapshot.TotalChunks)
	}
	if snapshot.TotalBytes != 240 {
		t.Fatalf("unexpected TotalBytes: %d", snapshot.TotalBytes)
	}
	if snapshot.TotalTranscripts != 2 {
		t.Fatalf("unexpected TotalTranscripts: %d", snapshot.TotalTranscripts)
	}
	if snapshot.TotalFinalTranscripts != 1 {
		t.Fatalf("unexpected TotalFinalTranscripts: %d", snapshot.TotalFinalTranscripts)
	}
	if snapshot.TotalFlushes != 1 {
		t.Fatalf("unexpected TotalFlushes: %d", snapshot.TotalFlushes)
	}
	if snapshot.ActiveSessions != 0 {
		t.Fatalf("expected zero active sessions, got %d", snapshot.ActiveSessions)
	}

	stream.Finish(nil)
	if snapshot2 := recorder.Snapshot(); snapshot2.TotalSessions != 1 {
		t.Fatalf("snapshot changed unexpectedly: %+v", snapshot2)
	}
}

func TestStreamFinishWithError(t *testing.T) {
	recorder := NewRecorder(slog.New(slog.NewTextHandler(io.Discard, nil)))
	stream := recorder.StartSession("s", nil)
	stream.RecordChunk(1, 10, false)
	stream.RecordFlush()
	stream.Finish(io.EOF)

	snapshot := recorder.Snapshot()
	if snapshot.TotalSessions != 1 {
		t.Fatalf("unexpected sessions: %d", snapshot.TotalSessions)
	}
	if snapshot.ActiveSessions != 0 {
		t.Fatalf("expected zero active sessions, got %d", snapshot.ActiveSessions)
	}
	if snapshot.TotalFlushes != 1 {
		t.Fatalf("unexpected flushes: %d", snapshot.TotalFlushes)
	}
}
