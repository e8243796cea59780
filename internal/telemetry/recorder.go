// Package telemetry accumulates cumulative and per-session counters for
// the consumer's inference pipeline.
package telemetry

import (
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// Recorder tracks consumer-level telemetry across every session it hosts.
type Recorder struct {
	log *slog.Logger

	totalSessions         atomic.Uint64
	activeSessions        atomic.Int64
	totalChunks           atomic.Uint64
	totalBytes            atomic.Uint64
	totalTranscripts      atomic.Uint64
	totalFinalTranscripts atomic.Uint64
	totalFlushes          atomic.Uint64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalSessions         uint64
	ActiveSessions        int64
	TotalChunks           uint64
	TotalBytes            uint64
	TotalTranscripts      uint64
	TotalFinalTranscripts uint64
	TotalFlushes          uint64
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log: logger.With("component", "telemetry.Recorder"),
	}
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalSessions:         r.totalSessions.Load(),
		ActiveSessions:        r.activeSessions.Load(),
		TotalChunks:           r.totalChunks.Load(),
		TotalBytes:            r.totalBytes.Load(),
		TotalTranscripts:      r.totalTranscripts.Load(),
		TotalFinalTranscripts: r.totalFinalTranscripts.Load(),
		TotalFlushes:          r.totalFlushes.Load(),
	}
}

// SessionMetrics accumulates statistics for a single transcription
// session, from the first submitted chunk through its final transcript.
type SessionMetrics struct {
	recorder *Recorder
	log      *slog.Logger

	sessionID string
	metadata  map[string]string

	started          time.Time
	chunks           int
	bytes            int
	transcripts      int
	finalTranscripts int
	flushes          int
	lastChunkID      uint64
	closed           atomic.Bool
}

// StartSession initialises a SessionMetrics instance bound to the
// recorder and tagged with metadata describing the model serving it.
func (r *Recorder) StartSession(sessionID string, metadata map[string]string) *SessionMetrics {
	if r == nil {
		return nil
	}

	clonedMetadata := cloneMetadata(metadata)

	sessionLogger := r.log.With("session_id", sessionID)
	if len(clonedMetadata) > 0 {
		sessionLogger = sessionLogger.With("metadata", clonedMetadata)
	}

	r.totalSessions.Add(1)
	r.activeSessions.Add(1)

	return &SessionMetrics{
		recorder: r,
		log:      sessionLogger,

		sessionID: sessionID,
		metadata:  clonedMetadata,

		started: time.Now(),
	}
}

// RecordChunk updates counters for an incoming audio chunk.
func (s *SessionMetrics) RecordChunk(chunkID uint64, size int, isLast bool) {
	if s == nil || size <= 0 {
		return
	}
	s.chunks++
	s.bytes += size
	s.lastChunkID = chunkID
	s.recorder.totalChunks.Add(1)
	s.recorder.totalBytes.Add(uint64(size))

	s.log.Debug("chunk received",
		"chunk_id", chunkID,
		"bytes", size,
		"is_last_chunk", isLast,
	)
}

// RecordTranscript stores statistics for an emitted transcript.
func (s *SessionMetrics) RecordTranscript(chunkID uint64, text string, final bool) {
	if s == nil {
		return
	}
	s.transcripts++
	if final {
		s.finalTranscripts++
		s.recorder.totalFinalTranscripts.Add(1)
	}
	s.recorder.totalTranscripts.Add(1)

	s.log.Debug("transcript emitted",
		"chunk_id", chunkID,
		"final", final,
		"chars", len(text),
		"runes", utf8.RuneCountInString(text),
	)
}

// RecordFlush increments counters for a session flush event.
func (s *SessionMetrics) RecordFlush() {
	if s == nil {
		return
	}
	s.flushes++
	s.recorder.totalFlushes.Add(1)
}

// Finish logs a summary and updates active session counters. Safe to call
// more than once; only the first call has effect.
func (s *SessionMetrics) Finish(err error) {
	if s == nil {
		return
	}
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	defer s.recorder.activeSessions.Add(-1)

	duration := time.Since(s.started)
	args := []any{
		"duration_ms", duration.Milliseconds(),
		"chunks", s.chunks,
		"bytes", s.bytes,
		"transcripts", s.transcripts,
		"final_transcripts", s.finalTranscripts,
		"flushes", s.flushes,
	}

	if err != nil {
		s.log.Error("session completed with error", append(args, "error", err)...)
		return
	}

	s.log.Info("session completed", args...)
}

func cloneMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
