// Package orchestrator owns the single active transcription session, the
// engine.Engine handle backing it, and the translation of raw engine
// results into the canonical transcript records the Consumer Monitor
// publishes to the rendezvous directory (spec §4.6).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voicebridge/sttcoord/internal/buildinfo"
	"github.com/voicebridge/sttcoord/internal/codec"
	"github.com/voicebridge/sttcoord/internal/engine"
	"github.com/voicebridge/sttcoord/internal/status"
	"github.com/voicebridge/sttcoord/internal/telemetry"
)

// ErrNoActiveSession is returned when a chunk or flush arrives with no
// session open.
var ErrNoActiveSession = fmt.Errorf("orchestrator: no active session")

// ErrSessionMismatch is returned when a chunk's session id does not match
// the currently active session.
var ErrSessionMismatch = fmt.Errorf("orchestrator: chunk session does not match active session")

// ErrMemoryPressure is returned when the resident set size ceiling is
// crossed before an infer call; the session it interrupts is
// non-recoverable (spec §5's NonRecoverableKinds).
var ErrMemoryPressure = fmt.Errorf("orchestrator: memory pressure ceiling exceeded")

// Orchestrator serialises every engine call behind a mutex: exactly one
// session is ever in flight, matching the single-active-session invariant
// from spec §5.
type Orchestrator struct {
	log     *slog.Logger
	engine  engine.Engine
	metrics *telemetry.Recorder

	mu           sync.Mutex
	sessionID    string
	language     string
	punctuation  codec.PunctuationMode
	session      *telemetry.SessionMetrics
	modelVariant string
	backoffUntil time.Time

	maxRSSMB float64
	backoff  time.Duration
}

// New returns an Orchestrator bound to eng. modelVariant tags the
// telemetry metadata of each session and is reported by ModelVariant.
// maxRSSMB is the resident-set-size ceiling checked
// before each infer call (spec §"SUPPLEMENTED FEATURES"); <= 0 disables
// the check. backoff is how long ProcessChunk's caller should pause
// after a ceiling breach, reported via ThrottledUntil.
func New(eng engine.Engine, modelVariant string, metrics *telemetry.Recorder, maxRSSMB float64, backoff time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = telemetry.NewRecorder(logger)
	}
	return &Orchestrator{
		log:          logger.With("component", "orchestrator.Orchestrator"),
		engine:       eng,
		metrics:      metrics,
		modelVariant: modelVariant,
		maxRSSMB:     maxRSSMB,
		backoff:      backoff,
	}
}

// ModelVariant reports the model variant backing this orchestrator.
func (o *Orchestrator) ModelVariant() string { return o.modelVariant }

// ActiveSession returns the current session id, or "" if idle.
func (o *Orchestrator) ActiveSession() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// ThrottledUntil reports the deadline until which the Consumer Monitor
// should withhold new chunks after a memory-pressure breach. Zero means
// no backoff is in effect.
func (o *Orchestrator) ThrottledUntil() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.backoffUntil
}

// BeginSession opens a new session, discarding any previous one that was
// never cleanly ended (the Consumer Monitor does this on a `start` signal,
// per spec §4.4).
func (o *Orchestrator) BeginSession(sessionID, language string, punctuation codec.PunctuationMode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessionID != "" {
		o.log.Warn("beginning new session while previous session was still open",
			"previous_session_id", o.sessionID, "new_session_id", sessionID)
		if o.session != nil {
			o.session.Finish(fmt.Errorf("superseded by new session"))
		}
	}
	o.sessionID = sessionID
	o.language = language
	o.punctuation = punctuation
	o.session = o.metrics.StartSession(sessionID, buildinfo.TranscriptMetadata(o.modelVariant, language))
	o.log.Info("session started", "session_id", sessionID, "language", language, "punctuation_mode", punctuation)
}

// ProcessChunk feeds one ordered, validated chunk into the engine and
// returns zero or more partial transcripts plus, when the chunk is marked
// final, the authoritative final transcript.
func (o *Orchestrator) ProcessChunk(ctx context.Context, meta codec.ChunkMetadata, pcm []byte) ([]codec.PartialTranscript, *codec.FinalTranscript, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sessionID == "" {
		return nil, nil, ErrNoActiveSession
	}
	if meta.SessionID != o.sessionID {
		return nil, nil, ErrSessionMismatch
	}

	if o.session != nil {
		o.session.RecordChunk(uint64(meta.ChunkID), len(pcm), meta.IsLastChunk)
	}

	if o.maxRSSMB > 0 {
		if rss := status.CurrentRSSMB(); rss > o.maxRSSMB {
			o.log.Warn("memory pressure ceiling exceeded, aborting session",
				"session_id", o.sessionID, "rss_mb", rss, "ceiling_mb", o.maxRSSMB, "backoff", o.backoff)
			o.backoffUntil = time.Now().Add(o.backoff)
			o.closeSessionLocked(ErrMemoryPressure)
			return nil, nil, ErrMemoryPressure
		}
	}

	results, err := o.engine.TranscribeSegment(ctx, pcm, engine.Options{
		Language: o.language,
		Final:    meta.IsLastChunk,
		Sequence: uint64(meta.ChunkID),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: transcribe segment %d: %w", meta.ChunkID, err)
	}

	partials, final := o.translate(meta.SessionID, results, time.Now())

	if meta.IsLastChunk && final == nil {
		flushed, flushErr := o.flushLocked(ctx)
		if flushErr != nil {
			return partials, nil, flushErr
		}
		final = flushed
	}
	if final != nil {
		o.closeSessionLocked(nil)
	}
	return partials, final, nil
}

// EndSession flushes any buffered audio and returns the authoritative
// final transcript, closing the session whether or not the engine had
// anything left to say.
func (o *Orchestrator) EndSession(ctx context.Context) (*codec.FinalTranscript, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sessionID == "" {
		return nil, ErrNoActiveSession
	}
	final, err := o.flushLocked(ctx)
	if err != nil {
		o.closeSessionLocked(err)
		return nil, err
	}
	if final == nil {
		final = &codec.FinalTranscript{
			SessionID: o.sessionID,
			Text:      "",
			IsFinal:   true,
			Timestamp: time.Now(),
		}
	}
	o.closeSessionLocked(nil)
	return final, nil
}

// AbortSession discards the current session without producing a final
// transcript (spec §4.4's `cancel` control signal).
func (o *Orchestrator) AbortSession() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessionID == "" {
		return
	}
	o.log.Info("session aborted", "session_id", o.sessionID)
	_, _ = o.engine.Flush(context.Background(), engine.Options{Final: true})
	o.closeSessionLocked(fmt.Errorf("aborted"))
}

func (o *Orchestrator) flushLocked(ctx context.Context) (*codec.FinalTranscript, error) {
	if o.session != nil {
		o.session.RecordFlush()
	}
	results, err := o.engine.Flush(ctx, engine.Options{Language: o.language, Final: true})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: flush session %s: %w", o.sessionID, err)
	}
	_, final := o.translate(o.sessionID, results, time.Now())
	return final, nil
}

// translate converts raw engine results into partial/final transcript
// records, applying punctuation post-processing (spec §9 open question:
// left to the implementer). The last Final result, if any, becomes the
// authoritative FinalTranscript; everything else becomes a
// PartialTranscript.
func (o *Orchestrator) translate(sessionID string, results []engine.Result, now time.Time) ([]codec.PartialTranscript, *codec.FinalTranscript) {
	var partials []codec.PartialTranscript
	var final *codec.FinalTranscript

	for _, r := range results {
		text := applyPunctuation(o.punctuation, r.Text)
		if r.Final {
			conf := float64(r.Confidence)
			final = &codec.FinalTranscript{
				SessionID:  sessionID,
				Text:       text,
				IsFinal:    true,
				Confidence: &conf,
				Timestamp:  now,
			}
			if o.session != nil {
				o.session.RecordTranscript(0, text, true)
			}
			continue
		}
		partials = append(partials, codec.PartialTranscript{
			SessionID: sessionID,
			Text:      text,
			Timestamp: now,
		})
		if o.session != nil {
			o.session.RecordTranscript(0, text, false)
		}
	}
	return partials, final
}

func (o *Orchestrator) closeSessionLocked(err error) {
	if o.session != nil {
		o.session.Finish(err)
	}
	o.sessionID = ""
	o.session = nil
}
