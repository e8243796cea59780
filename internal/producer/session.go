// Package producer implements the Producer Session state machine that
// feeds audio chunks into the rendezvous directory and waits for the
// Consumer to publish partial and final transcripts (spec §4.3).
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicebridge/sttcoord/internal/codec"
	"github.com/voicebridge/sttcoord/internal/rendezvous"
)

// State names the Producer Session's position in its lifecycle.
type State string

const (
	StateIdle          State = "idle"
	StateRecording     State = "recording"
	StateAwaitingFinal State = "awaiting_final"
	StateFailed        State = "failed"
)

// ErrWrongState is returned when an operation is attempted in a state that
// does not permit it.
var ErrWrongState = errors.New("producer: operation not valid in current state")

// ErrSessionTimeout is returned when End gives up waiting for a final
// transcript.
var ErrSessionTimeout = errors.New("producer: timed out waiting for final transcript")

// Session drives one Producer-side recording through Idle, Recording and
// AwaitingFinal. It is not safe for concurrent use by more than one
// caller at a time — spec §5 names a single in-flight session.
type Session struct {
	store        *rendezvous.Store
	log          *slog.Logger
	pollInterval time.Duration
	timeout      time.Duration

	mu                 sync.Mutex
	state              State
	sessionID          string
	nextChunkID        int
	lastFinalTimestamp time.Time
}

// New returns a Session rooted at store. pollInterval governs how often
// End re-checks the rendezvous directory (spec §4.3
// names a ~100ms cadence); timeout bounds how long End waits for a final
// transcript before giving up.
func New(store *rendezvous.Store, pollInterval, timeout time.Duration, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Session{
		store:        store,
		log:          logger.With("component", "producer.Session"),
		pollInterval: pollInterval,
		timeout:      timeout,
		state:        StateIdle,
	}
}

// State reports the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin mints a new session id, publishes a `start` control signal, and
// transitions Idle -> Recording.
func (s *Session) Begin(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle && s.state != StateFailed {
		return "", fmt.Errorf("%w: begin requires idle or failed, got %s", ErrWrongState, s.state)
	}

	sessionID := uuid.NewString()
	sig := codec.ControlSignal{Signal: codec.SignalStart, SessionID: sessionID, Timestamp: time.Now()}
	if err := s.publishControl(sig); err != nil {
		return "", err
	}

	s.sessionID = sessionID
	s.nextChunkID = 0
	s.state = StateRecording
	s.lastFinalTimestamp = time.Time{}
	s.log.Info("session begun", "session_id", sessionID)
	return sessionID, nil
}

// SubmitChunk writes one audio chunk's metadata and PCM payload to the
// rendezvous directory. isLast marks the final chunk of the recording.
func (s *Session) SubmitChunk(ctx context.Context, pcm []byte, sampleRate, channels int, format codec.AudioFormat, durationSeconds float64, isLast bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return fmt.Errorf("%w: submit_chunk requires recording, got %s", ErrWrongState, s.state)
	}

	chunkID := s.nextChunkID
	s.nextChunkID++

	meta := codec.ChunkMetadata{
		SessionID:       s.sessionID,
		ChunkID:         chunkID,
		SampleRate:      sampleRate,
		Channels:        channels,
		Format:          format,
		DurationSeconds: durationSeconds,
		Timestamp:       time.Now(),
		IsLastChunk:     isLast,
	}
	pcmName := rendezvous.ChunkPCMName(s.sessionID, chunkID)
	metaName := rendezvous.ChunkMetadataName(s.sessionID, chunkID)

	data, err := codec.Encode(codec.ChunkFile{Metadata: meta, PCMFilename: pcmName})
	if err != nil {
		return fmt.Errorf("producer: encode chunk %d metadata: %w", chunkID, err)
	}
	if err := s.store.WriteAtomic(rendezvous.Audio, pcmName, pcm); err != nil {
		return fmt.Errorf("producer: write chunk %d payload: %w", chunkID, err)
	}
	// The metadata file is written last and is what the Consumer Monitor
	// lists for; the PCM payload must already be durable on disk by the
	// time the metadata file appears (spec §4.1).
	if err := s.store.WriteAtomic(rendezvous.Audio, metaName, data); err != nil {
		return fmt.Errorf("producer: write chunk %d metadata: %w", chunkID, err)
	}

	if isLast {
		s.state = StateAwaitingFinal
	}
	return nil
}

// End publishes a `stop` control signal (if the session was not already
// closed by a last chunk) and blocks, polling the rendezvous directory,
// until the Consumer publishes a final transcript, an error record for
// this session (or one with no session id), or the configured timeout
// elapses.
func (s *Session) End(ctx context.Context) (*codec.FinalTranscript, error) {
	s.mu.Lock()
	if s.state != StateRecording && s.state != StateAwaitingFinal {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: end requires recording or awaiting_final, got %s", ErrWrongState, state)
	}
	if s.state == StateRecording {
		sig := codec.ControlSignal{Signal: codec.SignalStop, SessionID: s.sessionID, Timestamp: time.Now()}
		if err := s.publishControl(sig); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.state = StateAwaitingFinal
	}
	sessionID := s.sessionID
	s.mu.Unlock()

	deadline := time.Now().Add(s.timeout)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		final, errRec, err := s.pollOutcome(sessionID)
		if err != nil {
			return nil, err
		}
		if errRec != nil {
			s.finish(StateFailed)
			return nil, fmt.Errorf("producer: session %s failed: %s (%s)", sessionID, errRec.Description, errRec.ErrorKind)
		}
		if final != nil {
			s.finish(StateIdle)
			return final, nil
		}
		if time.Now().After(deadline) {
			s.finish(StateFailed)
			return nil, ErrSessionTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Abort publishes a `cancel` control signal and returns to Idle
// immediately without waiting for a final transcript.
func (s *Session) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return nil
	}
	sig := codec.ControlSignal{Signal: codec.SignalCancel, SessionID: s.sessionID, Timestamp: time.Now()}
	err := s.publishControl(sig)
	s.state = StateIdle
	s.log.Info("session aborted", "session_id", s.sessionID)
	return err
}

// PollPartial returns the most recently published partial transcript for
// the active session, or nil if none is available yet or it predates the
// last final transcript this session observed (the partial-suppression
// decision from spec §9: a stale partial that arrived after its final
// must not be shown).
func (s *Session) PollPartial() (*codec.PartialTranscript, error) {
	s.mu.Lock()
	sessionID := s.sessionID
	lastFinal := s.lastFinalTimestamp
	s.mu.Unlock()

	if sessionID == "" {
		return nil, nil
	}
	name, err := latestPartialName(s.store)
	if err != nil {
		return nil, fmt.Errorf("producer: list partial transcripts: %w", err)
	}
	if name == "" {
		return nil, nil
	}
	data, err := s.store.Read(rendezvous.Transcripts, name)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("producer: read partial transcript: %w", err)
	}
	var partial codec.PartialTranscript
	if err := codec.Decode(data, &partial); err != nil {
		s.log.Warn("discarding malformed partial transcript", "error", err)
		return nil, nil
	}
	if partial.SessionID != sessionID {
		return nil, nil
	}
	if !lastFinal.IsZero() && !partial.Timestamp.After(lastFinal) {
		return nil, nil
	}
	return &partial, nil
}

func (s *Session) pollOutcome(sessionID string) (*codec.FinalTranscript, *codec.ErrorRecord, error) {
	if data, err := s.store.Read(rendezvous.Control, rendezvous.ErrorFile); err == nil {
		var errRec codec.ErrorRecord
		if decodeErr := codec.Decode(data, &errRec); decodeErr == nil && (errRec.SessionID == "" || errRec.SessionID == sessionID) {
			_ = s.store.Delete(rendezvous.Control, rendezvous.ErrorFile)
			return nil, &errRec, nil
		}
	} else if !isNotFound(err) {
		return nil, nil, fmt.Errorf("producer: read error record: %w", err)
	}

	data, err := s.store.Read(rendezvous.Transcripts, rendezvous.FinalTranscriptFile)
	if isNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("producer: read final transcript: %w", err)
	}
	var final codec.FinalTranscript
	if decodeErr := codec.Decode(data, &final); decodeErr != nil {
		s.log.Warn("discarding malformed final transcript", "error", decodeErr)
		return nil, nil, nil
	}
	if final.SessionID != sessionID {
		return nil, nil, nil
	}
	s.mu.Lock()
	s.lastFinalTimestamp = final.Timestamp
	s.mu.Unlock()
	return &final, nil, nil
}

func (s *Session) finish(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
}

func (s *Session) publishControl(sig codec.ControlSignal) error {
	data, err := codec.Encode(sig)
	if err != nil {
		return fmt.Errorf("producer: encode control signal: %w", err)
	}
	if err := s.store.WriteAtomic(rendezvous.Control, rendezvous.ControlSignalFile, data); err != nil {
		return fmt.Errorf("producer: write control signal: %w", err)
	}
	return nil
}

func latestPartialName(store *rendezvous.Store) (string, error) {
	entries, err := store.List(rendezvous.Transcripts)
	if err != nil {
		return "", err
	}
	latest := ""
	for _, e := range entries {
		if rendezvous.IsPartialTranscriptName(e.Name) {
			latest = e.Name
		}
	}
	return latest, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var rErr *rendezvous.Error
	return errors.As(err, &rErr) && rErr.Kind == rendezvous.ErrNotFound
}
