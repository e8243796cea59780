// Package consumer implements the Consumer Monitor: the poll loop that
// watches the rendezvous directory for control signals and audio chunks,
// feeds validated chunks through the reorder buffer into the Inference
// Orchestrator, and publishes the resulting transcripts (spec §4.4).
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/voicebridge/sttcoord/internal/codec"
	"github.com/voicebridge/sttcoord/internal/orchestrator"
	"github.com/voicebridge/sttcoord/internal/rendezvous"
	"github.com/voicebridge/sttcoord/internal/sequencer"
)

// Monitor owns one poll cycle's worth of rendezvous bookkeeping: the
// current session's settings and the sequencer feeding the orchestrator.
// A control signal is deleted once it has been read, so each one is acted
// on exactly once.
type Monitor struct {
	store *rendezvous.Store
	seq   *sequencer.Sequencer
	orch  *orchestrator.Orchestrator
	log   *slog.Logger

	settings codec.Settings

	// disabledErr is set once the engine failed to load its model. Spec
	// §7 treats model-load-failed as non-recoverable at the consumer
	// level: no new session is started until the process restarts.
	disabledErr error
}

// New returns a Monitor wired to store, seq and orch.
func New(store *rendezvous.Store, seq *sequencer.Sequencer, orch *orchestrator.Orchestrator, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		store:    store,
		seq:      seq,
		orch:     orch,
		log:      logger.With("component", "consumer.Monitor"),
		settings: codec.DefaultSettings(),
	}
}

// CurrentSession reports the orchestrator's active session id, or "".
func (m *Monitor) CurrentSession() string { return m.orch.ActiveSession() }

// SequencerDrops reports the cumulative count of chunks evicted by the
// reorder buffer for overflow (spec §4.7's status.sequencer_drops).
func (m *Monitor) SequencerDrops() uint64 { return m.seq.Drops() }

// Disable marks the Consumer unable to serve sessions because the engine
// failed to load its model, and publishes the error record immediately
// so it is visible before any Producer ever issues a `start` signal.
// Every subsequent `start` is refused with the same error until restart
// (spec §7).
func (m *Monitor) Disable(cause error) {
	m.disabledErr = cause
	m.publishError(codec.ErrorModelLoadFailed, "", cause)
	m.log.Error("consumer disabled, refusing new sessions until restart", "error", cause)
}

// Run drives Tick once per receive on ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, ticks <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			m.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle: control signals, then audio chunks. Errors
// are logged and, where they are attributable to the active session,
// published as an error record; Tick itself never returns an error so
// the caller's poll loop is never interrupted by one bad cycle.
func (m *Monitor) Tick(ctx context.Context) {
	m.handleSettings()
	m.handleControl(ctx)
	if until := m.orch.ThrottledUntil(); time.Now().Before(until) {
		return
	}
	m.handleChunks(ctx)
}

func (m *Monitor) handleSettings() {
	data, err := m.store.Read(rendezvous.Settings, rendezvous.SettingsFile)
	if err != nil {
		return
	}
	var settings codec.Settings
	if err := codec.Decode(data, &settings); err != nil {
		m.log.Warn("discarding malformed settings record", "error", err)
		return
	}
	m.settings = settings
}

func (m *Monitor) handleControl(ctx context.Context) {
	present, err := m.store.Exists(rendezvous.Control, rendezvous.ControlSignalFile)
	if err != nil {
		m.log.Warn("failed to stat control signal", "error", err)
		return
	}
	if !present {
		return
	}

	data, err := m.store.Read(rendezvous.Control, rendezvous.ControlSignalFile)
	if err != nil {
		m.log.Warn("failed to read control signal", "error", err)
		return
	}
	_ = m.store.Delete(rendezvous.Control, rendezvous.ControlSignalFile)
	var sig codec.ControlSignal
	if err := codec.Decode(data, &sig); err != nil {
		m.log.Warn("discarding malformed control signal", "error", err)
		return
	}

	switch sig.Signal {
	case codec.SignalStart:
		if m.disabledErr != nil {
			m.publishError(codec.ErrorModelLoadFailed, sig.SessionID, m.disabledErr)
			return
		}
		m.seq.Reset()
		m.orch.BeginSession(sig.SessionID, m.settings.Language, m.settings.PunctuationMode)
	case codec.SignalStop:
		final, err := m.orch.EndSession(ctx)
		if err != nil {
			if err != orchestrator.ErrNoActiveSession {
				m.publishError(codec.ErrorInferenceFailed, sig.SessionID, err)
			}
			return
		}
		m.publishFinal(*final)
	case codec.SignalCancel, codec.SignalReset:
		m.orch.AbortSession()
		m.seq.Reset()
	case codec.SignalPing:
	}
}

func (m *Monitor) handleChunks(ctx context.Context) {
	entries, err := m.store.List(rendezvous.Audio)
	if err != nil {
		m.log.Warn("failed to list audio directory", "error", err)
		return
	}

	current := m.orch.ActiveSession()
	for _, e := range entries {
		if !rendezvous.IsChunkMetadataName(e.Name) {
			continue
		}
		m.handleChunkFile(ctx, e.Name, current)
	}
}

func (m *Monitor) handleChunkFile(ctx context.Context, metaName, currentSession string) {
	data, err := m.store.Read(rendezvous.Audio, metaName)
	if err != nil {
		return // consumed by a previous tick already; not an error
	}

	var file codec.ChunkFile
	if err := codec.DecodeLenient(data, &file); err != nil {
		m.log.Warn("discarding malformed chunk metadata", "name", metaName, "error", err)
		_ = m.store.Delete(rendezvous.Audio, metaName)
		return
	}
	if err := file.Metadata.ValidateAt(time.Now()); err != nil {
		m.log.Warn("discarding invalid chunk metadata", "name", metaName, "error", err)
		m.deleteChunkFiles(metaName, file.PCMFilename)
		return
	}

	if currentSession == "" || file.Metadata.SessionID != currentSession {
		m.log.Debug("discarding chunk for stale or foreign session",
			"name", metaName, "chunk_session_id", file.Metadata.SessionID, "current_session_id", currentSession)
		m.deleteChunkFiles(metaName, file.PCMFilename)
		return
	}

	pcm, err := m.store.Read(rendezvous.Audio, file.PCMFilename)
	if err != nil {
		// The payload file may not be durable yet; retry next tick.
		return
	}
	if err := codec.ValidateChunkSize(file.Metadata, len(pcm)); err != nil {
		m.log.Warn("discarding chunk with size mismatch", "name", metaName, "error", err)
		m.publishError(codec.ErrorInvalidAudioFormat, file.Metadata.SessionID, err)
		m.deleteChunkFiles(metaName, file.PCMFilename)
		return
	}

	result := m.seq.Submit(sequencer.Chunk{
		Meta:     file.Metadata,
		PCM:      pcm,
		MetaName: metaName,
		PCMName:  file.PCMFilename,
	})
	// The chunk's bytes now live in memory, either delivered, buffered for
	// later delivery, or discarded as a duplicate/overflow eviction; the
	// on-disk copy is redundant the moment Submit returns.
	m.deleteChunkFiles(metaName, file.PCMFilename)
	if result.Evicted != nil {
		m.deleteChunkFiles(result.Evicted.MetaName, result.Evicted.PCMName)
	}
	for _, chunk := range result.Deliver {
		m.deliver(ctx, chunk)
	}
}

// deliver hands one in-order chunk to the orchestrator. Its rendezvous
// files were already removed when the sequencer accepted it.
func (m *Monitor) deliver(ctx context.Context, chunk sequencer.Chunk) {
	partials, final, err := m.orch.ProcessChunk(ctx, chunk.Meta, chunk.PCM)
	if err != nil {
		if errors.Is(err, orchestrator.ErrMemoryPressure) {
			m.seq.Reset()
			m.publishError(codec.ErrorMemoryPressure, chunk.Meta.SessionID, err)
			return
		}
		m.publishError(codec.ErrorInferenceFailed, chunk.Meta.SessionID, err)
		return
	}
	if m.settings.StreamingEnabled {
		for _, p := range partials {
			m.publishPartial(p)
		}
	}
	if final != nil {
		m.publishFinal(*final)
	}
}

func (m *Monitor) deleteChunkFiles(metaName, pcmName string) {
	if err := m.store.Delete(rendezvous.Audio, metaName); err != nil {
		m.log.Warn("failed to delete chunk metadata", "name", metaName, "error", err)
	}
	if pcmName != "" {
		if err := m.store.Delete(rendezvous.Audio, pcmName); err != nil {
			m.log.Warn("failed to delete chunk payload", "name", pcmName, "error", err)
		}
	}
}

func (m *Monitor) publishPartial(p codec.PartialTranscript) {
	data, err := codec.Encode(p)
	if err != nil {
		m.log.Warn("failed to encode partial transcript", "error", err)
		return
	}
	name := rendezvous.PartialTranscriptName(time.Now())
	if err := m.store.WriteAtomic(rendezvous.Transcripts, name, data); err != nil {
		m.log.Warn("failed to write partial transcript", "error", err)
	}
}

func (m *Monitor) publishFinal(f codec.FinalTranscript) {
	data, err := codec.Encode(f)
	if err != nil {
		m.log.Warn("failed to encode final transcript", "error", err)
		return
	}
	if err := m.store.WriteAtomic(rendezvous.Transcripts, rendezvous.FinalTranscriptFile, data); err != nil {
		m.log.Warn("failed to write final transcript", "error", err)
	}
}

func (m *Monitor) publishError(kind codec.ErrorKind, sessionID string, cause error) {
	rec := codec.ErrorRecord{
		ErrorKind:   kind,
		Description: cause.Error(),
		SessionID:   sessionID,
		Recoverable: !codec.NonRecoverableKinds[kind],
		Timestamp:   time.Now(),
	}
	data, err := codec.Encode(rec)
	if err != nil {
		m.log.Warn("failed to encode error record", "error", err)
		return
	}
	if err := m.store.WriteAtomic(rendezvous.Control, rendezvous.ErrorFile, data); err != nil {
		m.log.Warn("failed to write error record", "error", err)
	}
}
