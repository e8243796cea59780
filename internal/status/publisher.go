// Package status implements the Status Publisher: a periodic and
// on-demand snapshot of the Consumer's health written to
// control/status.json (spec §4.7).
package status

import (
	"context"
	"log/slog"
	"time"

	"github.com/voicebridge/sttcoord/internal/codec"
	"github.com/voicebridge/sttcoord/internal/rendezvous"
)

// Source supplies the live values a Publisher snapshots. consumer.Monitor
// satisfies this.
type Source interface {
	CurrentSession() string
	SequencerDrops() uint64
}

// Publisher writes a StatusRecord to the rendezvous directory on a fixed
// interval and whenever PublishNow is called directly. A `ping` control
// signal does not cause an extra write; the next interval's record is the
// reply.
type Publisher struct {
	store        *rendezvous.Store
	source       Source
	modelVariant string
	modelLoaded  bool
	log          *slog.Logger
}

// New returns a Publisher. modelLoaded reflects whether the engine
// initialised against a real model file rather than falling back to the
// stub engine.
func New(store *rendezvous.Store, source Source, modelVariant string, modelLoaded bool, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store:        store,
		source:       source,
		modelVariant: modelVariant,
		modelLoaded:  modelLoaded,
		log:          logger.With("component", "status.Publisher"),
	}
}

// CurrentRSSMB reports this process's resident set size in megabytes. It
// is exported so other components that need a live reading outside the
// periodic status snapshot — the Inference Orchestrator's memory-pressure
// check — can reuse the same platform-specific measurement.
func CurrentRSSMB() float64 {
	return currentRSSMB()
}

// PublishNow writes a status snapshot immediately.
func (p *Publisher) PublishNow() {
	session := p.source.CurrentSession()
	record := codec.StatusRecord{
		ModelLoaded:    p.modelLoaded,
		Processing:     session != "",
		CurrentSession: session,
		ModelVariant:   p.modelVariant,
		MemoryMB:       currentRSSMB(),
		SequencerDrops: p.source.SequencerDrops(),
		LastUpdate:     time.Now(),
	}
	data, err := codec.Encode(record)
	if err != nil {
		p.log.Warn("failed to encode status record", "error", err)
		return
	}
	if err := p.store.WriteAtomic(rendezvous.Control, rendezvous.StatusFile, data); err != nil {
		p.log.Warn("failed to write status record", "error", err)
	}
}

// Run publishes a snapshot immediately and then every interval until ctx
// is cancelled.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	p.PublishNow()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PublishNow()
		}
	}
}
