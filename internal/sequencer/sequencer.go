// Package sequencer implements the bounded reorder buffer that guarantees
// the Inference Orchestrator sees chunks in strictly ascending contiguous
// order for a single in-flight session (spec §4.5).
package sequencer

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/voicebridge/sttcoord/internal/codec"
)

// DefaultCapacity is the buffer size named in spec §4.5.
const DefaultCapacity = 10

// Chunk pairs a chunk's metadata and PCM payload with the names of the
// rendezvous files it came from, so the caller can delete them once the
// Sequencer is done with the chunk (delivered, duplicate, or evicted).
type Chunk struct {
	Meta     codec.ChunkMetadata
	PCM      []byte
	MetaName string
	PCMName  string
}

// Result reports what Submit did with an incoming chunk.
type Result struct {
	// Deliver holds zero or more chunks now safe to forward to the
	// Inference Orchestrator, in strictly ascending chunk_id order. It may
	// contain more than one entry when a buffered run becomes contiguous.
	Deliver []Chunk
	// Duplicate is true when the chunk_id was already processed.
	Duplicate bool
	// Evicted is set when accepting the chunk pushed the buffer over
	// capacity and the oldest buffered chunk had to be dropped.
	Evicted *Chunk
}

// Sequencer is a bounded map from chunk_id to buffered chunk, plus the
// last chunk_id delivered downstream. It is safe for concurrent use.
type Sequencer struct {
	mu            sync.Mutex
	capacity      int
	lastProcessed int
	buffer        map[int]Chunk
	log           *slog.Logger
	drops         atomic.Uint64
}

// New returns a Sequencer with the given capacity (DefaultCapacity if <= 0).
func New(capacity int, logger *slog.Logger) *Sequencer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{
		capacity:      capacity,
		lastProcessed: -1,
		buffer:        make(map[int]Chunk, capacity),
		log:           logger.With("component", "sequencer.Sequencer"),
	}
}

// Reset clears the buffer and resets last_processed to -1, as the Consumer
// Monitor does on observing a `start` control signal (spec §4.4).
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProcessed = -1
	s.buffer = make(map[int]Chunk, s.capacity)
}

// Len reports the number of chunks currently buffered. It never exceeds
// the configured capacity (spec §8 invariant).
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// LastProcessed returns the highest chunk_id delivered so far, or -1.
func (s *Sequencer) LastProcessed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastProcessed
}

// Drops returns the cumulative number of chunks evicted due to overflow.
func (s *Sequencer) Drops() uint64 {
	return s.drops.Load()
}

// Submit applies the ordering policy from spec §4.5 to an incoming chunk.
func (s *Sequencer) Submit(c Chunk) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Meta.ChunkID

	if id <= s.lastProcessed {
		return Result{Duplicate: true}
	}

	if id == s.lastProcessed+1 {
		deliver := []Chunk{c}
		s.lastProcessed = id
		for {
			next, ok := s.buffer[s.lastProcessed+1]
			if !ok {
				break
			}
			delete(s.buffer, s.lastProcessed+1)
			deliver = append(deliver, next)
			s.lastProcessed++
		}
		return Result{Deliver: deliver}
	}

	// Out of order and ahead: buffer it.
	if _, exists := s.buffer[id]; exists {
		return Result{Duplicate: true}
	}
	s.buffer[id] = c

	if len(s.buffer) <= s.capacity {
		return Result{}
	}

	minID := id
	for bufID := range s.buffer {
		if bufID < minID {
			minID = bufID
		}
	}
	evicted := s.buffer[minID]
	delete(s.buffer, minID)
	s.drops.Add(1)
	s.log.Warn("sequencer buffer overflow, evicting oldest buffered chunk",
		"evicted_chunk_id", minID,
		"session_id", c.Meta.SessionID,
		"capacity", s.capacity,
	)
	return Result{Evicted: &evicted}
}
