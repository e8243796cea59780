package sequencer

import (
	"testing"

	"github.com/voicebridge/sttcoord/internal/codec"
)

func chunk(id int) Chunk {
	return Chunk{Meta: codec.ChunkMetadata{SessionID: "S1", ChunkID: id}}
}

func TestInOrderDeliversImmediately(t *testing.T) {
	seq := New(DefaultCapacity, nil)
	res := seq.Submit(chunk(0))
	if len(res.Deliver) != 1 || res.Deliver[0].Meta.ChunkID != 0 {
		t.Fatalf("expected immediate delivery of chunk 0, got %+v", res)
	}
	if seq.LastProcessed() != 0 {
		t.Fatalf("expected last_processed 0, got %d", seq.LastProcessed())
	}
}

func TestOutOfOrderThenDrains(t *testing.T) {
	seq := New(DefaultCapacity, nil)

	// scenario 2: metadata observed in mtime order 0, 2, 1, 3
	res0 := seq.Submit(chunk(0))
	if len(res0.Deliver) != 1 {
		t.Fatalf("expected chunk 0 delivered, got %+v", res0)
	}

	res2 := seq.Submit(chunk(2))
	if len(res2.Deliver) != 0 {
		t.Fatalf("expected chunk 2 buffered, not delivered, got %+v", res2)
	}
	if seq.Len() != 1 {
		t.Fatalf("expected 1 buffered chunk, got %d", seq.Len())
	}

	res1 := seq.Submit(chunk(1))
	if len(res1.Deliver) != 2 || res1.Deliver[0].Meta.ChunkID != 1 || res1.Deliver[1].Meta.ChunkID != 2 {
		t.Fatalf("expected chunks 1 then 2 delivered from drain, got %+v", res1)
	}
	if seq.Len() != 0 {
		t.Fatalf("expected buffer drained, got %d entries", seq.Len())
	}

	res3 := seq.Submit(chunk(3))
	if len(res3.Deliver) != 1 || res3.Deliver[0].Meta.ChunkID != 3 {
		t.Fatalf("expected chunk 3 delivered, got %+v", res3)
	}
	if seq.LastProcessed() != 3 {
		t.Fatalf("expected last_processed 3, got %d", seq.LastProcessed())
	}
}

func TestDuplicateIsDropped(t *testing.T) {
	seq := New(DefaultCapacity, nil)
	seq.Submit(chunk(0))
	res := seq.Submit(chunk(0))
	if !res.Duplicate {
		t.Fatalf("expected duplicate result for chunk_id <= last_processed")
	}
	if len(res.Deliver) != 0 {
		t.Fatalf("duplicate must not be delivered")
	}
}

func TestOverflowEvictsOldestBuffered(t *testing.T) {
	// scenario 3: chunk 0 processed; chunks 11..20 fill the buffer; 1..10
	// never arrive; 21 is the 11th out-of-order chunk.
	seq := New(DefaultCapacity, nil)
	seq.Submit(chunk(0))

	for id := 11; id <= 21; id++ {
		res := seq.Submit(chunk(id))
		if seq.Len() > DefaultCapacity {
			t.Fatalf("buffer size %d exceeded capacity %d", seq.Len(), DefaultCapacity)
		}
		if id == 21 {
			if res.Evicted == nil {
				t.Fatalf("expected an eviction on the 11th out-of-order chunk (index %d)", id)
			}
			if res.Evicted.Meta.ChunkID != 11 {
				t.Fatalf("expected the oldest buffered id (11) to be evicted, got %d", res.Evicted.Meta.ChunkID)
			}
		}
	}

	if seq.LastProcessed() != 0 {
		t.Fatalf("expected last_processed to remain 0, got %d", seq.LastProcessed())
	}
	if seq.Len() != DefaultCapacity {
		t.Fatalf("expected buffer to stay at capacity %d, got %d", DefaultCapacity, seq.Len())
	}
	if seq.Drops() != 1 {
		t.Fatalf("expected 1 drop recorded, got %d", seq.Drops())
	}
}

func TestNeverEvictsAlreadyDelivered(t *testing.T) {
	seq := New(2, nil)
	seq.Submit(chunk(0))
	seq.Submit(chunk(5))
	seq.Submit(chunk(6))
	res := seq.Submit(chunk(7))
	if res.Evicted == nil {
		t.Fatalf("expected eviction once buffer exceeds capacity 2")
	}
	if res.Evicted.Meta.ChunkID < 5 {
		t.Fatalf("must never evict chunk_id <= last_processed, evicted %d", res.Evicted.Meta.ChunkID)
	}
}

func TestResetClearsBufferAndCounter(t *testing.T) {
	seq := New(DefaultCapacity, nil)
	seq.Submit(chunk(0))
	seq.Submit(chunk(2))
	seq.Reset()
	if seq.Len() != 0 {
		t.Fatalf("expected empty buffer after reset, got %d", seq.Len())
	}
	if seq.LastProcessed() != -1 {
		t.Fatalf("expected last_processed -1 after reset, got %d", seq.LastProcessed())
	}
	res := seq.Submit(chunk(0))
	if len(res.Deliver) != 1 {
		t.Fatalf("expected chunk 0 deliverable again after reset, got %+v", res)
	}
}
