package status

import (
	"io"
	"log/slog"
	"testing"

	"github.com/voicebridge/sttcoord/internal/codec"
	"github.com/voicebridge/sttcoord/internal/rendezvous"
)

type fakeSource struct {
	session string
	drops   uint64
}

func (f fakeSource) CurrentSession() string { return f.session }
func (f fakeSource) SequencerDrops() uint64 { return f.drops }

func testStore(t *testing.T) *rendezvous.Store {
	t.Helper()
	store, err := rendezvous.Open(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestPublishNowWritesStatus(t *testing.T) {
	store := testStore(t)
	pub := New(store, fakeSource{session: "S1", drops: 3}, "base.en", true, nil)
	pub.PublishNow()

	data, err := store.Read(rendezvous.Control, rendezvous.StatusFile)
	if err != nil {
		t.Fatalf("Read status: %v", err)
	}
	var record codec.StatusRecord
	if err := codec.Decode(data, &record); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if record.CurrentSession != "S1" || !record.Processing {
		t.Fatalf("unexpected status record: %+v", record)
	}
	if record.SequencerDrops != 3 {
		t.Fatalf("expected 3 drops, got %d", record.SequencerDrops)
	}
	if record.ModelVariant != "base.en" || !record.ModelLoaded {
		t.Fatalf("unexpected model fields: %+v", record)
	}
}

func TestPublishNowIdleWhenNoSession(t *testing.T) {
	store := testStore(t)
	pub := New(store, fakeSource{}, "base.en", false, nil)
	pub.PublishNow()

	data, err := store.Read(rendezvous.Control, rendezvous.StatusFile)
	if err != nil {
		t.Fatalf("Read status: %v", err)
	}
	var record codec.StatusRecord
	if err := codec.Decode(data, &record); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if record.Processing {
		t.Fatal("expected processing false when idle")
	}
}
