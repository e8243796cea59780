package rendezvous

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Poller drives a fixed-interval tick, woken early by filesystem events
// when a watcher is available (spec §9: "An implementation may substitute
// a filesystem event stream so long as ordering and atomicity guarantees
// are preserved"). The ticker is the correctness backstop; the watcher is
// purely a latency optimisation and its failure is never fatal.
type Poller struct {
	interval time.Duration
	watcher  *fsnotify.Watcher
	log      *slog.Logger
	ticks    chan struct{}
}

// NewPoller starts watching every subdir of store (best effort) and
// returns a Poller that ticks at interval, or sooner when a watched
// directory changes.
func NewPoller(store *Store, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		interval: interval,
		log:      logger.With("component", "rendezvous.Poller"),
		ticks:    make(chan struct{}, 1),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.log.Warn("fsnotify unavailable, falling back to ticker only", "error", err)
		return p
	}
	for _, sub := range allSubdirs {
		if err := watcher.Add(store.dirPath(sub)); err != nil {
			p.log.Warn("failed to watch subdir", "subdir", sub, "error", err)
		}
	}
	p.watcher = watcher
	return p
}

// Run blocks, sending on the returned channel whenever the poll loop
// should run, until ctx is cancelled. The channel is closed on return.
func (p *Poller) Run(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		if p.watcher != nil {
			defer p.watcher.Close()
		}
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		signal := func() {
			select {
			case out <- struct{}{}:
			default:
			}
		}
		signal()

		var events <-chan fsnotify.Event
		var errs <-chan error
		if p.watcher != nil {
			events = p.watcher.Events
			errs = p.watcher.Errors
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				signal()
			case _, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				signal()
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				p.log.Warn("fsnotify watcher error", "error", err)
			}
		}
	}()
	return out
}
