// Package reaper implements the janitor that keeps the rendezvous
// directory from growing without bound: a startup sweep, a periodic
// retention sweep, and log rotation for the consumer's own audit log
// (spec §4.8).
package reaper

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voicebridge/sttcoord/internal/rendezvous"
)

// Config bounds how aggressively the Reaper reclaims rendezvous files and
// rotates the audit log.
type Config struct {
	// StartupSweepAge deletes anything older than this in audio/,
	// transcripts/ and control/ the first time the Reaper runs.
	StartupSweepAge time.Duration
	// Interval is how often the periodic sweep runs.
	Interval time.Duration
	// PartialRetention bounds how long an unclaimed partial transcript
	// survives.
	PartialRetention time.Duration
	// AudioRetention bounds how long an orphaned audio chunk survives
	// (one the Consumer never claimed, e.g. after a crash mid-session).
	AudioRetention time.Duration
	// AuditLogPath, if set, is rotated once it exceeds AuditLogMaxBytes.
	AuditLogPath string
	// AuditLogMaxBytes is the rotation threshold.
	AuditLogMaxBytes int64
	// ArchiveRetention bounds how long a rotated log archive survives.
	ArchiveRetention time.Duration
}

// Reaper periodically reclaims stale rendezvous files.
type Reaper struct {
	store *rendezvous.Store
	cfg   Config
	log   *slog.Logger
}

// New returns a Reaper bound to store.
func New(store *rendezvous.Store, cfg Config, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{store: store, cfg: cfg, log: logger.With("component", "reaper.Reaper")}
}

// RunStartupSweep deletes anything older than cfg.StartupSweepAge in
// audio/, transcripts/ and control/; settings/ is left alone. It runs
// once, before the Producer or Consumer begins normal operation, to clear
// out state left behind by a crash (spec §4.8).
func (r *Reaper) RunStartupSweep() {
	now := time.Now()
	all := func(string) bool { return true }
	for _, sub := range []rendezvous.Subdir{rendezvous.Audio, rendezvous.Transcripts, rendezvous.Control} {
		r.sweepDir(sub, now, r.cfg.StartupSweepAge, all)
	}
	r.rotateIfNeeded()
}

// Run drives the periodic sweep every cfg.Interval until ctx is
// cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(r.cfg.AudioRetention, r.cfg.PartialRetention, r.cfg.StartupSweepAge)
			r.rotateIfNeeded()
		}
	}
}

// sweep applies audioMaxAge to audio/, partialMaxAge to unclaimed partial
// transcripts in transcripts/, and controlMaxAge to the error record in
// control/. The final transcript, the control signal and the settings file
// are never aged out by this periodic sweep; they persist until
// overwritten.
func (r *Reaper) sweep(audioMaxAge, partialMaxAge, controlMaxAge time.Duration) {
	now := time.Now()
	r.sweepDir(rendezvous.Audio, now, audioMaxAge, func(string) bool { return true })
	r.sweepDir(rendezvous.Transcripts, now, partialMaxAge, rendezvous.IsPartialTranscriptName)
	r.sweepDir(rendezvous.Control, now, controlMaxAge, func(name string) bool {
		return name == rendezvous.ErrorFile
	})
}

func (r *Reaper) sweepDir(sub rendezvous.Subdir, now time.Time, maxAge time.Duration, eligible func(string) bool) {
	if maxAge <= 0 {
		return
	}
	entries, err := r.store.List(sub)
	if err != nil {
		r.log.Warn("failed to list directory for sweep", "subdir", sub, "error", err)
		return
	}
	for _, e := range entries {
		if !eligible(e.Name) {
			continue
		}
		if now.Sub(e.ModTime) < maxAge {
			continue
		}
		if err := r.store.Delete(sub, e.Name); err != nil {
			r.log.Warn("failed to reap stale file", "subdir", sub, "name", e.Name, "error", err)
			continue
		}
		r.log.Info("reaped stale file", "subdir", sub, "name", e.Name, "age", now.Sub(e.ModTime))
	}
}

// rotateIfNeeded archives the audit log once it crosses AuditLogMaxBytes
// and deletes archives older than ArchiveRetention.
func (r *Reaper) rotateIfNeeded() {
	if r.cfg.AuditLogPath == "" {
		return
	}
	info, err := os.Stat(r.cfg.AuditLogPath)
	if err != nil {
		return
	}
	if info.Size() >= r.cfg.AuditLogMaxBytes {
		archivePath := r.cfg.AuditLogPath + "." + time.Now().Format("20060102T150405") + ".gz"
		if err := rotate(r.cfg.AuditLogPath, archivePath); err != nil {
			r.log.Warn("failed to rotate audit log", "error", err)
		} else {
			r.log.Info("rotated audit log", "archive", archivePath, "size_bytes", info.Size())
		}
	}
	r.pruneArchives()
}

func (r *Reaper) pruneArchives() {
	if r.cfg.ArchiveRetention <= 0 {
		return
	}
	dir := filepath.Dir(r.cfg.AuditLogPath)
	base := filepath.Base(r.cfg.AuditLogPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	now := time.Now()
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), base+".") || !strings.HasSuffix(e.Name(), ".gz") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= r.cfg.ArchiveRetention {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			r.log.Warn("failed to prune log archive", "path", path, "error", err)
			continue
		}
		r.log.Info("pruned log archive", "path", path, "age", now.Sub(info.ModTime()))
	}
}
