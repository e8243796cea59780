// Command sttcoord-consumer hosts the Whisper inference engine and drains
// the rendezvous directory: it watches for control signals and audio
// chunks, feeds them through the reorder buffer into the orchestrator,
// and publishes transcripts, status, and periodic housekeeping.
package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/dimiro1/banner"

	"github.com/voicebridge/sttcoord/internal/buildinfo"
	"github.com/voicebridge/sttcoord/internal/config"
	"github.com/voicebridge/sttcoord/internal/consumer"
	"github.com/voicebridge/sttcoord/internal/engine"
	"github.com/voicebridge/sttcoord/internal/models"
	"github.com/voicebridge/sttcoord/internal/orchestrator"
	"github.com/voicebridge/sttcoord/internal/reaper"
	"github.com/voicebridge/sttcoord/internal/rendezvous"
	"github.com/voicebridge/sttcoord/internal/sequencer"
	"github.com/voicebridge/sttcoord/internal/status"
	"github.com/voicebridge/sttcoord/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printBanner()

	cfg, err := config.Loader{ConfigFile: os.Getenv("STTCOORD_CONFIG_FILE")}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting consumer",
		"rendezvous_root", cfg.Rendezvous.RootDir,
		"model_variant", cfg.ModelVariant,
		"poll_interval_ms", cfg.Poll.ConsumerIntervalMS,
		"data_dir", cfg.DataDir,
	)

	store, err := rendezvous.Open(cfg.Rendezvous.RootDir, logger)
	if err != nil {
		logger.Error("failed to open rendezvous directory", "error", err)
		os.Exit(1)
	}

	manager, err := models.NewManager(cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to initialise model manager", "error", err)
		os.Exit(1)
	}

	eng, modelPath, engineErr := engine.New(cfg, manager, logger)
	modelLoadFailed := engineErr != nil && !errors.Is(engineErr, engine.ErrNativeEngineUnavailable)
	switch {
	case modelLoadFailed:
		logger.Error("model load failed, consumer will refuse sessions", "error", engineErr)
	case engineErr != nil:
		logger.Warn("native backend unavailable, falling back to stub engine", "error", engineErr)
	default:
		logger.Info("engine ready")
	}
	if modelPath != "" {
		logger.Info("resolved model path", "path", modelPath)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn("failed to close engine", "error", err)
		}
	}()

	if !modelLoadFailed {
		warmupEngine(ctx, eng, cfg.ModelVariant, logger)
	}

	recorder := telemetry.NewRecorder(logger)
	maxRSSMB := float64(cfg.Memory.MaxRSSMB)
	backoff := time.Duration(cfg.Memory.BackoffMS) * time.Millisecond
	orch := orchestrator.New(eng, cfg.ModelVariant, recorder, maxRSSMB, backoff, logger)
	seq := sequencer.New(sequencer.DefaultCapacity, logger)
	monitor := consumer.New(store, seq, orch, logger)
	if modelLoadFailed {
		monitor.Disable(engineErr)
	}

	modelLoaded := engineErr == nil && modelPath != ""
	statusPub := status.New(store, monitor, cfg.ModelVariant, modelLoaded, logger)

	sweep := reaper.New(store, reaper.Config{
		StartupSweepAge:  time.Duration(cfg.Reaper.StartupSweepAgeS) * time.Second,
		Interval:         time.Duration(cfg.Reaper.IntervalS) * time.Second,
		PartialRetention: time.Duration(cfg.Reaper.PartialRetentionS) * time.Second,
		AudioRetention:   time.Duration(cfg.Reaper.AudioRetentionS) * time.Second,
		AuditLogMaxBytes: cfg.Reaper.AuditLogMaxBytes,
		ArchiveRetention: time.Duration(cfg.Reaper.ArchiveRetentionDays) * 24 * time.Hour,
	}, logger)
	sweep.RunStartupSweep()

	poller := rendezvous.NewPoller(store, time.Duration(cfg.Poll.ConsumerIntervalMS)*time.Millisecond, logger)
	ticks := poller.Run(ctx)

	go statusPub.Run(ctx, time.Duration(cfg.Status.IntervalS)*time.Second)
	go sweep.Run(ctx)

	monitor.Run(ctx, ticks)

	if snapshot := recorder.Snapshot(); snapshot.TotalSessions > 0 {
		logger.Info("telemetry totals",
			"total_sessions", snapshot.TotalSessions,
			"total_chunks", snapshot.TotalChunks,
			"total_transcripts", snapshot.TotalTranscripts,
			"total_final_transcripts", snapshot.TotalFinalTranscripts,
			"total_bytes", snapshot.TotalBytes,
			"total_flushes", snapshot.TotalFlushes,
		)
	}

	logger.Info("consumer stopped")
}

// warmupEngine runs one second of silence through the engine once at
// startup so the first real session doesn't pay the engine's first-call
// allocation cost (model weights paging in, scratch buffers sizing).
func warmupEngine(ctx context.Context, eng engine.Engine, modelVariant string, logger *slog.Logger) {
	const sampleRate = 16000
	silence := make([]byte, sampleRate*2) // 1s of 16kHz mono PCM16 zeros

	start := time.Now()
	if _, err := eng.TranscribeSegment(ctx, silence, engine.Options{Language: "en"}); err != nil {
		logger.Warn("engine warmup segment failed", "error", err)
	}
	if _, err := eng.Flush(ctx, engine.Options{Language: "en", Final: true}); err != nil {
		logger.Warn("engine warmup flush failed", "error", err)
	}
	logger.Info("engine warmed up", "model_variant", modelVariant, "duration", time.Since(start))
}

func printBanner() {
	tpl := "{{ .Title \"" + buildinfo.Consumer.Name + "\" \"\" 0 }}\n" + buildinfo.Consumer.Description + "\nVersion: " + buildinfo.Consumer.Version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

func newLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
