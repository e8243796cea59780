// Command sttcoord-producer drives one recording session against a
// rendezvous directory: it streams raw 16kHz mono PCM16 audio from a
// file (or stdin) in fixed-duration chunks, waits for the Consumer to
// transcribe it, and prints partial and final transcripts as they
// arrive.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/dimiro1/banner"

	"github.com/voicebridge/sttcoord/internal/buildinfo"
	"github.com/voicebridge/sttcoord/internal/codec"
	"github.com/voicebridge/sttcoord/internal/config"
	"github.com/voicebridge/sttcoord/internal/producer"
	"github.com/voicebridge/sttcoord/internal/rendezvous"
)

const (
	sampleRate      = 16000
	channels        = 1
	bytesPerSample  = 2
	partialPollRate = 150 * time.Millisecond
)

func main() {
	audioPath := flag.String("audio", "", "path to raw 16kHz mono PCM16 audio (defaults to stdin)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printBanner()

	cfg, err := config.Loader{ConfigFile: os.Getenv("STTCOORD_CONFIG_FILE")}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting producer",
		"rendezvous_root", cfg.Rendezvous.RootDir,
		"poll_interval_ms", cfg.Poll.ProducerIntervalMS,
		"session_timeout_s", cfg.Timeouts.SessionTimeoutS,
	)

	store, err := rendezvous.Open(cfg.Rendezvous.RootDir, logger)
	if err != nil {
		logger.Error("failed to open rendezvous directory", "error", err)
		os.Exit(1)
	}

	audio, err := openAudioSource(*audioPath)
	if err != nil {
		logger.Error("failed to open audio source", "error", err)
		os.Exit(1)
	}
	defer audio.Close()

	pollInterval := time.Duration(cfg.Poll.ProducerIntervalMS) * time.Millisecond
	timeout := time.Duration(cfg.Timeouts.SessionTimeoutS) * time.Second
	session := producer.New(store, pollInterval, timeout, logger)

	sessionID, err := session.Begin(ctx)
	if err != nil {
		logger.Error("failed to begin session", "error", err)
		os.Exit(1)
	}
	logger.Info("session started", "session_id", sessionID)

	watchPartials(ctx, session)

	if err := streamChunks(ctx, session, audio); err != nil {
		logger.Error("failed to stream audio", "error", err)
		_ = session.Abort(ctx)
		os.Exit(1)
	}

	final, err := session.End(ctx)
	if err != nil {
		logger.Error("session did not finish cleanly", "error", err)
		os.Exit(1)
	}

	fmt.Println(final.Text)
	logger.Info("session complete", "session_id", sessionID, "processing_time_ms", final.ProcessingTimeMS)
}

// streamChunks reads fixed-duration PCM frames from audio and submits
// them to session one read behind, so the true final frame (however
// short) can be marked as the last chunk.
func streamChunks(ctx context.Context, session *producer.Session, audio io.Reader) error {
	frameBytes := sampleRate * channels * bytesPerSample
	var pending []byte

	submitPending := func(isLast bool) error {
		if pending == nil {
			return nil
		}
		duration := float64(len(pending)) / float64(frameBytes)
		err := session.SubmitChunk(ctx, pending, sampleRate, channels, codec.FormatPCM16, duration, isLast)
		pending = nil
		return err
	}

	for {
		buf := make([]byte, frameBytes)
		n, readErr := io.ReadFull(audio, buf)
		if n > 0 {
			if err := submitPending(false); err != nil {
				return fmt.Errorf("submit chunk: %w", err)
			}
			pending = buf[:n]
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			if pending == nil {
				return errors.New("producer: no audio read")
			}
			return submitPending(true)
		}
		if readErr != nil {
			return readErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// watchPartials polls for and prints partial transcripts on a background
// goroutine until ctx is cancelled.
func watchPartials(ctx context.Context, session *producer.Session) {
	go func() {
		ticker := time.NewTicker(partialPollRate)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				partial, err := session.PollPartial()
				if err != nil || partial == nil {
					continue
				}
				fmt.Fprintf(os.Stderr, "... %s\n", partial.Text)
			}
		}
	}()
}

func openAudioSource(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func printBanner() {
	tpl := "{{ .Title \"" + buildinfo.Producer.Name + "\" \"\" 0 }}\n" + buildinfo.Producer.Description + "\nVersion: " + buildinfo.Producer.Version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

func newLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)})
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
