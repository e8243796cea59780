// Package config loads the bootstrap configuration shared by the producer
// and consumer binaries: where the rendezvous directory lives, how
// aggressively each side polls it, and how the model manager and inference
// engine should be configured.
package config

import (
	"fmt"
	"strings"
)

// RendezvousConfig locates the shared directory both processes watch.
type RendezvousConfig struct {
	RootDir string `mapstructure:"root_dir"`
}

// PollConfig controls each side's ticker-driven poll of the rendezvous. The
// Consumer's ticker is the backstop alongside fsnotify; the Producer polls
// on its ticker alone.
type PollConfig struct {
	ProducerIntervalMS int `mapstructure:"producer_interval_ms"`
	ConsumerIntervalMS int `mapstructure:"consumer_interval_ms"`
}

// TimeoutConfig bounds how long a session may wait for progress.
type TimeoutConfig struct {
	SessionTimeoutS int `mapstructure:"session_timeout_s"`
}

// MemoryConfig governs the consumer's self-throttle under memory pressure.
type MemoryConfig struct {
	MaxRSSMB  int `mapstructure:"max_rss_mb"`
	BackoffMS int `mapstructure:"backoff_ms"`
}

// ReaperConfig controls the janitor sweep intervals and retention windows.
type ReaperConfig struct {
	StartupSweepAgeS     int   `mapstructure:"startup_sweep_age_s"`
	IntervalS            int   `mapstructure:"interval_s"`
	PartialRetentionS    int   `mapstructure:"partial_retention_s"`
	AudioRetentionS      int   `mapstructure:"audio_retention_s"`
	AuditLogMaxBytes     int64 `mapstructure:"audit_log_max_bytes"`
	ArchiveRetentionDays int   `mapstructure:"archive_retention_days"`
}

// StatusConfig controls the status publisher cadence.
type StatusConfig struct {
	IntervalS int `mapstructure:"interval_s"`
}

// Config is the full bootstrap configuration. Both cmd/producer and
// cmd/consumer load the same shape; each only reads the sections it needs.
type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	DataDir    string           `mapstructure:"data_dir"`
	Rendezvous RendezvousConfig `mapstructure:"rendezvous"`
	Poll       PollConfig       `mapstructure:"poll"`
	Timeouts   TimeoutConfig    `mapstructure:"timeouts"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Reaper     ReaperConfig     `mapstructure:"reaper"`
	Status     StatusConfig     `mapstructure:"status"`

	ModelVariant  string `mapstructure:"model_variant"`
	ModelPath     string `mapstructure:"model_path"`
	UseStubEngine bool   `mapstructure:"use_stub_engine"`
	Language      string `mapstructure:"language"`
	Punctuation   string `mapstructure:"punctuation"`
}

// Validate rejects configuration that would leave either binary unable to
// start meaningfully.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Rendezvous.RootDir) == "" {
		return fmt.Errorf("config: rendezvous.root_dir is required")
	}
	if c.Poll.ProducerIntervalMS <= 0 {
		return fmt.Errorf("config: poll.producer_interval_ms must be positive")
	}
	if c.Poll.ConsumerIntervalMS <= 0 {
		return fmt.Errorf("config: poll.consumer_interval_ms must be positive")
	}
	if c.Timeouts.SessionTimeoutS <= 0 {
		return fmt.Errorf("config: timeouts.session_timeout_s must be positive")
	}
	switch c.Punctuation {
	case "auto", "none", "sentence":
	default:
		return fmt.Errorf("config: punctuation must be one of auto, none, sentence, got %q", c.Punctuation)
	}
	return nil
}
