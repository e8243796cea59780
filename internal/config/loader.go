package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment variable overrides, e.g.
// STTCOORD_RENDEZVOUS_ROOT_DIR.
const EnvPrefix = "STTCOORD"

// Loader reads Config from an optional YAML file plus environment
// overrides. The zero value is ready to use and loads defaults only.
type Loader struct {
	// ConfigFile, if set, is read with viper's SetConfigFile. A missing
	// file is not an error; values simply fall back to defaults and env.
	ConfigFile string
}

// Load resolves the final Config and validates it.
func (l Loader) Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	if l.ConfigFile != "" {
		v.SetConfigFile(l.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", l.ConfigFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("data_dir", "data")

	v.SetDefault("rendezvous.root_dir", "")

	v.SetDefault("poll.producer_interval_ms", 100)
	v.SetDefault("poll.consumer_interval_ms", 50)

	v.SetDefault("timeouts.session_timeout_s", 10)

	v.SetDefault("memory.max_rss_mb", 0)
	v.SetDefault("memory.backoff_ms", 2000)

	v.SetDefault("reaper.startup_sweep_age_s", 3600)
	v.SetDefault("reaper.interval_s", 60)
	v.SetDefault("reaper.partial_retention_s", 300)
	v.SetDefault("reaper.audio_retention_s", 60)
	v.SetDefault("reaper.audit_log_max_bytes", 5*1024*1024)
	v.SetDefault("reaper.archive_retention_days", 7)

	v.SetDefault("status.interval_s", 1)

	v.SetDefault("model_variant", "base.en")
	v.SetDefault("model_path", "")
	v.SetDefault("use_stub_engine", false)
	v.SetDefault("language", "")
	v.SetDefault("punctuation", "auto")
}

// bindEnv makes every leaf key explicitly overridable by environment
// variable. AutomaticEnv alone only satisfies lookups viper already knows
// about; Unmarshal needs each nested key bound up front.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"log_level",
		"data_dir",
		"rendezvous.root_dir",
		"poll.producer_interval_ms",
		"poll.consumer_interval_ms",
		"timeouts.session_timeout_s",
		"memory.max_rss_mb",
		"memory.backoff_ms",
		"reaper.startup_sweep_age_s",
		"reaper.interval_s",
		"reaper.partial_retention_s",
		"reaper.audio_retention_s",
		"reaper.audit_log_max_bytes",
		"reaper.archive_retention_days",
		"status.interval_s",
		"model_variant",
		"model_path",
		"use_stub_engine",
		"language",
		"punctuation",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}
