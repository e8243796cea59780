package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STTCOORD_RENDEZVOUS_ROOT_DIR", "/tmp/sttcoord-rendezvous")

	cfg, err := Loader{}.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.ProducerIntervalMS != 100 {
		t.Fatalf("expected default producer interval 100, got %d", cfg.Poll.ProducerIntervalMS)
	}
	if cfg.Poll.ConsumerIntervalMS != 50 {
		t.Fatalf("expected default consumer interval 50, got %d", cfg.Poll.ConsumerIntervalMS)
	}
	if cfg.Timeouts.SessionTimeoutS != 10 {
		t.Fatalf("expected default session timeout 10, got %d", cfg.Timeouts.SessionTimeoutS)
	}
	if cfg.ModelVariant != "base.en" {
		t.Fatalf("expected default model variant base.en, got %q", cfg.ModelVariant)
	}
	if cfg.Punctuation != "auto" {
		t.Fatalf("expected default punctuation auto, got %q", cfg.Punctuation)
	}
}

func TestLoadRequiresRendezvousRoot(t *testing.T) {
	if _, err := (Loader{}).Load(); err == nil {
		t.Fatal("expected error when rendezvous.root_dir is unset")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
rendezvous:
  root_dir: /var/run/sttcoord
poll:
  consumer_interval_ms: 25
use_stub_engine: true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Loader{ConfigFile: path}.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Rendezvous.RootDir != "/var/run/sttcoord" {
		t.Fatalf("expected root dir from file, got %q", cfg.Rendezvous.RootDir)
	}
	if cfg.Poll.ConsumerIntervalMS != 25 {
		t.Fatalf("expected overridden consumer interval 25, got %d", cfg.Poll.ConsumerIntervalMS)
	}
	if !cfg.UseStubEngine {
		t.Fatal("expected use_stub_engine true from file")
	}
}

func TestLoadRejectsBadPunctuation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
rendezvous:
  root_dir: /var/run/sttcoord
punctuation: loud
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := (Loader{ConfigFile: path}).Load(); err == nil {
		t.Fatal("expected error for invalid punctuation mode")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("STTCOORD_RENDEZVOUS_ROOT_DIR", "/tmp/sttcoord-rendezvous")
	t.Setenv("STTCOORD_MODEL_VARIANT", "small.en")

	cfg, err := Loader{}.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ModelVariant != "small.en" {
		t.Fatalf("expected env override small.en, got %q", cfg.ModelVariant)
	}
}
