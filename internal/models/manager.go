package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Manager resolves and, when necessary, downloads model files into a
// models/ subdirectory of a base data directory.
type Manager struct {
	baseDir   string
	modelsDir string
	log       *slog.Logger
	client    *http.Client
}

// NewManager creates the models/ subdirectory of baseDir if absent and
// returns a Manager rooted there.
func NewManager(baseDir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	modelsDir := filepath.Join(baseDir, "models")
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("models: create models dir: %w", err)
	}
	return &Manager{
		baseDir:   baseDir,
		modelsDir: modelsDir,
		log:       logger.With("component", "models.Manager"),
		client:    &http.Client{Timeout: 15 * time.Minute},
	}, nil
}

// ModelsDir returns the directory model files are stored in.
func (m *Manager) ModelsDir() string { return m.modelsDir }

// Resolve returns the local path for variant, preferring override when
// non-empty. It never downloads; use EnsureVariant for that.
func (m *Manager) Resolve(variant, override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("models: resolve override %q: %w", override, err)
		}
		return override, nil
	}
	manifest, err := DefaultManifest()
	if err != nil {
		return "", err
	}
	v, ok := manifest.Variants[variant]
	if !ok {
		return "", fmt.Errorf("models: unknown variant %q", variant)
	}
	path := filepath.Join(m.modelsDir, v.Filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("models: variant %q not present locally: %w", variant, err)
	}
	return path, nil
}

// EnsureOptions configures EnsureVariant.
type EnsureOptions struct {
	Manifest Manifest
	Override string
}

// EnsureVariant returns the local path for variant, downloading and
// checksumming it against opts.Manifest if it is not already present.
// opts.Override, if set, always wins and is never downloaded.
func (m *Manager) EnsureVariant(ctx context.Context, variant string, opts EnsureOptions) (string, error) {
	if strings.TrimSpace(opts.Override) != "" {
		if _, err := os.Stat(opts.Override); err != nil {
			return "", fmt.Errorf("models: override path %q: %w", opts.Override, err)
		}
		return opts.Override, nil
	}

	v, ok := opts.Manifest.Variants[variant]
	if !ok {
		return "", fmt.Errorf("models: unknown variant %q", variant)
	}

	path := filepath.Join(m.modelsDir, v.Filename)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}

	if v.URL == "" {
		return "", fmt.Errorf("models: variant %q has no download url and is not present locally", variant)
	}

	m.log.Info("downloading model variant", "variant", variant, "url", v.URL)
	if err := m.download(ctx, v, path); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Manager) download(ctx context.Context, v Variant, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.URL, nil)
	if err != nil {
		return fmt.Errorf("models: build request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("models: download %q: %w", v.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("models: download %q: unexpected status %s", v.URL, resp.Status)
	}

	tmp, err := os.CreateTemp(m.modelsDir, ".download-*")
	if err != nil {
		return fmt.Errorf("models: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("models: write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("models: close download: %w", err)
	}

	if v.SHA256 != "" {
		sum := hex.EncodeToString(hasher.Sum(nil))
		if sum != v.SHA256 {
			return fmt.Errorf("models: checksum mismatch for %q: want %s, got %s", v.Filename, v.SHA256, sum)
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("models: install %q: %w", dest, err)
	}
	return nil
}
