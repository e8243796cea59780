// Package models resolves the on-disk location of a named Whisper model
// variant, downloading and checksumming it against the manifest when it is
// not already present. The manifest itself and any override the Consumer's
// bootstrap config supplies are the only inputs; loading a model file into
// an inference context is the external primitive's job (spec §6).
package models

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed embedded_manifest.yaml
var embeddedManifest []byte

// Variant describes one downloadable model file.
type Variant struct {
	DisplayName string `yaml:"display_name"`
	Filename    string `yaml:"filename"`
	URL         string `yaml:"url"`
	SHA256      string `yaml:"sha256,omitempty"`
	SizeBytes   int64  `yaml:"size_bytes,omitempty"`
}

// Manifest maps a variant name (e.g. "base.en") to its Variant.
type Manifest struct {
	Variants map[string]Variant `yaml:"variants"`
}

// LoadManifest parses a manifest document.
func LoadManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("models: decode manifest: %w", err)
	}
	return m, nil
}

// DefaultManifest returns the manifest bundled with the binary.
func DefaultManifest() (Manifest, error) {
	return LoadManifest(bytes.NewReader(embeddedManifest))
}
