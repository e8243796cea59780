package codec

import "fmt"

// PunctuationMode controls the Inference Orchestrator's post-processing
// pass over partial and final transcript text.
type PunctuationMode string

const (
	PunctuationAuto     PunctuationMode = "auto"
	PunctuationNone     PunctuationMode = "none"
	PunctuationSentence PunctuationMode = "sentence"
)

func (p PunctuationMode) valid() bool {
	switch p {
	case PunctuationAuto, PunctuationNone, PunctuationSentence:
		return true
	default:
		return false
	}
}

const (
	minChunkSizeMS         = 50
	maxChunkSizeMS         = 1000
	minSessionDurationSecs = 1
	maxSessionDurationSecs = 300
)

// Settings is the Producer-writable, Consumer-readable configuration
// record stored at settings/settings.json (spec §3).
type Settings struct {
	PunctuationMode     PunctuationMode `json:"punctuation_mode"`
	Language            string          `json:"language,omitempty"`
	VADEnabled          bool            `json:"vad_enabled"`
	VADThreshold        float64         `json:"vad_threshold"`
	StreamingEnabled    bool            `json:"streaming_enabled"`
	ChunkSizeMS         int             `json:"chunk_size_ms"`
	MaxSessionDurationS int             `json:"max_session_duration_s"`
}

// DefaultSettings returns the settings record a Producer writes before its
// first session if none exists yet.
func DefaultSettings() Settings {
	return Settings{
		PunctuationMode:     PunctuationAuto,
		VADEnabled:          true,
		VADThreshold:        0.5,
		StreamingEnabled:    true,
		ChunkSizeMS:         200,
		MaxSessionDurationS: 60,
	}
}

// Validate implements Validatable.
func (s Settings) Validate() error {
	if !s.PunctuationMode.valid() {
		return validationError(fmt.Sprintf("unknown punctuation_mode %q", s.PunctuationMode))
	}
	if s.Language != "" && len(s.Language) != 2 {
		return validationError(fmt.Sprintf("language %q must be a 2-character code or absent", s.Language))
	}
	if s.VADThreshold < 0 || s.VADThreshold > 1 {
		return validationError(fmt.Sprintf("vad_threshold %f out of range [0,1]", s.VADThreshold))
	}
	if s.ChunkSizeMS < minChunkSizeMS || s.ChunkSizeMS > maxChunkSizeMS {
		return validationError(fmt.Sprintf("chunk_size_ms %d out of range [%d,%d]", s.ChunkSizeMS, minChunkSizeMS, maxChunkSizeMS))
	}
	if s.MaxSessionDurationS < minSessionDurationSecs || s.MaxSessionDurationS > maxSessionDurationSecs {
		return validationError(fmt.Sprintf("max_session_duration_s %d out of range [%d,%d]", s.MaxSessionDurationS, minSessionDurationSecs, maxSessionDurationSecs))
	}
	return nil
}
