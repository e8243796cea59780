package codec

import (
	"fmt"
	"time"
)

// AudioFormat identifies the sample encoding of a chunk's PCM payload.
type AudioFormat string

const (
	FormatPCM16   AudioFormat = "pcm16"
	FormatFloat32 AudioFormat = "float32"
)

func (f AudioFormat) valid() bool {
	switch f {
	case FormatPCM16, FormatFloat32:
		return true
	default:
		return false
	}
}

// BytesPerSample returns the on-disk sample width for the format.
func (f AudioFormat) BytesPerSample() int {
	switch f {
	case FormatFloat32:
		return 4
	default:
		return 2
	}
}

const (
	requiredSampleRate = 16000
	requiredChannels   = 1
	maxChunkDuration   = 10.0
	maxTimestampDrift  = 300 * time.Second
	sizeTolerance      = 0.10
)

// ChunkMetadata describes one audio chunk, independent of the sibling PCM
// file's bytes.
type ChunkMetadata struct {
	SessionID       string      `json:"session_id"`
	ChunkID         int         `json:"chunk_id"`
	SampleRate      int         `json:"sample_rate"`
	Channels        int         `json:"channels"`
	Format          AudioFormat `json:"format"`
	DurationSeconds float64     `json:"duration_seconds"`
	Timestamp       time.Time   `json:"timestamp"`
	IsLastChunk     bool        `json:"is_last_chunk"`
}

// ChunkFile is the JSON document stored at audio/chunk_<sid>_<cid>.json,
// pairing metadata with the name of the sibling PCM file (spec §6).
type ChunkFile struct {
	Metadata    ChunkMetadata `json:"metadata"`
	PCMFilename string        `json:"pcm_filename"`
}

// Validate checks every field-level invariant from spec §3 except the
// timestamp drift bound, which requires a wall clock and is checked by
// ValidateAt.
func (m ChunkMetadata) Validate() error {
	return m.validate(nil)
}

// ValidateAt additionally enforces the ±300s timestamp drift bound against
// now, the consumer's wall clock at observation time.
func (m ChunkMetadata) ValidateAt(now time.Time) error {
	return m.validate(&now)
}

func (m ChunkMetadata) validate(now *time.Time) error {
	if err := ValidateSessionID(m.SessionID); err != nil {
		return err
	}
	if m.ChunkID < 0 {
		return validationError(fmt.Sprintf("chunk_id %d must be >= 0", m.ChunkID))
	}
	if m.SampleRate != requiredSampleRate {
		return validationError(fmt.Sprintf("sample_rate %d must equal %d", m.SampleRate, requiredSampleRate))
	}
	if m.Channels != requiredChannels {
		return validationError(fmt.Sprintf("channels %d must equal %d", m.Channels, requiredChannels))
	}
	if !m.Format.valid() {
		return validationError(fmt.Sprintf("unknown format %q", m.Format))
	}
	if m.DurationSeconds <= 0 || m.DurationSeconds > maxChunkDuration {
		return validationError(fmt.Sprintf("duration_seconds %f out of range (0,%g]", m.DurationSeconds, maxChunkDuration))
	}
	if now != nil {
		drift := m.Timestamp.Sub(*now)
		if drift < 0 {
			drift = -drift
		}
		if drift > maxTimestampDrift {
			return validationError(fmt.Sprintf("timestamp drift %s exceeds %s", drift, maxTimestampDrift))
		}
	}
	return nil
}

// Validate implements Validatable for the on-disk envelope.
func (f ChunkFile) Validate() error {
	if f.PCMFilename == "" {
		return validationError("pcm_filename must not be empty")
	}
	return f.Metadata.Validate()
}

// ExpectedPCMBytes returns the byte length the metadata predicts for the
// sibling PCM payload.
func (m ChunkMetadata) ExpectedPCMBytes() int {
	return int(m.DurationSeconds * float64(m.SampleRate) * float64(m.Channels) * float64(m.Format.BytesPerSample()))
}

// ValidateChunkSize checks the sibling PCM file's actual byte length
// against the metadata-predicted size within the ±10% tolerance from
// spec §3.
func ValidateChunkSize(m ChunkMetadata, actualBytes int) error {
	expected := m.ExpectedPCMBytes()
	if expected <= 0 {
		return validationError("expected byte length must be positive")
	}
	lower := float64(expected) * (1 - sizeTolerance)
	upper := float64(expected) * (1 + sizeTolerance)
	if float64(actualBytes) < lower || float64(actualBytes) > upper {
		return validationError(fmt.Sprintf("pcm size %d outside tolerance of expected %d (+/-%.0f%%)", actualBytes, expected, sizeTolerance*100))
	}
	return nil
}
