package codec

import (
	"fmt"
	"time"
)

// ErrorKind enumerates the session/consumer-level error taxonomy from
// spec §7. It is distinct from the codec-level ErrKind and the
// rendezvous-level error kinds.
type ErrorKind string

const (
	ErrorModelLoadFailed       ErrorKind = "model-load-failed"
	ErrorAudioProcessingFailed ErrorKind = "audio-processing-failed"
	ErrorInferenceFailed       ErrorKind = "inference-failed"
	ErrorMemoryPressure        ErrorKind = "memory-pressure"
	ErrorInvalidAudioFormat    ErrorKind = "invalid-audio-format"
	ErrorTimeout               ErrorKind = "timeout"
	ErrorUnknown               ErrorKind = "unknown"
)

func (k ErrorKind) valid() bool {
	switch k {
	case ErrorModelLoadFailed, ErrorAudioProcessingFailed, ErrorInferenceFailed,
		ErrorMemoryPressure, ErrorInvalidAudioFormat, ErrorTimeout, ErrorUnknown:
		return true
	default:
		return false
	}
}

// NonRecoverableKinds are the error kinds spec §5 marks as non-recoverable
// at the session level.
var NonRecoverableKinds = map[ErrorKind]bool{
	ErrorMemoryPressure:  true,
	ErrorModelLoadFailed: true,
}

// ErrorRecord is published to control/error.json.
type ErrorRecord struct {
	ErrorKind   ErrorKind `json:"error_kind"`
	Description string    `json:"human_description"`
	SessionID   string    `json:"session_id,omitempty"`
	Recoverable bool      `json:"is_recoverable"`
	Timestamp   time.Time `json:"timestamp"`
}

// Validate implements Validatable.
func (e ErrorRecord) Validate() error {
	if !e.ErrorKind.valid() {
		return validationError(fmt.Sprintf("unknown error_kind %q", e.ErrorKind))
	}
	if e.Description == "" {
		return validationError("human_description must not be empty")
	}
	if e.SessionID != "" {
		if err := ValidateSessionID(e.SessionID); err != nil {
			return err
		}
	}
	return nil
}
