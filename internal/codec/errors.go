package codec

import "fmt"

// ErrKind classifies codec-level failures distinctly from the record-level
// error taxonomy carried inside an ErrorRecord.
type ErrKind string

const (
	ErrEncodingFailed   ErrKind = "encoding-failed"
	ErrDecodingFailed   ErrKind = "decoding-failed"
	ErrValidationFailed ErrKind = "validation-failed"
)

// Error wraps a codec failure with its kind and, for validation failures,
// the specific reason the record was rejected.
type Error struct {
	Kind   ErrKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("codec: %s: %s", e.Kind, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("codec: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("codec: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func validationError(reason string) error {
	return &Error{Kind: ErrValidationFailed, Reason: reason}
}

func encodingError(err error) error {
	return &Error{Kind: ErrEncodingFailed, Err: err}
}

func decodingError(err error) error {
	return &Error{Kind: ErrDecodingFailed, Err: err}
}
