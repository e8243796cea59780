// Package codec defines the canonical wire records exchanged through the
// rendezvous directory and their validation rules. Every record type has a
// Validate method that must pass before a reader acts on it; failures are
// always surfaced, never silently dropped (spec §4.2, §7).
package codec

import "encoding/json"

// Validatable is implemented by every record type in this package.
type Validatable interface {
	Validate() error
}

// Encode serialises v as canonical JSON. Timestamps are encoded as ISO-8601
// (RFC3339Nano, a strict subset) because every record embeds time.Time
// fields, whose default json.Marshal behaviour already produces that
// format.
func Encode(v Validatable) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, encodingError(err)
	}
	return data, nil
}

// Decode parses data into v and validates the result. v must be a pointer
// to one of the record types in this package.
func Decode(data []byte, v Validatable) error {
	if err := json.Unmarshal(data, v); err != nil {
		return decodingError(err)
	}
	return v.Validate()
}

// DecodeLenient parses data into v without validating. Callers that need to
// inspect a malformed record (e.g. to log which field is bad) before
// deciding whether to delete it use this instead of Decode.
func DecodeLenient(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return decodingError(err)
	}
	return nil
}
