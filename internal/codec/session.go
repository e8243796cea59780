package codec

import "fmt"

// ValidateSessionID enforces the 1-100 character opaque session id bound
// from spec §3.
func ValidateSessionID(id string) error {
	if len(id) < 1 || len(id) > 100 {
		return validationError(fmt.Sprintf("session_id length %d out of range [1,100]", len(id)))
	}
	return nil
}
