package clinicapi

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is the opaque "session is no longer valid" signal. The
// wizards treat it as a cue to abandon the flow; they never try to refresh
// credentials themselves.
var ErrUnauthorized = errors.New("clinicapi: unauthorized")

// genericMessage is shown when the backend fails without a usable message.
const genericMessage = "Something went wrong. Please try again."

// APIError is a non-2xx backend response. Message carries the backend's
// own text when it supplied one, so write-path failures can be surfaced to
// the user verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clinicapi: status %d: %s", e.Status, e.Message)
}

// UserMessage returns the text to show the user: the backend's message
// when present, a generic fallback otherwise.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return genericMessage
}
