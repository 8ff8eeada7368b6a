package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized reports a rejected or expired token (401 only). Callers
// treat it as a signal to drop the session and return to the login flow.
// A 403 is a permission denial for a logged-in user and stays a plain
// APIError.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx server reply with its extracted message.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status, Message: extractMessage(body)}
	if status == http.StatusUnauthorized {
		apiErr.Err = ErrUnauthorized
	}
	return apiErr
}

// extractMessage pulls a human-readable message out of the error body.
// The server emits either {"error": "..."} or {"errors": ["...", ...]}.
func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var shape struct {
		Error   string   `json:"error"`
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return strings.TrimSpace(string(body))
	}

	switch {
	case shape.Error != "":
		return shape.Error
	case shape.Message != "":
		return shape.Message
	case len(shape.Errors) > 0:
		return strings.Join(shape.Errors, "; ")
	default:
		return ""
	}
}
