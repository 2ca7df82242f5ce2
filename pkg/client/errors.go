package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrSessionExpired signals that the refresh budget is exhausted and the
// caller must re-authenticate. The client has already forced sign-out by the
// time this surfaces.
var ErrSessionExpired = errors.New("client: session expired")

// ErrClientClosed is returned for refresh attempts after Close.
var ErrClientClosed = errors.New("client: closed")

// APIError carries the HTTP status and a best-effort message extracted from
// the backend's JSON error body. Engines surface Message verbatim to users.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: api error %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// extractMessage pulls a human-readable message out of a JSON error body,
// falling back to the HTTP status text when the body is not JSON or carries no
// recognized message member. This fallback is the one place a parse failure is
// deliberately swallowed.
func extractMessage(body []byte, status int) string {
	fallback := http.StatusText(status)
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fallback
	}

	var envelope struct {
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return fallback
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	if envelope.Detail != "" {
		return envelope.Detail
	}
	if len(envelope.Error) > 0 {
		// Either a bare string or the {code, message} envelope the AI
		// endpoint returns.
		var s string
		if json.Unmarshal(envelope.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return fallback
}
