package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMalformedResponse = errors.New("response is not a JSON object")
	ErrInvalidBaseURL    = errors.New("invalid API base URL")
)

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	return HasStatus(err, http.StatusNotFound)
}

func IsUnauthorized(err error) bool {
	return HasStatus(err, http.StatusUnauthorized)
}

func HasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// newAPIError prefers the server's message and falls back to a generic one.
func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = messageText(payload.Message)
		if msg == "" && payload.Error != nil {
			msg = payload.Error.Message
		}
	}

	if strings.TrimSpace(msg) == "" {
		msg = fmt.Sprintf("request failed with status %d", status)
	}

	return &APIError{StatusCode: status, Message: msg}
}

// messageText accepts a string message or a list of strings.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}

	return ""
}
