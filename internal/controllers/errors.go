package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/adamanr/hr_console/internal/entity"
	"github.com/adamanr/hr_console/internal/schema"
	"github.com/adamanr/hr_console/internal/transport"
)

var (
	ErrNoEmployee = errors.New("no employee in session")
	// ErrRejected is a 2xx response whose envelope reports success=false.
	ErrRejected = errors.New("request rejected by server")
)

// Error carries the message shown to the user and the underlying cause.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// errorState keeps the last user-facing error of a controller.
type errorState struct {
	mu      sync.RWMutex
	message string
}

func (s *errorState) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.message
}

func (s *errorState) clearError() {
	s.mu.Lock()
	s.message = ""
	s.mu.Unlock()
}

// fail logs err once, records its message and returns it as *Error.
func (s *errorState) fail(logger *slog.Logger, logMsg, fallback string, err error) error {
	var cErr *Error
	if !errors.As(err, &cErr) {
		cErr = &Error{Message: userMessage(err, fallback), Err: err}
	}

	logger.Error(logMsg, slog.String("error", err.Error()))

	s.mu.Lock()
	s.message = cErr.Message
	s.mu.Unlock()

	return cErr
}

func userMessage(err error, fallback string) string {
	var apiErr *transport.APIError
	var vErr *schema.ValidationError

	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &vErr):
		return vErr.Error()
	case errors.Is(err, ErrNoEmployee):
		return "User ID is required"
	case errors.Is(err, ErrNoPhoto):
		return "Photo is required"
	case errors.Is(err, context.Canceled):
		return "Request canceled"
	default:
		return fallback
	}
}

// checkEnvelope turns success=false into an *Error with the server's message.
func checkEnvelope(env *entity.Envelope[json.RawMessage], fallback string) error {
	if env.Success {
		return nil
	}

	msg := env.Message
	if msg == "" {
		msg = fallback
	}

	return &Error{Message: msg, Err: ErrRejected}
}
