package proxy

import (
	"errors"
	"fmt"
)

// Sentinel errors for forwarding.
var (
	// ErrBackendUnavailable indicates the backend could not be reached or
	// failed before sending a response.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrInvalidTarget indicates the configured backend URL is unusable.
	ErrInvalidTarget = errors.New("invalid backend target")
)

// ForwardError describes a failed forward.
type ForwardError struct {
	Method string
	Path   string
	Target string
	Cause  error
}

// Error implements error.
func (e *ForwardError) Error() string {
	return fmt.Sprintf("forward %s %s to %s: %v", e.Method, e.Path, e.Target, e.Cause)
}

// Unwrap returns the cause.
func (e *ForwardError) Unwrap() error {
	return e.Cause
}

// Is matches ErrBackendUnavailable.
func (e *ForwardError) Is(target error) bool {
	return target == ErrBackendUnavailable
}
