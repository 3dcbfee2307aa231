package client

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrTransport        = errors.New("upstream unreachable")
	ErrCircuitOpen      = errors.New("circuit breaker open")
)

// NotFoundError reports that the provider does not know the requested location.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("location %q not found", e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrLocationNotFound }

// UpstreamError reports a reachable provider answering with a non-success status.
// Err, when set, carries the underlying cause (a decode failure or an open circuit).
type UpstreamError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: HTTP %d: %v", ErrUpstreamFailure, e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: HTTP %d", ErrUpstreamFailure, e.Endpoint, e.Status)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstreamFailure, e.Err}
	}
	return []error{ErrUpstreamFailure}
}

// TransportError reports a network failure or timeout before any response arrived.
type TransportError struct {
	Endpoint string
	Timeout  bool
	Err      error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: %s: request timeout: %v", ErrTransport, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }
