package client

import (
	"errors"
	"fmt"
)

// ErrNetwork is matched by every *NetworkError via errors.Is.
var ErrNetwork = errors.New("network error")

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport and timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// NetworkError is returned when a fetch is rejected by the transport or the
// origin answers with a server error.
type NetworkError struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s error: %v", e.URL, e.ErrorClass, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s error (status %d)", e.URL, e.ErrorClass, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is makes every NetworkError match ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// IsRetryable reports whether replaying the same request later may succeed.
// Client errors are permanent; server and transport errors are not.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		return false
	}
	switch netErr.ErrorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
