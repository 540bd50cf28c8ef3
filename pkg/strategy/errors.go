package strategy

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is matched by *TimeoutError.
	ErrTimeout = errors.New("network timeout")

	// ErrCacheMiss is matched by *CacheMissError.
	ErrCacheMiss = errors.New("no cached response")
)

// TimeoutError is returned when NetworkFirst loses its race against the
// clock and no fallback applies.
type TimeoutError struct {
	URL   string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("network timeout after %s: %s", e.After, e.URL)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// CacheMissError is returned when no entry exists and no network fallback
// is allowed or available.
type CacheMissError struct {
	Namespace string
	URL       string
}

func (e *CacheMissError) Error() string {
	return fmt.Sprintf("no cached response for %s in %s", e.URL, e.Namespace)
}

func (e *CacheMissError) Is(target error) bool { return target == ErrCacheMiss }
