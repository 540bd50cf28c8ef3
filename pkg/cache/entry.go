// Package cache provides the namespaced request/response store used by the
// offline runtime, together with its capacity-based eviction.
package cache

import (
	"net/http"
	"time"
)

const (
	// HeaderStoredAt carries the moment a response snapshot was written to a
	// namespace. It is the freshness marker used for expiry and eviction.
	HeaderStoredAt = "X-Cache-Date"

	// HeaderStatus marks responses served by the runtime from a namespace.
	HeaderStatus = "X-Cache-Status"
)

// CacheEntry is a stored response snapshot for one GET request.
type CacheEntry struct {
	// Method and URL identify the request the snapshot answers.
	Method string `json:"method"`
	URL    string `json:"url"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers, including the stored-at marker
	Headers http.Header `json:"headers"`

	// Body is the response body
	Body []byte `json:"body"`
}

// StoredAt returns when the entry was written.
// The X-Cache-Date header wins; the standard Date header is used when it is
// missing. An entry without either marker is treated as written at the Unix
// epoch, which makes it the first candidate for eviction.
func (e *CacheEntry) StoredAt() time.Time {
	if e == nil || e.Headers == nil {
		return time.Unix(0, 0).UTC()
	}
	if v := e.Headers.Get(HeaderStoredAt); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	if v := e.Headers.Get("Date"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			return t
		}
	}
	return time.Unix(0, 0).UTC()
}

// Age returns how long ago the entry was stored, relative to now.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt())
}

// IsExpired reports whether the entry is older than maxAge.
// A zero maxAge means the entry never expires.
func (e *CacheEntry) IsExpired(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return e.Age(now) > maxAge
}

// Stamp records now as the entry's stored-at marker.
func (e *CacheEntry) Stamp(now time.Time) {
	if e.Headers == nil {
		e.Headers = make(http.Header)
	}
	e.Headers.Set(HeaderStoredAt, now.UTC().Format(time.RFC3339Nano))
}
