package cache

import (
	"net/http"
	"testing"
	"time"
)

func TestCacheEntry_StoredAt(t *testing.T) {
	stamped := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	dated := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		headers http.Header
		want    time.Time
	}{
		{
			name:    "stored-at marker",
			headers: http.Header{HeaderStoredAt: []string{stamped.Format(time.RFC3339Nano)}},
			want:    stamped,
		},
		{
			name:    "marker wins over date",
			headers: http.Header{HeaderStoredAt: []string{stamped.Format(time.RFC3339Nano)}, "Date": []string{dated.Format(http.TimeFormat)}},
			want:    stamped,
		},
		{
			name:    "date header fallback",
			headers: http.Header{"Date": []string{dated.Format(http.TimeFormat)}},
			want:    dated,
		},
		{
			name:    "no marker is epoch zero",
			headers: http.Header{},
			want:    time.Unix(0, 0),
		},
		{
			name:    "unparseable marker is epoch zero",
			headers: http.Header{HeaderStoredAt: []string{"yesterday"}},
			want:    time.Unix(0, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Headers: tt.headers}
			if got := entry.StoredAt(); !got.Equal(tt.want) {
				t.Errorf("StoredAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_IsExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		stored time.Time
		maxAge time.Duration
		want   bool
	}{
		{name: "fresh", stored: now.Add(-time.Minute), maxAge: 5 * time.Minute, want: false},
		{name: "exactly max age", stored: now.Add(-5 * time.Minute), maxAge: 5 * time.Minute, want: false},
		{name: "expired", stored: now.Add(-6 * time.Minute), maxAge: 5 * time.Minute, want: true},
		{name: "no max age never expires", stored: now.Add(-24 * 365 * time.Hour), maxAge: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{}
			entry.Stamp(tt.stored)
			if got := entry.IsExpired(now, tt.maxAge); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_StampCreatesHeaders(t *testing.T) {
	entry := &CacheEntry{}
	now := time.Now()
	entry.Stamp(now)

	if entry.Headers.Get(HeaderStoredAt) == "" {
		t.Fatal("Stamp() did not set the stored-at header")
	}
	if !entry.StoredAt().Equal(now) {
		t.Errorf("StoredAt() = %v, want %v", entry.StoredAt(), now)
	}
}
