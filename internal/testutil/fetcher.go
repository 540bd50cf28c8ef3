package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrOffline is returned by a FakeFetcher switched offline.
var ErrOffline = errors.New("fake network offline")

// FakeFetcher is an in-process network stand-in. It serves canned bodies per
// URL, counts calls, and can delay (globally or per MockResponse.Delay) or
// fail every fetch. A delayed fetch honours context cancellation.
type FakeFetcher struct {
	mu        sync.Mutex
	responses map[string]MockResponse
	calls     map[string]int
	total     int
	offline   bool
	delay     time.Duration
	release   chan struct{}
}

// NewFakeFetcher creates a fetcher with no configured URLs. Unknown URLs
// answer 404.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		responses: make(map[string]MockResponse),
		calls:     make(map[string]int),
	}
}

// Set configures the response for an absolute URL.
func (f *FakeFetcher) Set(url string, resp MockResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = resp
}

// SetOffline makes every subsequent fetch fail with ErrOffline.
func (f *FakeFetcher) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// SetDelay delays every subsequent fetch by d.
func (f *FakeFetcher) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Block makes every subsequent fetch wait until Release is called.
func (f *FakeFetcher) Block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.release = make(chan struct{})
}

// Release unblocks fetches held by Block.
func (f *FakeFetcher) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.release != nil {
		close(f.release)
		f.release = nil
	}
}

// Calls returns how many fetches were made for a URL.
func (f *FakeFetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// Total returns how many fetches were made.
func (f *FakeFetcher) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// Fetch implements the runtime's network interface.
func (f *FakeFetcher) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	url := req.URL.String()

	f.mu.Lock()
	f.calls[url]++
	f.total++
	offline := f.offline
	delay := f.delay
	release := f.release
	resp, ok := f.responses[url]
	f.mu.Unlock()

	if ok && resp.Delay > delay {
		delay = resp.Delay
	}

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if offline {
		return nil, ErrOffline
	}
	if !ok {
		resp = NewNotFoundResponse()
	}

	header := make(http.Header)
	for k, v := range resp.Headers {
		header.Set(k, v)
	}
	return &http.Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader([]byte(resp.Body))),
		Request:    req,
	}, nil
}
