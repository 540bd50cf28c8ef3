package strategy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/offline-runtime/pkg/cache"
	"github.com/Sternrassler/offline-runtime/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Values of the X-Cache-Status header on responses served from a namespace.
const (
	StatusHit     = "HIT"
	StatusStale   = "STALE"
	StatusOffline = "OFFLINE"
)

// DefaultOfflinePath is the precached document served to failed navigations.
const DefaultOfflinePath = "/offline.html"

// DefaultBackgroundTimeout bounds background revalidation fetches.
const DefaultBackgroundTimeout = 30 * time.Second

// Fetcher performs network requests. Implementations must honour ctx.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*http.Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

// Options configures an Engine.
type Options struct {
	Store      cache.Store
	Fetcher    Fetcher
	Registry   *Registry
	Namespaces cache.Namespaces

	// OfflinePath is resolved against the request URL. Empty selects
	// DefaultOfflinePath.
	OfflinePath string

	// BackgroundTimeout bounds stale-while-revalidate refreshes.
	BackgroundTimeout time.Duration

	// Now overrides the clock (tests).
	Now func() time.Time

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// Engine matches requests against the registry and executes strategies.
type Engine struct {
	store             cache.Store
	fetcher           Fetcher
	registry          *Registry
	names             cache.Namespaces
	offlinePath       string
	backgroundTimeout time.Duration
	now               func() time.Time
	logger            zerolog.Logger

	group      singleflight.Group
	background sync.WaitGroup
}

// NewEngine creates a strategy engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.OfflinePath == "" {
		opts.OfflinePath = DefaultOfflinePath
	}
	if opts.BackgroundTimeout <= 0 {
		opts.BackgroundTimeout = DefaultBackgroundTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := logging.NewLogger("strategy")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Engine{
		store:             opts.Store,
		fetcher:           opts.Fetcher,
		registry:          opts.Registry,
		names:             opts.Namespaces,
		offlinePath:       opts.OfflinePath,
		backgroundTimeout: opts.BackgroundTimeout,
		now:               opts.Now,
		logger:            logger,
	}, nil
}

// Registry returns the engine's strategy table.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Handle answers an intercepted request.
//
// Non-GET requests and requests matching no rule go straight to the network
// and are never cached.
func (e *Engine) Handle(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		strategyRequestsTotal.WithLabelValues("passthrough", "method").Inc()
		return e.fetcher.Fetch(ctx, req)
	}

	cfg, ok := e.registry.Match(req)
	if !ok {
		strategyRequestsTotal.WithLabelValues("passthrough", "unmatched").Inc()
		return e.fetcher.Fetch(ctx, req)
	}

	run, ok := executors[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("no executor for strategy %q", cfg.Kind)
	}

	var ns cache.Namespace
	if cfg.Kind != NetworkOnly {
		var err error
		ns, err = e.store.Open(ctx, e.names.Name(cfg.Role))
		if err != nil {
			// Store unavailable: answer from the network rather than fail.
			e.logger.Warn().Err(err).Str("rule", cfg.Name).Msg("Cache store unavailable, bypassing")
			strategyRequestsTotal.WithLabelValues(string(cfg.Kind), "store_error").Inc()
			return e.fetcher.Fetch(ctx, req)
		}
	}

	start := time.Now()
	resp, err := run(ctx, e, req, ns, cfg)
	strategyDuration.WithLabelValues(string(cfg.Kind)).Observe(time.Since(start).Seconds())

	outcome := "network"
	switch {
	case err != nil:
		outcome = "error"
	case resp != nil && resp.Header.Get(cache.HeaderStatus) != "":
		outcome = strings.ToLower(resp.Header.Get(cache.HeaderStatus))
	}
	strategyRequestsTotal.WithLabelValues(string(cfg.Kind), outcome).Inc()

	e.logger.Debug().
		Str("rule", cfg.Name).
		Str("strategy", string(cfg.Kind)).
		Str("url", req.URL.String()).
		Str("outcome", outcome).
		Msg("Request handled")

	return resp, err
}

// Wait blocks until all background revalidations have finished.
func (e *Engine) Wait() {
	e.background.Wait()
}

// lookup returns the entry for key or nil. Store errors count as a miss.
func (e *Engine) lookup(ctx context.Context, ns cache.Namespace, key string) *cache.CacheEntry {
	entry, err := ns.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			e.logger.Warn().Err(err).Str("namespace", ns.Name()).Str("key", key).Msg("Cache get error")
		}
		cache.CacheMisses.WithLabelValues(ns.Name()).Inc()
		return nil
	}
	return entry
}

// serve turns a cache entry into a response marked with status.
func (e *Engine) serve(ns cache.Namespace, entry *cache.CacheEntry, req *http.Request, status string) *http.Response {
	resp := cache.EntryToResponse(entry, req)
	resp.Header.Set(cache.HeaderStatus, status)
	cache.CacheHits.WithLabelValues(ns.Name(), strings.ToLower(status)).Inc()
	return resp
}

// write stores entry and trims the namespace to the rule's capacity.
// Failures are logged; a response that could not be cached is still served.
func (e *Engine) write(ctx context.Context, ns cache.Namespace, key string, entry *cache.CacheEntry, cfg Config) {
	if err := ns.Put(ctx, key, entry); err != nil {
		e.logger.Warn().Err(err).Str("namespace", ns.Name()).Str("key", key).Msg("Failed to cache response")
		return
	}
	cache.CacheWrites.WithLabelValues(ns.Name()).Inc()

	evicted, err := cache.Trim(ctx, ns, cfg.MaxEntries)
	if err != nil {
		e.logger.Warn().Err(err).Str("namespace", ns.Name()).Msg("Eviction failed")
		return
	}
	if evicted > 0 {
		e.logger.Debug().
			Str("namespace", ns.Name()).
			Int("evicted", evicted).
			Int("max_entries", cfg.MaxEntries).
			Msg("Evicted oldest entries")
	}
}

// fetchAndStore fetches req and writes successful responses through to ns.
func (e *Engine) fetchAndStore(ctx context.Context, req *http.Request, ns cache.Namespace, cfg Config) (*http.Response, error) {
	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.storeResponse(ctx, req, resp, ns, cfg), nil
}

// storeResponse writes a cacheable response to ns and returns it with its
// body restored.
func (e *Engine) storeResponse(ctx context.Context, req *http.Request, resp *http.Response, ns cache.Namespace, cfg Config) *http.Response {
	if !cache.IsCacheable(resp) {
		return resp
	}
	entry, err := cache.ResponseToEntry(req, resp, e.now())
	if err != nil {
		e.logger.Warn().Err(err).Str("url", req.URL.String()).Msg("Failed to create cache entry")
		return resp
	}
	e.write(ctx, ns, cache.RequestKey(req), entry, cfg)
	return resp
}

// offline returns the offline document for navigation requests.
func (e *Engine) offline(ctx context.Context, req *http.Request) (*http.Response, bool) {
	if !IsNavigation(req) {
		return nil, false
	}

	ref, err := url.Parse(e.offlinePath)
	if err != nil {
		return nil, false
	}
	target := req.URL.ResolveReference(ref)

	ns, err := e.store.Open(ctx, e.names.Name(cache.RoleStatic))
	if err != nil {
		return nil, false
	}
	entry := e.lookup(ctx, ns, cache.URLKey(http.MethodGet, target))
	if entry == nil {
		return nil, false
	}

	e.logger.Info().Str("url", req.URL.String()).Msg("Serving offline document")
	return e.serve(ns, entry, req, StatusOffline), true
}

// IsNavigation reports whether req loads a top-level document.
func IsNavigation(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if mode := req.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

// bufferBody reads the response body into memory so the response outlives
// the context it was fetched with.
func bufferBody(resp *http.Response) error {
	if resp.Body == nil {
		resp.Body = http.NoBody
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return nil
}
