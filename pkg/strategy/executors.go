package strategy

import (
	"context"
	"net/http"
	"time"

	"github.com/Sternrassler/offline-runtime/pkg/cache"
)

// executor runs one caching algorithm. ns is nil for NetworkOnly.
type executor func(ctx context.Context, e *Engine, req *http.Request, ns cache.Namespace, cfg Config) (*http.Response, error)

var executors = map[Kind]executor{
	CacheFirst:           cacheFirst,
	NetworkFirst:         networkFirst,
	StaleWhileRevalidate: staleWhileRevalidate,
	NetworkOnly:          networkOnly,
	CacheOnly:            cacheOnly,
}

// cacheFirst serves a fresh entry without touching the network. Otherwise it
// fetches and writes through; on network failure a stale entry beats the
// offline document.
func cacheFirst(ctx context.Context, e *Engine, req *http.Request, ns cache.Namespace, cfg Config) (*http.Response, error) {
	cached := e.lookup(ctx, ns, cache.RequestKey(req))
	if cached != nil && !cached.IsExpired(e.now(), cfg.MaxAge) {
		return e.serve(ns, cached, req, StatusHit), nil
	}

	resp, err := e.fetchAndStore(ctx, req, ns, cfg)
	if err == nil {
		return resp, nil
	}

	if cached != nil {
		e.logger.Warn().Err(err).Str("url", req.URL.String()).Msg("Network failed, serving stale entry")
		return e.serve(ns, cached, req, StatusStale), nil
	}
	if resp, ok := e.offline(ctx, req); ok {
		return resp, nil
	}
	return nil, err
}

// networkFirst races the network against cfg.NetworkTimeout and falls back
// to any cached entry, then to the offline document.
func networkFirst(ctx context.Context, e *Engine, req *http.Request, ns cache.Namespace, cfg Config) (*http.Response, error) {
	resp, err := e.race(ctx, req, ns, cfg)
	if err == nil {
		return resp, nil
	}

	if cached := e.lookup(ctx, ns, cache.RequestKey(req)); cached != nil {
		status := StatusStale
		if !cached.IsExpired(e.now(), cfg.MaxAge) {
			status = StatusHit
		}
		e.logger.Warn().Err(err).Str("url", req.URL.String()).Str("status", status).Msg("Network failed, serving cached entry")
		return e.serve(ns, cached, req, status), nil
	}
	if resp, ok := e.offline(ctx, req); ok {
		return resp, nil
	}
	return nil, err
}

// race fetches req under a timer. The body is read inside the race so a slow
// body counts against the timeout; the losing fetch is cancelled.
func (e *Engine) race(ctx context.Context, req *http.Request, ns cache.Namespace, cfg Config) (*http.Response, error) {
	if cfg.NetworkTimeout <= 0 {
		return e.fetchAndStore(ctx, req, ns, cfg)
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)

	go func() {
		resp, err := e.fetcher.Fetch(fetchCtx, req)
		if err == nil {
			if err = bufferBody(resp); err != nil {
				resp = nil
			}
		}
		done <- result{resp: resp, err: err}
	}()

	timer := time.NewTimer(cfg.NetworkTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return e.storeResponse(ctx, req, r.resp, ns, cfg), nil
	case <-timer.C:
		networkTimeoutsTotal.WithLabelValues(cfg.Name).Inc()
		return nil, &TimeoutError{URL: req.URL.String(), After: cfg.NetworkTimeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// staleWhileRevalidate answers from a fresh entry immediately and refreshes
// it in the background. Without a fresh entry it waits for the refresh it
// already started; if that fails an expired entry is still served.
func staleWhileRevalidate(ctx context.Context, e *Engine, req *http.Request, ns cache.Namespace, cfg Config) (*http.Response, error) {
	cached := e.lookup(ctx, ns, cache.RequestKey(req))
	refresh := e.revalidate(req, ns, cfg)

	if cached != nil && !cached.IsExpired(e.now(), cfg.MaxAge) {
		return e.serve(ns, cached, req, StatusHit), nil
	}

	select {
	case r := <-refresh:
		if r.err == nil {
			return cache.EntryToResponse(r.entry, req), nil
		}
		if cached != nil {
			e.logger.Warn().Err(r.err).Str("url", req.URL.String()).Msg("Revalidation failed, serving stale entry")
			return e.serve(ns, cached, req, StatusStale), nil
		}
		if resp, ok := e.offline(ctx, req); ok {
			return resp, nil
		}
		return nil, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type revalidation struct {
	entry *cache.CacheEntry
	err   error
}

// revalidate starts (or joins) a background refresh of req. The refresh runs
// under its own deadline and outlives the caller's context. Concurrent
// callers for the same key share one fetch.
func (e *Engine) revalidate(req *http.Request, ns cache.Namespace, cfg Config) <-chan revalidation {
	key := cache.RequestKey(req)
	out := make(chan revalidation, 1)

	e.background.Add(1)
	shared := e.group.DoChan(ns.Name()+"|"+key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), e.backgroundTimeout)
		defer cancel()

		bgReq := req.Clone(ctx)
		resp, err := e.fetcher.Fetch(ctx, bgReq)
		if err != nil {
			return nil, err
		}
		entry, err := cache.ResponseToEntry(bgReq, resp, e.now())
		if err != nil {
			return nil, err
		}
		if cache.IsCacheable(resp) {
			e.write(ctx, ns, key, entry, cfg)
		}
		return entry, nil
	})

	go func() {
		defer e.background.Done()
		r := <-shared
		if r.Err != nil {
			revalidationsTotal.WithLabelValues(cfg.Name, "error").Inc()
			e.logger.Debug().Err(r.Err).Str("url", req.URL.String()).Msg("Background revalidation failed")
			out <- revalidation{err: r.Err}
			return
		}
		revalidationsTotal.WithLabelValues(cfg.Name, "success").Inc()
		out <- revalidation{entry: r.Val.(*cache.CacheEntry)}
	}()

	return out
}

func networkOnly(ctx context.Context, e *Engine, req *http.Request, _ cache.Namespace, _ Config) (*http.Response, error) {
	return e.fetcher.Fetch(ctx, req)
}

func cacheOnly(ctx context.Context, e *Engine, req *http.Request, ns cache.Namespace, _ Config) (*http.Response, error) {
	if cached := e.lookup(ctx, ns, cache.RequestKey(req)); cached != nil {
		return e.serve(ns, cached, req, StatusHit), nil
	}
	return nil, &CacheMissError{Namespace: ns.Name(), URL: req.URL.String()}
}
