package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/offline-runtime/pkg/cache"
	"github.com/Sternrassler/offline-runtime/pkg/logging"
	"github.com/Sternrassler/offline-runtime/pkg/strategy"
	"github.com/Sternrassler/offline-runtime/pkg/syncqueue"
	"github.com/rs/zerolog"
)

// Lifecycle is the part of the lifecycle manager control messages reach.
type Lifecycle interface {
	SkipWaiting(ctx context.Context) error
	Version() string
	Namespaces() cache.Namespaces
	Clear(ctx context.Context, nameOrRole string) ([]string, error)
}

// Enqueuer records sync payloads.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, payload json.RawMessage) (syncqueue.Item, error)
}

// Options configures a Dispatcher.
type Options struct {
	Lifecycle Lifecycle
	Queue     Enqueuer
	Store     cache.Store
	Fetcher   strategy.Fetcher

	// Registry supplies capacity bounds for manually cached resources.
	Registry *strategy.Registry

	// Origin resolves relative resource URLs.
	Origin *url.URL

	Now    func() time.Time
	Logger *zerolog.Logger
}

// Dispatcher executes control messages.
type Dispatcher struct {
	lifecycle Lifecycle
	queue     Enqueuer
	store     cache.Store
	fetcher   strategy.Fetcher
	registry  *strategy.Registry
	origin    *url.URL
	now       func() time.Time
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.Lifecycle == nil {
		return nil, fmt.Errorf("lifecycle is required")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("sync queue is required")
	}
	if opts.Store == nil || opts.Fetcher == nil {
		return nil, fmt.Errorf("cache store and fetcher are required")
	}
	if opts.Origin == nil || !opts.Origin.IsAbs() {
		return nil, fmt.Errorf("absolute origin URL is required")
	}
	if opts.Registry == nil {
		opts.Registry = strategy.DefaultRegistry()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := logging.NewLogger("control")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Dispatcher{
		lifecycle: opts.Lifecycle,
		queue:     opts.Queue,
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		registry:  opts.Registry,
		origin:    opts.Origin,
		now:       opts.Now,
		logger:    logger,
	}, nil
}

// Dispatch executes msg and returns its reply, if any. GET_VERSION also
// sends the reply on msg.Port. Unknown types are logged and rejected with
// ErrUnknownMessage.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) (any, error) {
	var (
		reply any
		err   error
	)
	switch msg.Type {
	case ForceActivate:
		err = d.lifecycle.SkipWaiting(ctx)
	case GetVersion:
		reply, err = d.getVersion(ctx, msg)
	case CacheResource:
		reply, err = d.cacheResource(ctx, msg)
	case SyncData:
		reply, err = d.syncData(ctx, msg)
	case ClearCache:
		reply, err = d.clearCache(ctx, msg)
	default:
		messagesTotal.WithLabelValues("unknown", "ignored").Inc()
		d.logger.Warn().Str("type", string(msg.Type)).Msg("Ignoring unknown control message")
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}

	if err != nil {
		messagesTotal.WithLabelValues(string(msg.Type), "error").Inc()
		d.logger.Warn().Err(err).Str("type", string(msg.Type)).Msg("Control message failed")
		return nil, err
	}
	messagesTotal.WithLabelValues(string(msg.Type), "ok").Inc()
	d.logger.Debug().Str("type", string(msg.Type)).Msg("Control message handled")
	return reply, nil
}

func (d *Dispatcher) getVersion(ctx context.Context, msg Message) (any, error) {
	if msg.Port == nil {
		return nil, ErrNoPort
	}
	reply := VersionReply{Version: d.lifecycle.Version()}
	if err := msg.Port.Send(ctx, reply); err != nil {
		return nil, fmt.Errorf("send version reply: %w", err)
	}
	return reply, nil
}

func (d *Dispatcher) cacheResource(ctx context.Context, msg Message) (any, error) {
	var data CacheResourceData
	if err := decode(msg, &data); err != nil {
		return nil, err
	}
	if strings.TrimSpace(data.URL) == "" {
		return nil, fmt.Errorf("%w: %s: url is required", ErrInvalidData, msg.Type)
	}

	ref, err := url.Parse(data.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidData, msg.Type, err)
	}
	target := d.origin.ResolveReference(ref)

	names := d.lifecycle.Namespaces()
	nsName := names.Resolve(data.CacheName, cache.RoleDynamic)
	if !names.Owns(nsName) {
		return nil, fmt.Errorf("namespace %q is not owned by this runtime", nsName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := d.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	if !cache.IsCacheable(resp) {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", target, resp.StatusCode)
	}
	entry, err := cache.ResponseToEntry(req, resp, d.now())
	if err != nil {
		return nil, err
	}

	ns, err := d.store.Open(ctx, nsName)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", nsName, err)
	}
	if err := ns.Put(ctx, cache.RequestKey(req), entry); err != nil {
		return nil, fmt.Errorf("store %s: %w", target, err)
	}
	if role, ok := names.RoleOf(nsName); ok {
		if cfg, ok := d.registry.ForRole(role); ok {
			if _, err := cache.Trim(ctx, ns, cfg.MaxEntries); err != nil {
				d.logger.Warn().Err(err).Str("namespace", nsName).Msg("Eviction failed")
			}
		}
	}

	d.logger.Info().Str("url", target.String()).Str("namespace", nsName).Msg("Resource cached")
	return CacheResourceReply{URL: target.String(), Namespace: nsName}, nil
}

func (d *Dispatcher) syncData(ctx context.Context, msg Message) (any, error) {
	var data SyncDataData
	if err := decode(msg, &data); err != nil {
		return nil, err
	}
	if data.Queue == "" {
		return nil, fmt.Errorf("%w: %s: queue is required", ErrInvalidData, msg.Type)
	}
	item, err := d.queue.Enqueue(ctx, data.Queue, data.Data)
	if err != nil {
		return nil, err
	}
	return SyncDataReply{Queue: item.Queue, ID: item.ID}, nil
}

func (d *Dispatcher) clearCache(ctx context.Context, msg Message) (any, error) {
	var data ClearCacheData
	if err := decode(msg, &data); err != nil {
		return nil, err
	}
	deleted, err := d.lifecycle.Clear(ctx, data.CacheName)
	if err != nil {
		return nil, err
	}
	if deleted == nil {
		deleted = []string{}
	}
	return ClearCacheReply{Deleted: deleted}, nil
}
