// Package lifecycle creates the versioned cache namespaces of a runtime,
// precaches its manifest and deletes namespaces left over by earlier
// versions.
//
// Every role moves through NEW → INSTALLED → ACTIVE. Namespaces carrying the
// runtime prefix but a different version are SUPERSEDED and deleted on
// activation.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/offline-runtime/pkg/cache"
	"github.com/Sternrassler/offline-runtime/pkg/events"
	"github.com/Sternrassler/offline-runtime/pkg/logging"
	"github.com/Sternrassler/offline-runtime/pkg/strategy"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of a namespace role.
type State string

const (
	StateNew        State = "NEW"
	StateInstalled  State = "INSTALLED"
	StateActive     State = "ACTIVE"
	StateSuperseded State = "SUPERSEDED"
)

// DefaultManifest lists the resources precached at install time.
var DefaultManifest = []string{
	"/",
	"/offline.html",
	"/manifest.json",
	"/icons/icon-192x192.png",
	"/icons/icon-512x512.png",
}

// DefaultConcurrency bounds parallel precache fetches.
const DefaultConcurrency = 4

// AllNamespaces selects every runtime-owned namespace in Clear.
const AllNamespaces = "all"

// ErrNotInstalled is returned by Activate before a successful Install.
var ErrNotInstalled = errors.New("runtime not installed")

// Options configures a Manager.
type Options struct {
	Store      cache.Store
	Fetcher    strategy.Fetcher
	Namespaces cache.Namespaces

	// Origin resolves relative manifest entries.
	Origin *url.URL

	// Manifest overrides DefaultManifest (tests).
	Manifest []string

	// Concurrency bounds parallel precache fetches. Zero selects
	// DefaultConcurrency.
	Concurrency int

	// StaticMaxEntries bounds the static namespace after precaching. Zero
	// selects strategy.StaticMaxEntries.
	StaticMaxEntries int

	Bus    *events.Bus
	Now    func() time.Time
	Logger *zerolog.Logger
}

// Manager drives the namespace lifecycle of one runtime version.
type Manager struct {
	store       cache.Store
	fetcher     strategy.Fetcher
	names       cache.Namespaces
	origin      *url.URL
	manifest    []string
	concurrency int
	maxEntries  int
	bus         *events.Bus
	now         func() time.Time
	logger      zerolog.Logger

	mu          sync.Mutex
	states      map[cache.Role]State
	skipWaiting bool
}

// NewManager creates a lifecycle manager with every role in StateNew.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if opts.Namespaces.Prefix == "" || opts.Namespaces.Version == "" {
		return nil, fmt.Errorf("namespace prefix and version are required")
	}
	if opts.Origin == nil || !opts.Origin.IsAbs() {
		return nil, fmt.Errorf("absolute origin URL is required")
	}
	if opts.Manifest == nil {
		opts.Manifest = DefaultManifest
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.StaticMaxEntries <= 0 {
		opts.StaticMaxEntries = strategy.StaticMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := logging.NewLogger("lifecycle")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	states := make(map[cache.Role]State, len(cache.Roles))
	for _, r := range cache.Roles {
		states[r] = StateNew
	}

	return &Manager{
		store:       opts.Store,
		fetcher:     opts.Fetcher,
		names:       opts.Namespaces,
		origin:      opts.Origin,
		manifest:    append([]string(nil), opts.Manifest...),
		concurrency: opts.Concurrency,
		maxEntries:  opts.StaticMaxEntries,
		bus:         opts.Bus,
		now:         opts.Now,
		logger:      logger,
		states:      states,
	}, nil
}

// Version returns the current version tag.
func (m *Manager) Version() string {
	return m.names.Version
}

// Namespaces returns the naming scheme of this runtime.
func (m *Manager) Namespaces() cache.Namespaces {
	return m.names
}

// State returns the lifecycle state of role.
func (m *Manager) State(role cache.Role) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[role]
}

// Install fetches every manifest resource and writes it into the static
// namespace. Nothing is written unless every fetch succeeds.
func (m *Manager) Install(ctx context.Context) error {
	start := time.Now()

	entries := make([]*cache.CacheEntry, len(m.manifest))
	keys := make([]string, len(m.manifest))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, path := range m.manifest {
		g.Go(func() error {
			key, entry, err := m.precache(gctx, path)
			if err != nil {
				return err
			}
			keys[i], entries[i] = key, entry
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		precacheFailures.Inc()
		m.logger.Error().Err(err).Str("version", m.names.Version).Msg("Install failed")
		return fmt.Errorf("install %s: %w", m.names.Version, err)
	}

	ns, err := m.store.Open(ctx, m.names.Name(cache.RoleStatic))
	if err != nil {
		return fmt.Errorf("install %s: open static namespace: %w", m.names.Version, err)
	}
	for i, entry := range entries {
		if err := ns.Put(ctx, keys[i], entry); err != nil {
			return fmt.Errorf("install %s: store %s: %w", m.names.Version, entry.URL, err)
		}
	}
	precachedResources.Add(float64(len(entries)))
	if _, err := cache.Trim(ctx, ns, m.maxEntries); err != nil {
		m.logger.Warn().Err(err).Str("namespace", m.names.Name(cache.RoleStatic)).Msg("Eviction failed")
	}

	m.mu.Lock()
	for r, s := range m.states {
		if s == StateNew {
			m.setState(r, StateInstalled)
		}
	}
	skip := m.skipWaiting
	m.mu.Unlock()

	m.logger.Info().
		Str("version", m.names.Version).
		Int("resources", len(entries)).
		Dur("duration", time.Since(start)).
		Msg("Installed")
	m.bus.Publish(ctx, events.Event{
		Kind: events.KindInstalled,
		Data: map[string]string{"version": m.names.Version},
	})

	if skip {
		return m.Activate(ctx)
	}
	return nil
}

func (m *Manager) precache(ctx context.Context, path string) (string, *cache.CacheEntry, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", nil, fmt.Errorf("parse manifest entry %q: %w", path, err)
	}
	target := m.origin.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", nil, fmt.Errorf("create request for %s: %w", target, err)
	}

	resp, err := m.fetcher.Fetch(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("precache %s: %w", target, err)
	}
	if !cache.IsCacheable(resp) {
		resp.Body.Close()
		return "", nil, fmt.Errorf("precache %s: unexpected status %d", target, resp.StatusCode)
	}

	entry, err := cache.ResponseToEntry(req, resp, m.now())
	if err != nil {
		return "", nil, fmt.Errorf("precache %s: %w", target, err)
	}
	return cache.RequestKey(req), entry, nil
}

// Activate deletes every superseded namespace and marks the current roles
// active. Calling it again is harmless.
func (m *Manager) Activate(ctx context.Context) error {
	m.mu.Lock()
	installed := m.states[cache.RoleStatic] != StateNew
	m.mu.Unlock()
	if !installed {
		return ErrNotInstalled
	}

	superseded, err := m.Superseded(ctx)
	if err != nil {
		return fmt.Errorf("activate %s: %w", m.names.Version, err)
	}

	deleted := 0
	for _, name := range superseded {
		ok, err := m.store.Delete(ctx, name)
		if err != nil {
			return fmt.Errorf("activate %s: delete %s: %w", m.names.Version, name, err)
		}
		if ok {
			deleted++
			m.logger.Info().Str("namespace", name).Msg("Deleted superseded namespace")
		}
	}
	namespacesDeleted.WithLabelValues("superseded").Add(float64(deleted))

	m.mu.Lock()
	for r := range m.states {
		m.setState(r, StateActive)
	}
	m.mu.Unlock()

	m.logger.Info().Str("version", m.names.Version).Int("deleted", deleted).Msg("Activated")
	m.bus.Publish(ctx, events.Event{
		Kind: events.KindActivated,
		Data: map[string]string{
			"version": m.names.Version,
			"deleted": strconv.Itoa(deleted),
		},
	})
	return nil
}

// SkipWaiting activates as soon as the runtime is installed. When already
// installed it activates immediately.
func (m *Manager) SkipWaiting(ctx context.Context) error {
	m.mu.Lock()
	m.skipWaiting = true
	installed := m.states[cache.RoleStatic] != StateNew
	m.mu.Unlock()

	if !installed {
		m.logger.Debug().Msg("Skip waiting requested before install")
		return nil
	}
	return m.Activate(ctx)
}

// Superseded lists namespaces owned by this runtime that are not part of the
// current version set.
func (m *Manager) Superseded(ctx context.Context) ([]string, error) {
	names, err := m.store.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}

	var out []string
	for _, name := range names {
		if m.names.Owns(name) && !m.names.IsCurrent(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// Clear deletes one namespace, or every runtime-owned namespace when
// nameOrRole is empty or AllNamespaces. Roles ("dynamic") resolve to the
// current namespace of that role. It returns the deleted names.
func (m *Manager) Clear(ctx context.Context, nameOrRole string) ([]string, error) {
	var targets []string
	if nameOrRole == "" || nameOrRole == AllNamespaces {
		names, err := m.store.Names(ctx)
		if err != nil {
			return nil, fmt.Errorf("list namespaces: %w", err)
		}
		for _, name := range names {
			if m.names.Owns(name) {
				targets = append(targets, name)
			}
		}
	} else {
		name := m.names.Resolve(nameOrRole, cache.RoleDynamic)
		if !m.names.Owns(name) {
			return nil, fmt.Errorf("namespace %q is not owned by this runtime", name)
		}
		targets = []string{name}
	}

	var deleted []string
	for _, name := range targets {
		ok, err := m.store.Delete(ctx, name)
		if err != nil {
			return deleted, fmt.Errorf("delete %s: %w", name, err)
		}
		if !ok {
			continue
		}
		deleted = append(deleted, name)
		m.bus.Publish(ctx, events.Event{
			Kind: events.KindCacheCleared,
			Data: map[string]string{"namespace": name},
		})
	}
	namespacesDeleted.WithLabelValues("cleared").Add(float64(len(deleted)))

	m.logger.Info().Strs("namespaces", deleted).Msg("Cleared namespaces")
	return deleted, nil
}

// setState records a transition. Callers hold m.mu.
func (m *Manager) setState(role cache.Role, s State) {
	if m.states[role] == s {
		return
	}
	m.states[role] = s
	stateTransitions.WithLabelValues(string(s)).Inc()
}
