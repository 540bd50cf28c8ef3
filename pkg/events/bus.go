// Package events provides the in-process event bus that runtime components
// publish interception and lifecycle notifications on.
//
// A Bus is created by the host and injected into each component that needs
// it. There is no package-level bus.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/offline-runtime/pkg/logging"
	"github.com/rs/zerolog"
)

// Kind identifies an event type.
type Kind string

const (
	// KindNavigation is published for every intercepted navigation request.
	KindNavigation Kind = "navigation"

	// KindInstalled is published after precaching completes.
	KindInstalled Kind = "installed"

	// KindActivated is published after superseded namespaces are deleted.
	// Subscribers use it to take control of open clients.
	KindActivated Kind = "activated"

	// KindCacheCleared is published after a namespace is deleted on request.
	KindCacheCleared Kind = "cache-cleared"

	// KindSyncDrained is published after a sync queue replay succeeded.
	KindSyncDrained Kind = "sync-drained"
)

// Event is a notification delivered to subscribers.
type Event struct {
	Kind Kind
	URL  string            // request URL of navigation events
	Data map[string]string // kind-specific attributes: namespace, queue, version
	At   time.Time
}

// Handler receives events. Handlers run synchronously on the publisher's
// goroutine and must not block.
type Handler func(ctx context.Context, ev Event)

type subscription struct {
	kind    Kind
	handler Handler
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]subscription
	nextID uint64
	now    func() time.Time
	logger zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[uint64]subscription),
		now:    time.Now,
		logger: logging.NewLogger("events"),
	}
}

// Subscribe registers h for events of kind. An empty kind receives every
// event. The returned function removes the subscription.
func (b *Bus) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{kind: kind, handler: h}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every matching subscriber. A panicking handler is
// logged and does not prevent delivery to the others.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = b.now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kind == "" || s.kind == ev.Kind {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(ctx, h, ev)
	}
	eventsPublished.WithLabelValues(string(ev.Kind)).Inc()
}

func (b *Bus) deliver(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("kind", string(ev.Kind)).Msg("Event handler panicked")
		}
	}()
	h(ctx, ev)
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
