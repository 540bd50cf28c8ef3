package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/offline-runtime/pkg/events"
	"github.com/Sternrassler/offline-runtime/pkg/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scheduler arranges a later drain of a queue. Register may be called any
// number of times for the same queue.
type Scheduler interface {
	Register(queue string)
}

// Options configures a Queue.
type Options struct {
	Store     Store
	Handlers  map[string]Handler
	Scheduler Scheduler
	Bus       *events.Bus
	Now       func() time.Time
	Logger    *zerolog.Logger
}

// Queue records items and drains them through per-queue handlers.
type Queue struct {
	store     Store
	scheduler Scheduler
	bus       *events.Bus
	now       func() time.Time
	logger    zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates a queue over opts.Store.
func New(opts Options) (*Queue, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("queue store is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := logging.NewLogger("syncqueue")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	handlers := make(map[string]Handler, len(opts.Handlers))
	for name, h := range opts.Handlers {
		handlers[name] = h
	}

	return &Queue{
		store:     opts.Store,
		scheduler: opts.Scheduler,
		bus:       opts.Bus,
		now:       opts.Now,
		logger:    logger,
		handlers:  handlers,
	}, nil
}

// SetScheduler installs the scheduler notified on Enqueue.
func (q *Queue) SetScheduler(s Scheduler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scheduler = s
}

// Handle registers the handler for a queue name.
func (q *Queue) Handle(queue string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[queue] = h
}

// Names returns the queue names that have a handler.
func (q *Queue) Names() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	names := make([]string, 0, len(q.handlers))
	for name := range q.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (q *Queue) handler(queue string) (Handler, Scheduler, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.handlers[queue]
	return h, q.scheduler, ok
}

// Enqueue durably records payload and schedules a drain of queue.
func (q *Queue) Enqueue(ctx context.Context, queue string, payload json.RawMessage) (Item, error) {
	_, scheduler, ok := q.handler(queue)
	if !ok {
		return Item{}, fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return Item{}, ErrInvalidPayload
	}

	item := Item{
		ID:         uuid.NewString(),
		Queue:      queue,
		Payload:    append(json.RawMessage(nil), payload...),
		EnqueuedAt: q.now().UTC(),
	}
	if err := q.store.Append(ctx, item); err != nil {
		return Item{}, fmt.Errorf("enqueue %s: %w", queue, err)
	}
	itemsEnqueued.WithLabelValues(queue).Inc()

	q.logger.Debug().Str("queue", queue).Str("id", item.ID).Msg("Item enqueued")

	if scheduler != nil {
		scheduler.Register(queue)
	}
	return item, nil
}

// Pending returns the number of items waiting in queue.
func (q *Queue) Pending(ctx context.Context, queue string) (int, error) {
	items, err := q.store.List(ctx, queue)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Drain replays the pending items of queue and removes exactly those items
// on success. Items enqueued while the replay is in flight stay queued. A
// failed replay returns *SyncReplayError.
func (q *Queue) Drain(ctx context.Context, queue string) error {
	h, _, ok := q.handler(queue)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}

	items, err := q.store.List(ctx, queue)
	if err != nil {
		return fmt.Errorf("drain %s: %w", queue, err)
	}
	if len(items) == 0 {
		return nil
	}

	start := time.Now()
	if err := h.Replay(ctx, queue, items); err != nil {
		var replayErr *SyncReplayError
		if !errors.As(err, &replayErr) {
			err = &SyncReplayError{Queue: queue, Items: len(items), Err: err}
		}
		drainsTotal.WithLabelValues(queue, "failure").Inc()
		q.logger.Error().Err(err).Str("queue", queue).Int("items", len(items)).Msg("Sync replay failed")
		return err
	}
	drainDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())

	removed, err := q.store.Remove(ctx, queue, ids(items))
	if err != nil {
		// Replayed but still queued: the next drain delivers them again and
		// the backend deduplicates on the idempotency key.
		return fmt.Errorf("drain %s: remove replayed items: %w", queue, err)
	}
	drainsTotal.WithLabelValues(queue, "success").Inc()
	itemsReplayed.WithLabelValues(queue).Add(float64(removed))

	q.logger.Info().Str("queue", queue).Int("items", removed).Msg("Sync queue drained")
	q.bus.Publish(ctx, events.Event{
		Kind: events.KindSyncDrained,
		Data: map[string]string{"queue": queue, "items": strconv.Itoa(removed)},
	})
	return nil
}

// DrainAll drains every queue that has pending items and a handler. It
// returns the first error after attempting all queues.
func (q *Queue) DrainAll(ctx context.Context) error {
	names, err := q.store.Queues(ctx)
	if err != nil {
		return fmt.Errorf("list queues: %w", err)
	}
	var first error
	for _, name := range names {
		if _, _, ok := q.handler(name); !ok {
			q.logger.Warn().Str("queue", name).Msg("Pending items without handler")
			continue
		}
		if err := q.Drain(ctx, name); err != nil && first == nil {
			first = err
		}
	}
	return first
}
