package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/offline-runtime/internal/testutil"
	"github.com/Sternrassler/offline-runtime/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingScheduler struct {
	mu     sync.Mutex
	queues []string
}

func (r *recordingScheduler) Register(queue string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues = append(r.queues, queue)
}

func newTestQueue(t *testing.T, handlers map[string]Handler) (*Queue, *recordingScheduler) {
	t.Helper()
	sched := &recordingScheduler{}
	q, err := New(Options{
		Store:     NewMemoryStore(),
		Handlers:  handlers,
		Scheduler: sched,
	})
	require.NoError(t, err)
	return q, sched
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestEnqueue(t *testing.T) {
	ctx := context.Background()
	q, sched := newTestQueue(t, map[string]Handler{AnalyticsQueue: HandlerFunc(func(context.Context, string, []Item) error { return nil })})

	item, err := q.Enqueue(ctx, AnalyticsQueue, json.RawMessage(`{"event":"click"}`))
	require.NoError(t, err)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, AnalyticsQueue, item.Queue)
	assert.JSONEq(t, `{"event":"click"}`, string(item.Payload))
	assert.False(t, item.EnqueuedAt.IsZero())
	assert.Equal(t, []string{AnalyticsQueue}, sched.queues)

	pending, err := q.Pending(ctx, AnalyticsQueue)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestEnqueue_Rejects(t *testing.T) {
	ctx := context.Background()
	q, sched := newTestQueue(t, map[string]Handler{FormQueue: HandlerFunc(func(context.Context, string, []Item) error { return nil })})

	_, err := q.Enqueue(ctx, "unknown-queue", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownQueue)

	_, err = q.Enqueue(ctx, FormQueue, json.RawMessage(`{broken`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = q.Enqueue(ctx, FormQueue, nil)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	assert.Empty(t, sched.queues)
}

// The analytics click sequence: a confirmed drain clears the queue, a failed
// drain leaves it populated and rejects.
func TestDrain_AnalyticsClick(t *testing.T) {
	const endpoint = "https://app.example.com/api/analytics"

	tests := []struct {
		name        string
		response    testutil.MockResponse
		offline     bool
		wantErr     bool
		wantPending int
		wantStatus  int
	}{
		{name: "backend accepts", response: testutil.NewOKResponse(`{"ok":true}`), wantPending: 0},
		{name: "backend fails", response: testutil.NewServerErrorResponse(), wantErr: true, wantPending: 1, wantStatus: 500},
		{name: "network down", offline: true, wantErr: true, wantPending: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			net := testutil.NewFakeFetcher()
			net.Set(endpoint, tt.response)
			net.SetOffline(tt.offline)

			q, _ := newTestQueue(t, map[string]Handler{
				AnalyticsQueue: NewHTTPHandler(endpoint, net),
			})

			_, err := q.Enqueue(ctx, AnalyticsQueue, json.RawMessage(`{"event":"click"}`))
			require.NoError(t, err)

			err = q.Drain(ctx, AnalyticsQueue)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrSyncReplay)

				var replayErr *SyncReplayError
				require.True(t, errors.As(err, &replayErr))
				assert.Equal(t, AnalyticsQueue, replayErr.Queue)
				assert.Equal(t, 1, replayErr.Items)
				assert.Equal(t, tt.wantStatus, replayErr.StatusCode)
			} else {
				require.NoError(t, err)
			}

			pending, err := q.Pending(ctx, AnalyticsQueue)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPending, pending)
		})
	}
}

func TestDrain_RepeatedFailureKeepsItems(t *testing.T) {
	ctx := context.Background()
	calls := 0
	q, _ := newTestQueue(t, map[string]Handler{
		FormQueue: HandlerFunc(func(_ context.Context, _ string, items []Item) error {
			calls++
			if calls < 3 {
				return errors.New("backend unavailable")
			}
			assert.Len(t, items, 2)
			return nil
		}),
	})

	_, err := q.Enqueue(ctx, FormQueue, json.RawMessage(`{"name":"a"}`))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, FormQueue, json.RawMessage(`{"name":"b"}`))
	require.NoError(t, err)

	assert.ErrorIs(t, q.Drain(ctx, FormQueue), ErrSyncReplay)
	assert.ErrorIs(t, q.Drain(ctx, FormQueue), ErrSyncReplay)
	require.NoError(t, q.Drain(ctx, FormQueue))

	pending, _ := q.Pending(ctx, FormQueue)
	assert.Equal(t, 0, pending)
	assert.Equal(t, 3, calls)
}

func TestDrain_ItemsEnqueuedDuringReplaySurvive(t *testing.T) {
	ctx := context.Background()

	var q *Queue
	q, _ = newTestQueue(t, map[string]Handler{
		FormQueue: HandlerFunc(func(ctx context.Context, queue string, items []Item) error {
			_, err := q.Enqueue(ctx, queue, json.RawMessage(`{"late":true}`))
			return err
		}),
	})

	_, err := q.Enqueue(ctx, FormQueue, json.RawMessage(`{"early":true}`))
	require.NoError(t, err)
	require.NoError(t, q.Drain(ctx, FormQueue))

	items, err := q.store.List(ctx, FormQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"late":true}`, string(items[0].Payload))
}

func TestDrain_EmptyQueueSkipsHandler(t *testing.T) {
	called := false
	q, _ := newTestQueue(t, map[string]Handler{
		FormQueue: HandlerFunc(func(context.Context, string, []Item) error {
			called = true
			return nil
		}),
	})

	require.NoError(t, q.Drain(context.Background(), FormQueue))
	assert.False(t, called)
}

func TestDrain_UnknownQueue(t *testing.T) {
	q, _ := newTestQueue(t, nil)
	assert.ErrorIs(t, q.Drain(context.Background(), "nope"), ErrUnknownQueue)
}

func TestDrain_PublishesEvent(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	var got []events.Event
	bus.Subscribe(events.KindSyncDrained, func(_ context.Context, ev events.Event) {
		got = append(got, ev)
	})

	q, err := New(Options{
		Store:    NewMemoryStore(),
		Handlers: map[string]Handler{FormQueue: HandlerFunc(func(context.Context, string, []Item) error { return nil })},
		Bus:      bus,
		Now:      func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, FormQueue, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, q.Drain(ctx, FormQueue))

	require.Len(t, got, 1)
	assert.Equal(t, FormQueue, got[0].Data["queue"])
	assert.Equal(t, "1", got[0].Data["items"])
}

func TestDrainAll(t *testing.T) {
	ctx := context.Background()
	drained := map[string]int{}
	ok := HandlerFunc(func(_ context.Context, queue string, items []Item) error {
		drained[queue] += len(items)
		return nil
	})
	q, _ := newTestQueue(t, map[string]Handler{AnalyticsQueue: ok, FormQueue: ok})

	_, _ = q.Enqueue(ctx, AnalyticsQueue, json.RawMessage(`1`))
	_, _ = q.Enqueue(ctx, AnalyticsQueue, json.RawMessage(`2`))
	_, _ = q.Enqueue(ctx, FormQueue, json.RawMessage(`3`))

	require.NoError(t, q.DrainAll(ctx))
	assert.Equal(t, map[string]int{AnalyticsQueue: 2, FormQueue: 1}, drained)
}
