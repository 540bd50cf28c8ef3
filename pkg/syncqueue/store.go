package syncqueue

import (
	"context"
	"sort"
	"sync"
)

// Store is the durable record of pending items.
//
// List returns items in enqueue order. Remove deletes exactly the given IDs
// and ignores IDs that are already gone.
type Store interface {
	Append(ctx context.Context, item Item) error
	List(ctx context.Context, queue string) ([]Item, error)
	Remove(ctx context.Context, queue string, ids []string) (int, error)
	Queues(ctx context.Context) ([]string, error)
}

// MemoryStore keeps items in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	queues map[string][]Item
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[string][]Item)}
}

func (s *MemoryStore) Append(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.queues[item.Queue] {
		if existing.ID == item.ID {
			return ErrDuplicateItem
		}
	}
	s.queues[item.Queue] = append(s.queues[item.Queue], item)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, queue string) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.queues[queue]...), nil
}

func (s *MemoryStore) Remove(ctx context.Context, queue string, ids []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.queues[queue][:0:0]
	removed := 0
	for _, it := range s.queues[queue] {
		if drop[it.ID] {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	if len(kept) == 0 {
		delete(s.queues, queue)
	} else {
		s.queues[queue] = kept
	}
	return removed, nil
}

func (s *MemoryStore) Queues(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

var _ Store = (*MemoryStore)(nil)
