package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. Keys are listed in insertion order.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]*memoryNamespace
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		namespaces: make(map[string]*memoryNamespace),
	}
}

// Open returns the namespace, creating it on first use.
func (s *MemoryStore) Open(ctx context.Context, name string) (Namespace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[name]
	if !ok {
		ns = &memoryNamespace{name: name, entries: make(map[string]*CacheEntry)}
		s.namespaces[name] = ns
	}
	return ns, nil
}

// Names lists namespaces sorted by name.
func (s *MemoryStore) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete drops a namespace. Handles opened earlier keep working on the
// detached data but are no longer reachable through Open.
func (s *MemoryStore) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.namespaces[name]
	delete(s.namespaces, name)
	return ok, nil
}

type memoryNamespace struct {
	name string

	mu      sync.RWMutex
	order   []string
	entries map[string]*CacheEntry
}

func (n *memoryNamespace) Name() string { return n.name }

func (n *memoryNamespace) Get(ctx context.Context, key string) (*CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	entry, ok := n.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return cloneEntry(entry), nil
}

func (n *memoryNamespace) Put(ctx context.Context, key string, entry *CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry == nil {
		return ErrInvalidEntry
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.entries[key]; !ok {
		n.order = append(n.order, key)
	}
	n.entries[key] = cloneEntry(entry)
	return nil
}

func (n *memoryNamespace) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.entries[key]; !ok {
		return false, nil
	}
	delete(n.entries, key)
	for i, k := range n.order {
		if k == key {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (n *memoryNamespace) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	keys := make([]string, len(n.order))
	copy(keys, n.order)
	return keys, nil
}

func cloneEntry(e *CacheEntry) *CacheEntry {
	out := *e
	out.Headers = e.Headers.Clone()
	out.Body = append([]byte(nil), e.Body...)
	return &out
}
