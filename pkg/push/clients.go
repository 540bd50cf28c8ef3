package push

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/Sternrassler/offline-runtime/pkg/logging"
	"github.com/rs/zerolog"
)

// MemoryWindows tracks windows in process memory. It backs hosts without a
// real window manager and tests.
type MemoryWindows struct {
	mu      sync.Mutex
	windows []Window
	focused string
	nextID  int
}

// NewMemoryWindows creates an empty window registry.
func NewMemoryWindows() *MemoryWindows {
	return &MemoryWindows{}
}

// Add registers an open window and returns its ID.
func (m *MemoryWindows) Add(rawURL string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := "window-" + strconv.Itoa(m.nextID)
	m.windows = append(m.windows, Window{ID: id, URL: rawURL})
	return id
}

func (m *MemoryWindows) Windows(ctx context.Context) ([]Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Window(nil), m.windows...), nil
}

func (m *MemoryWindows) Focus(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index(id) < 0 {
		return fmt.Errorf("window %s not found", id)
	}
	m.focused = id
	return nil
}

func (m *MemoryWindows) Navigate(ctx context.Context, id, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("window %s not found", id)
	}
	m.windows[i].URL = target
	return nil
}

func (m *MemoryWindows) Open(ctx context.Context, target string) error {
	id := m.Add(target)
	m.mu.Lock()
	m.focused = id
	m.mu.Unlock()
	return nil
}

// Focused returns the ID of the focused window.
func (m *MemoryWindows) Focused() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

func (m *MemoryWindows) index(id string) int {
	for i, w := range m.windows {
		if w.ID == id {
			return i
		}
	}
	return -1
}

// LogNotifier writes notifications to the log and keeps the most recent
// ones for inspection.
type LogNotifier struct {
	logger zerolog.Logger
	limit  int

	mu    sync.Mutex
	shown []Payload
}

// NewLogNotifier creates a notifier remembering up to limit notifications.
func NewLogNotifier(limit int) *LogNotifier {
	return &LogNotifier{
		logger: logging.NewLogger("notifier"),
		limit:  limit,
	}
}

func (n *LogNotifier) Show(ctx context.Context, p Payload) error {
	n.logger.Info().
		Str("title", p.Title).
		Str("body", p.Body).
		Str("tag", p.Tag).
		Bool("require_interaction", p.RequireInteraction).
		Msg("Notification")

	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, p)
	if n.limit > 0 && len(n.shown) > n.limit {
		n.shown = n.shown[len(n.shown)-n.limit:]
	}
	return nil
}

// Shown returns the remembered notifications, oldest first.
func (n *LogNotifier) Shown() []Payload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Payload(nil), n.shown...)
}
