package syncqueue

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/Sternrassler/offline-runtime/pkg/strategy"
)

// Handler replays the pending items of one queue. It returns nil only when
// the backend confirmed the replay. Handlers may be invoked again for the
// same items after any failure.
type Handler interface {
	Replay(ctx context.Context, queue string, items []Item) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, queue string, items []Item) error

// Replay calls f.
func (f HandlerFunc) Replay(ctx context.Context, queue string, items []Item) error {
	return f(ctx, queue, items)
}

// HeaderIdempotencyKey carries a digest of the replayed item IDs so the
// backend can discard repeated deliveries.
const HeaderIdempotencyKey = "Idempotency-Key"

// HTTPHandler posts items as {"items":[...]} to a backend endpoint. Any 2xx
// status confirms the replay.
type HTTPHandler struct {
	Endpoint string
	Fetcher  strategy.Fetcher
}

// NewHTTPHandler creates a handler posting to endpoint.
func NewHTTPHandler(endpoint string, fetcher strategy.Fetcher) *HTTPHandler {
	return &HTTPHandler{Endpoint: endpoint, Fetcher: fetcher}
}

type replayBody struct {
	Items []Item `json:"items"`
}

// Replay implements Handler.
func (h *HTTPHandler) Replay(ctx context.Context, queue string, items []Item) error {
	body, err := json.Marshal(replayBody{Items: items})
	if err != nil {
		return &SyncReplayError{Queue: queue, Items: len(items), Err: fmt.Errorf("marshal items: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return &SyncReplayError{Queue: queue, Items: len(items), Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderIdempotencyKey, IdempotencyKey(items))

	resp, err := h.Fetcher.Fetch(ctx, req)
	if err != nil {
		return &SyncReplayError{Queue: queue, Items: len(items), Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SyncReplayError{Queue: queue, Items: len(items), StatusCode: resp.StatusCode}
	}
	return nil
}

// IdempotencyKey returns a stable digest of the item IDs, independent of
// their order.
func IdempotencyKey(items []Item) string {
	sorted := ids(items)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}

// DefaultEndpoints maps the default queues to their backend paths.
var DefaultEndpoints = map[string]string{
	AnalyticsQueue: "/api/analytics",
	FormQueue:      "/api/forms",
}

// DefaultHandlers returns HTTP handlers for the default queues, with
// endpoints resolved against origin.
func DefaultHandlers(origin *url.URL, fetcher strategy.Fetcher) map[string]Handler {
	handlers := make(map[string]Handler, len(DefaultEndpoints))
	for queue, path := range DefaultEndpoints {
		ref := &url.URL{Path: path}
		handlers[queue] = NewHTTPHandler(origin.ResolveReference(ref).String(), fetcher)
	}
	return handlers
}
