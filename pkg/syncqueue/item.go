// Package syncqueue records mutations made while offline and replays them
// against their backend endpoint once a drain succeeds.
//
// Items are removed only after the queue's Handler confirmed the replay.
// A failed replay returns *SyncReplayError and leaves every item in place,
// so drains may run any number of times for the same data.
package syncqueue

import (
	"encoding/json"
	"time"
)

// Default queue names.
const (
	AnalyticsQueue = "analytics-queue"
	FormQueue      = "form-queue"
)

// Item is one pending mutation.
type Item struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// ids returns the IDs of items in order.
func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
