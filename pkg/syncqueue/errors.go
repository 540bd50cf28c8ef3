package syncqueue

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownQueue is returned for queue names without a handler.
	ErrUnknownQueue = errors.New("unknown sync queue")

	// ErrInvalidPayload is returned when an enqueued payload is not JSON.
	ErrInvalidPayload = errors.New("payload is not valid JSON")

	// ErrDuplicateItem is returned when a store already holds an item ID.
	ErrDuplicateItem = errors.New("sync item already exists")

	// ErrSyncReplay is matched by *SyncReplayError.
	ErrSyncReplay = errors.New("sync replay failed")
)

// SyncReplayError reports a drain the backend did not confirm. The items
// stay queued.
type SyncReplayError struct {
	Queue      string
	Items      int
	StatusCode int // zero when no response was received
	Err        error
}

func (e *SyncReplayError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("replay %s (%d items): status %d: %v", e.Queue, e.Items, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("replay %s (%d items): status %d", e.Queue, e.Items, e.StatusCode)
	default:
		return fmt.Sprintf("replay %s (%d items): %v", e.Queue, e.Items, e.Err)
	}
}

func (e *SyncReplayError) Unwrap() error { return e.Err }

func (e *SyncReplayError) Is(target error) bool { return target == ErrSyncReplay }
