// Package control implements the command protocol the application uses to
// steer the runtime: activation, version queries, manual caching, sync
// enqueueing and cache clearing.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Type names a control message.
type Type string

const (
	ForceActivate Type = "FORCE_ACTIVATE"
	GetVersion    Type = "GET_VERSION"
	CacheResource Type = "CACHE_RESOURCE"
	SyncData      Type = "SYNC_DATA"
	ClearCache    Type = "CLEAR_CACHE"
)

var (
	// ErrUnknownMessage is returned for unrecognised message types.
	ErrUnknownMessage = errors.New("unknown control message")

	// ErrNoPort is returned when a message needs a reply channel but has none.
	ErrNoPort = errors.New("message has no reply port")

	// ErrInvalidData is returned when message data does not decode.
	ErrInvalidData = errors.New("invalid message data")
)

// Port carries a reply back to the sender.
type Port interface {
	Send(ctx context.Context, v any) error
}

// PortFunc adapts a function to the Port interface.
type PortFunc func(ctx context.Context, v any) error

// Send calls f.
func (f PortFunc) Send(ctx context.Context, v any) error { return f(ctx, v) }

// Message is one control command.
type Message struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	Port Port            `json:"-"`
}

// CacheResourceData is the data of CACHE_RESOURCE.
type CacheResourceData struct {
	URL       string `json:"url"`
	CacheName string `json:"cacheName,omitempty"`
}

// SyncDataData is the data of SYNC_DATA.
type SyncDataData struct {
	Queue string          `json:"queue"`
	Data  json.RawMessage `json:"data"`
}

// ClearCacheData is the data of CLEAR_CACHE.
type ClearCacheData struct {
	CacheName string `json:"cacheName,omitempty"`
}

// VersionReply answers GET_VERSION.
type VersionReply struct {
	Version string `json:"version"`
}

// CacheResourceReply reports a cached resource.
type CacheResourceReply struct {
	URL       string `json:"url"`
	Namespace string `json:"namespace"`
}

// SyncDataReply reports an enqueued item.
type SyncDataReply struct {
	Queue string `json:"queue"`
	ID    string `json:"id"`
}

// ClearCacheReply lists deleted namespaces.
type ClearCacheReply struct {
	Deleted []string `json:"deleted"`
}

func decode(msg Message, v any) error {
	if len(msg.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidData, msg.Type, err)
	}
	return nil
}
