// Package worker hosts the offline runtime: it dispatches lifecycle, fetch,
// message, sync and push events to the component that owns them and serves
// the whole runtime as an intercepting HTTP proxy.
package worker

import (
	"net/http"

	"github.com/Sternrassler/offline-runtime/pkg/control"
	"github.com/Sternrassler/offline-runtime/pkg/push"
)

// Event is one of the event variants declared in this package.
type Event interface {
	event()
}

// InstallEvent precaches the application shell.
type InstallEvent struct{}

// ActivateEvent deletes superseded namespaces and claims clients.
type ActivateEvent struct{}

// FetchEvent asks the runtime to answer an intercepted request.
type FetchEvent struct {
	Request *http.Request
}

// MessageEvent carries a control message.
type MessageEvent struct {
	Message control.Message
}

// SyncEvent asks the runtime to replay a sync queue. Tag is the queue name.
type SyncEvent struct {
	Tag string
}

// PushEvent carries a raw push payload.
type PushEvent struct {
	Data []byte
}

// NotificationClickEvent reports a click on a shown notification.
type NotificationClickEvent struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}

func (InstallEvent) event()           {}
func (ActivateEvent) event()          {}
func (FetchEvent) event()             {}
func (MessageEvent) event()           {}
func (SyncEvent) event()              {}
func (PushEvent) event()              {}
func (NotificationClickEvent) event() {}

// Result holds what handling an event produced. Only the field matching the
// event variant is set.
type Result struct {
	// Response answers a FetchEvent.
	Response *http.Response

	// Reply answers a MessageEvent; nil for messages without a reply.
	Reply any

	// Notification is what a PushEvent displayed.
	Notification push.Payload

	// Click describes the navigation a NotificationClickEvent caused.
	Click push.ClickResult
}

func eventName(ev Event) string {
	switch ev.(type) {
	case InstallEvent:
		return "install"
	case ActivateEvent:
		return "activate"
	case FetchEvent:
		return "fetch"
	case MessageEvent:
		return "message"
	case SyncEvent:
		return "sync"
	case PushEvent:
		return "push"
	case NotificationClickEvent:
		return "notificationclick"
	default:
		return "unknown"
	}
}
