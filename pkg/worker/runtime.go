package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sternrassler/offline-runtime/pkg/control"
	"github.com/Sternrassler/offline-runtime/pkg/events"
	"github.com/Sternrassler/offline-runtime/pkg/logging"
	"github.com/Sternrassler/offline-runtime/pkg/push"
	"github.com/Sternrassler/offline-runtime/pkg/strategy"
	"github.com/rs/zerolog"
)

// ErrUnknownEvent is returned for events the runtime cannot dispatch.
var ErrUnknownEvent = errors.New("unknown runtime event")

// RequestHandler answers intercepted requests (strategy.Engine).
type RequestHandler interface {
	Handle(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Lifecycle installs and activates the current namespace set
// (lifecycle.Manager).
type Lifecycle interface {
	Install(ctx context.Context) error
	Activate(ctx context.Context) error
	Version() string
}

// Drainer replays sync queues (syncqueue.Queue).
type Drainer interface {
	Drain(ctx context.Context, queue string) error
}

// Notifications handles push payloads and notification clicks (push.Router).
type Notifications interface {
	HandlePush(ctx context.Context, data []byte) (push.Payload, error)
	HandleClick(ctx context.Context, action string, data map[string]any) (push.ClickResult, error)
}

// Messenger executes control messages (control.Dispatcher).
type Messenger interface {
	Dispatch(ctx context.Context, msg control.Message) (any, error)
}

// Options wires a Runtime. Every component is required.
type Options struct {
	Engine        RequestHandler
	Lifecycle     Lifecycle
	Sync          Drainer
	Notifications Notifications
	Control       Messenger

	// Origin resolves relative request URLs received by ServeHTTP.
	Origin *url.URL

	// Bus receives navigation events. Optional.
	Bus *events.Bus

	Logger *zerolog.Logger
}

// Runtime routes events to the runtime components.
type Runtime struct {
	engine    RequestHandler
	lifecycle Lifecycle
	sync      Drainer
	notify    Notifications
	control   Messenger
	origin    *url.URL
	bus       *events.Bus
	logger    zerolog.Logger
	mux       *http.ServeMux
}

// New creates a runtime.
func New(opts Options) (*Runtime, error) {
	switch {
	case opts.Engine == nil:
		return nil, fmt.Errorf("engine is required")
	case opts.Lifecycle == nil:
		return nil, fmt.Errorf("lifecycle is required")
	case opts.Sync == nil:
		return nil, fmt.Errorf("sync queue is required")
	case opts.Notifications == nil:
		return nil, fmt.Errorf("notification router is required")
	case opts.Control == nil:
		return nil, fmt.Errorf("control dispatcher is required")
	case opts.Origin == nil || !opts.Origin.IsAbs():
		return nil, fmt.Errorf("absolute origin URL is required")
	}

	logger := logging.NewLogger("runtime")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	rt := &Runtime{
		engine:    opts.Engine,
		lifecycle: opts.Lifecycle,
		sync:      opts.Sync,
		notify:    opts.Notifications,
		control:   opts.Control,
		origin:    opts.Origin,
		bus:       opts.Bus,
		logger:    logger,
	}
	rt.mux = rt.routes()
	return rt, nil
}

// Dispatch handles one event.
func (rt *Runtime) Dispatch(ctx context.Context, ev Event) (Result, error) {
	res, err := rt.dispatch(ctx, ev)

	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsTotal.WithLabelValues(eventName(ev), result).Inc()
	return res, err
}

func (rt *Runtime) dispatch(ctx context.Context, ev Event) (Result, error) {
	switch ev := ev.(type) {
	case InstallEvent:
		return Result{}, rt.lifecycle.Install(ctx)

	case ActivateEvent:
		return Result{}, rt.lifecycle.Activate(ctx)

	case FetchEvent:
		if ev.Request == nil {
			return Result{}, fmt.Errorf("fetch event without request")
		}
		if strategy.IsNavigation(ev.Request) {
			rt.bus.Publish(ctx, events.Event{Kind: events.KindNavigation, URL: ev.Request.URL.String()})
		}
		resp, err := rt.engine.Handle(ctx, ev.Request)
		return Result{Response: resp}, err

	case MessageEvent:
		reply, err := rt.control.Dispatch(ctx, ev.Message)
		return Result{Reply: reply}, err

	case SyncEvent:
		return Result{}, rt.sync.Drain(ctx, ev.Tag)

	case PushEvent:
		payload, err := rt.notify.HandlePush(ctx, ev.Data)
		return Result{Notification: payload}, err

	case NotificationClickEvent:
		click, err := rt.notify.HandleClick(ctx, ev.Action, ev.Data)
		return Result{Click: click}, err

	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}
