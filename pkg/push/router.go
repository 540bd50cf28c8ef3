package push

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/Sternrassler/offline-runtime/pkg/logging"
	"github.com/rs/zerolog"
)

// Notification actions with a fixed target.
const (
	ActionViewTools       = "view-tools"
	ActionDownloadProject = "download-project"
	ActionViewProject     = "view-project"
	ActionDismiss         = "dismiss"
)

// Notifier displays notifications.
type Notifier interface {
	Show(ctx context.Context, p Payload) error
}

// Window is an open application window.
type Window struct {
	ID  string
	URL string
}

// WindowClients controls the application windows of the host.
type WindowClients interface {
	Windows(ctx context.Context) ([]Window, error)
	Focus(ctx context.Context, id string) error
	Navigate(ctx context.Context, id, target string) error
	Open(ctx context.Context, target string) error
}

// ClickResult describes how a click was routed.
type ClickResult struct {
	// Target is the absolute URL navigated to; empty for dismiss.
	Target string
	// WindowID is the focused window; empty when a new window was opened.
	WindowID string
	Opened   bool
}

// Router handles push and notification-click events.
type Router struct {
	notifier Notifier
	clients  WindowClients
	origin   *url.URL
	logger   zerolog.Logger
}

// NewRouter creates a router. origin scopes which windows may be reused and
// resolves relative targets.
func NewRouter(notifier Notifier, clients WindowClients, origin *url.URL) (*Router, error) {
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if clients == nil {
		return nil, errors.New("window clients are required")
	}
	if origin == nil || !origin.IsAbs() {
		return nil, errors.New("absolute origin URL is required")
	}
	return &Router{
		notifier: notifier,
		clients:  clients,
		origin:   origin,
		logger:   logging.NewLogger("push"),
	}, nil
}

// HandlePush shows a notification for data. A malformed payload is logged
// and replaced by the defaults.
func (r *Router) HandlePush(ctx context.Context, data []byte) (Payload, error) {
	p, err := Parse(data)
	if err != nil {
		parseErrors.Inc()
		r.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Malformed push payload, showing default notification")
	}

	if err := r.notifier.Show(ctx, p); err != nil {
		return p, fmt.Errorf("show notification: %w", err)
	}
	notificationsShown.Inc()
	r.logger.Debug().Str("title", p.Title).Str("tag", p.Tag).Msg("Notification shown")
	return p, nil
}

// Target returns the application path for a clicked action. Dismiss has no
// target.
func Target(action string, data map[string]any) (string, bool) {
	switch action {
	case ActionDismiss:
		return "", false
	case ActionViewTools:
		return "/tools", true
	case ActionDownloadProject:
		return "/projects/download", true
	case ActionViewProject:
		if id := stringField(data, "projectId"); id != "" {
			return "/projects/" + url.PathEscape(id), true
		}
		return "/projects", true
	default:
		if u := stringField(data, "url"); u != "" {
			return u, true
		}
		return "/", true
	}
}

func stringField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return ""
	}
}

// HandleClick routes a notification click. The first window on the
// application origin is focused and navigated; without one a new window is
// opened.
func (r *Router) HandleClick(ctx context.Context, action string, data map[string]any) (ClickResult, error) {
	clicksTotal.WithLabelValues(actionLabel(action)).Inc()

	path, ok := Target(action, data)
	if !ok {
		r.logger.Debug().Str("action", action).Msg("Notification dismissed")
		return ClickResult{}, nil
	}

	ref, err := url.Parse(path)
	if err != nil {
		return ClickResult{}, fmt.Errorf("parse click target %q: %w", path, err)
	}
	target := r.origin.ResolveReference(ref).String()

	windows, err := r.clients.Windows(ctx)
	if err != nil {
		return ClickResult{}, fmt.Errorf("list windows: %w", err)
	}
	for _, w := range windows {
		if !r.sameOrigin(w.URL) {
			continue
		}
		if err := r.clients.Focus(ctx, w.ID); err != nil {
			return ClickResult{}, fmt.Errorf("focus window %s: %w", w.ID, err)
		}
		if err := r.clients.Navigate(ctx, w.ID, target); err != nil {
			return ClickResult{}, fmt.Errorf("navigate window %s: %w", w.ID, err)
		}
		r.logger.Info().Str("action", action).Str("target", target).Str("window", w.ID).Msg("Focused existing window")
		return ClickResult{Target: target, WindowID: w.ID}, nil
	}

	if err := r.clients.Open(ctx, target); err != nil {
		return ClickResult{}, fmt.Errorf("open window: %w", err)
	}
	r.logger.Info().Str("action", action).Str("target", target).Msg("Opened new window")
	return ClickResult{Target: target, Opened: true}, nil
}

func (r *Router) sameOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == r.origin.Scheme && u.Host == r.origin.Host
}

func actionLabel(action string) string {
	switch action {
	case ActionViewTools, ActionDownloadProject, ActionViewProject, ActionDismiss:
		return action
	default:
		return "default"
	}
}
