package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/offline-runtime/pkg/control"
	"github.com/Sternrassler/offline-runtime/pkg/metrics"
	"github.com/Sternrassler/offline-runtime/pkg/strategy"
	"github.com/Sternrassler/offline-runtime/pkg/syncqueue"
)

// ControlPrefix is the path prefix of the runtime's own endpoints. Every
// other path is proxied to the origin.
const ControlPrefix = "/_offline"

// maxBodyBytes caps request bodies read by the runtime endpoints.
const maxBodyBytes = 1 << 20

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func (rt *Runtime) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+ControlPrefix+"/health", rt.handleHealth)
	mux.Handle("GET "+ControlPrefix+"/metrics", metrics.Handler())
	mux.HandleFunc("POST "+ControlPrefix+"/install", rt.handleInstall)
	mux.HandleFunc("POST "+ControlPrefix+"/activate", rt.handleActivate)
	mux.HandleFunc("POST "+ControlPrefix+"/control", rt.handleControl)
	mux.HandleFunc("POST "+ControlPrefix+"/sync/{queue}", rt.handleSync)
	mux.HandleFunc("POST "+ControlPrefix+"/push", rt.handlePush)
	mux.HandleFunc("POST "+ControlPrefix+"/notificationclick", rt.handleClick)
	mux.HandleFunc("/", rt.handleFetch)
	return mux
}

// ServeHTTP implements http.Handler.
func (rt *Runtime) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// handleFetch proxies a request through the strategy engine. Absolute-form
// request URIs (forward proxy) are used as is; origin-form paths are
// resolved against the origin.
func (rt *Runtime) handleFetch(w http.ResponseWriter, r *http.Request) {
	target := r.URL
	if !target.IsAbs() {
		target = rt.origin.ResolveReference(&url.URL{Path: r.URL.Path, RawPath: r.URL.RawPath, RawQuery: r.URL.RawQuery})
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	out.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	out.ContentLength = r.ContentLength

	res, err := rt.Dispatch(r.Context(), FetchEvent{Request: out})
	if err != nil {
		status := statusFor(err)
		proxyResponsesTotal.WithLabelValues(statusClass(status)).Inc()
		rt.logger.Warn().Err(err).Str("url", target.String()).Int("status_code", status).Msg("Fetch failed")
		http.Error(w, http.StatusText(status), status)
		return
	}

	resp := res.Response
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	for _, h := range hopHeaders {
		w.Header().Del(h)
	}
	w.WriteHeader(resp.StatusCode)
	proxyResponsesTotal.WithLabelValues(statusClass(resp.StatusCode)).Inc()

	if _, err := io.Copy(w, resp.Body); err != nil {
		rt.logger.Debug().Err(err).Str("url", target.String()).Msg("Failed to write response body")
	}
}

func (rt *Runtime) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": rt.lifecycle.Version(),
	})
}

func (rt *Runtime) handleInstall(w http.ResponseWriter, r *http.Request) {
	if _, err := rt.Dispatch(r.Context(), InstallEvent{}); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Runtime) handleActivate(w http.ResponseWriter, r *http.Request) {
	if _, err := rt.Dispatch(r.Context(), ActivateEvent{}); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleControl executes a control message. The HTTP response is the
// message's reply port.
func (rt *Runtime) handleControl(w http.ResponseWriter, r *http.Request) {
	var msg control.Message
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode message: %w", err))
		return
	}

	var posted any
	msg.Port = control.PortFunc(func(ctx context.Context, v any) error {
		posted = v
		return nil
	})

	res, err := rt.Dispatch(r.Context(), MessageEvent{Message: msg})
	if err != nil {
		writeError(w, controlStatus(err), err)
		return
	}

	reply := res.Reply
	if posted != nil {
		reply = posted
	}
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (rt *Runtime) handleSync(w http.ResponseWriter, r *http.Request) {
	queue := r.PathValue("queue")
	if _, err := rt.Dispatch(r.Context(), SyncEvent{Tag: queue}); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, syncqueue.ErrUnknownQueue) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Runtime) handlePush(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read payload: %w", err))
		return
	}
	res, err := rt.Dispatch(r.Context(), PushEvent{Data: data})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Notification)
}

func (rt *Runtime) handleClick(w http.ResponseWriter, r *http.Request) {
	var ev NotificationClickEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode click: %w", err))
		return
	}
	res, err := rt.Dispatch(r.Context(), ev)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Click)
}

// statusFor maps a strategy failure to the proxy's response status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, strategy.ErrCacheMiss):
		return http.StatusNotFound
	case errors.Is(err, strategy.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func controlStatus(err error) int {
	switch {
	case errors.Is(err, control.ErrUnknownMessage),
		errors.Is(err, control.ErrInvalidData),
		errors.Is(err, syncqueue.ErrUnknownQueue),
		errors.Is(err, syncqueue.ErrInvalidPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(err.Error())})
}
