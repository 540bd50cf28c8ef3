package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/offline-runtime/internal/testutil"
	"github.com/Sternrassler/offline-runtime/pkg/cache"
	"github.com/Sternrassler/offline-runtime/pkg/control"
	"github.com/Sternrassler/offline-runtime/pkg/events"
	"github.com/Sternrassler/offline-runtime/pkg/lifecycle"
	"github.com/Sternrassler/offline-runtime/pkg/push"
	"github.com/Sternrassler/offline-runtime/pkg/strategy"
	"github.com/Sternrassler/offline-runtime/pkg/syncqueue"
)

const origin = "https://app.example.com"

type fixture struct {
	net       *testutil.FakeFetcher
	bus       *events.Bus
	lifecycle *lifecycle.Manager
	queue     *syncqueue.Queue
	notifier  *push.LogNotifier
	windows   *push.MemoryWindows
	runtime   *Runtime
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	u, _ := url.Parse(origin)

	f := &fixture{
		net:      testutil.NewFakeFetcher(),
		bus:      events.NewBus(),
		notifier: push.NewLogNotifier(10),
		windows:  push.NewMemoryWindows(),
	}
	for _, path := range lifecycle.DefaultManifest {
		f.net.Set(origin+path, testutil.NewOKResponse(path))
	}

	store := cache.NewMemoryStore()
	names := cache.Namespaces{Prefix: "offline-runtime", Version: "v2"}

	engine, err := strategy.NewEngine(strategy.Options{
		Store:      store,
		Fetcher:    f.net,
		Namespaces: names,
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	t.Cleanup(engine.Wait)

	f.lifecycle, err = lifecycle.NewManager(lifecycle.Options{
		Store:      store,
		Fetcher:    f.net,
		Namespaces: names,
		Origin:     u,
		Bus:        f.bus,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	f.queue, err = syncqueue.New(syncqueue.Options{
		Store:    syncqueue.NewMemoryStore(),
		Handlers: syncqueue.DefaultHandlers(u, f.net),
		Bus:      f.bus,
	})
	if err != nil {
		t.Fatalf("syncqueue.New failed: %v", err)
	}

	router, err := push.NewRouter(f.notifier, f.windows, u)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}

	dispatcher, err := control.NewDispatcher(control.Options{
		Lifecycle: f.lifecycle,
		Queue:     f.queue,
		Store:     store,
		Fetcher:   f.net,
		Origin:    u,
	})
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}

	f.runtime, err = New(Options{
		Engine:        engine,
		Lifecycle:     f.lifecycle,
		Sync:          f.queue,
		Notifications: router,
		Control:       dispatcher,
		Origin:        u,
		Bus:           f.bus,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string, headers ...string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.runtime.ServeHTTP(rec, req)
	return rec.Result()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestNew_Validation(t *testing.T) {
	f := newFixture(t)
	u, _ := url.Parse(origin)
	valid := Options{
		Engine:        f.runtime.engine,
		Lifecycle:     f.runtime.lifecycle,
		Sync:          f.runtime.sync,
		Notifications: f.runtime.notify,
		Control:       f.runtime.control,
		Origin:        u,
	}

	tests := []struct {
		name   string
		mutate func(o *Options)
	}{
		{name: "missing engine", mutate: func(o *Options) { o.Engine = nil }},
		{name: "missing lifecycle", mutate: func(o *Options) { o.Lifecycle = nil }},
		{name: "missing sync", mutate: func(o *Options) { o.Sync = nil }},
		{name: "missing notifications", mutate: func(o *Options) { o.Notifications = nil }},
		{name: "missing control", mutate: func(o *Options) { o.Control = nil }},
		{name: "relative origin", mutate: func(o *Options) { o.Origin = &url.URL{Path: "/"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			if _, err := New(opts); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestDispatch_InstallThenActivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.runtime.Dispatch(ctx, InstallEvent{}); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	if got := f.lifecycle.State(cache.RoleStatic); got != lifecycle.StateInstalled {
		t.Errorf("state after install = %s, want INSTALLED", got)
	}
	if _, err := f.runtime.Dispatch(ctx, ActivateEvent{}); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if got := f.lifecycle.State(cache.RoleStatic); got != lifecycle.StateActive {
		t.Errorf("state after activate = %s, want ACTIVE", got)
	}
}

func TestDispatch_FetchWithoutRequest(t *testing.T) {
	f := newFixture(t)
	if _, err := f.runtime.Dispatch(context.Background(), FetchEvent{}); err == nil {
		t.Error("fetch event without request should fail")
	}
}

func TestServeHTTP_CachesStaticAssets(t *testing.T) {
	f := newFixture(t)
	f.net.Set(origin+"/styles/main.css", testutil.NewOKResponse("body{}"))

	first := f.do(t, "GET", "/styles/main.css", "")
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.StatusCode)
	}
	if body := readBody(t, first); body != "body{}" {
		t.Errorf("first body = %q", body)
	}

	second := f.do(t, "GET", "/styles/main.css", "")
	if got := second.Header.Get(cache.HeaderStatus); got != strategy.StatusHit {
		t.Errorf("second %s = %q, want HIT", cache.HeaderStatus, got)
	}
	if body := readBody(t, second); body != "body{}" {
		t.Errorf("second body = %q", body)
	}
	if calls := f.net.Calls(origin + "/styles/main.css"); calls != 1 {
		t.Errorf("network calls = %d, want 1", calls)
	}
}

func TestServeHTTP_OfflineNavigation(t *testing.T) {
	f := newFixture(t)

	var (
		mu   sync.Mutex
		urls []string
	)
	f.bus.Subscribe(events.KindNavigation, func(_ context.Context, ev events.Event) {
		mu.Lock()
		urls = append(urls, ev.URL)
		mu.Unlock()
	})

	if resp := f.do(t, "POST", ControlPrefix+"/install", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("install status = %d, want 204", resp.StatusCode)
	}
	f.net.SetOffline(true)

	resp := f.do(t, "GET", "/tools", "", "Sec-Fetch-Mode", "navigate")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get(cache.HeaderStatus); got != strategy.StatusOffline {
		t.Errorf("%s = %q, want OFFLINE", cache.HeaderStatus, got)
	}
	if body := readBody(t, resp); body != "/offline.html" {
		t.Errorf("body = %q, want offline document", body)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(urls) != 1 || urls[0] != origin+"/tools" {
		t.Errorf("navigation events = %v", urls)
	}
}

func TestServeHTTP_FailureStatus(t *testing.T) {
	f := newFixture(t)
	f.net.SetOffline(true)

	resp := f.do(t, "GET", "/api/projects", "", "Accept", "application/json")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestServeHTTP_PassesThroughPost(t *testing.T) {
	f := newFixture(t)
	f.net.Set(origin+"/api/projects", testutil.NewOKResponse(`{"id":1}`))

	for i := 0; i < 2; i++ {
		resp := f.do(t, "POST", "/api/projects", `{"name":"x"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if got := resp.Header.Get(cache.HeaderStatus); got != "" {
			t.Errorf("POST response marked %q", got)
		}
	}
	if calls := f.net.Calls(origin + "/api/projects"); calls != 2 {
		t.Errorf("network calls = %d, want 2", calls)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "cache miss", err: &strategy.CacheMissError{Namespace: "ns", URL: "u"}, want: http.StatusNotFound},
		{name: "network timeout", err: &strategy.TimeoutError{URL: "u", After: time.Second}, want: http.StatusGatewayTimeout},
		{name: "deadline", err: fmt.Errorf("fetch: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{name: "offline", err: testutil.ErrOffline, want: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestServeHTTP_Control(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "get version", body: `{"type":"GET_VERSION"}`, wantStatus: http.StatusOK, wantBody: `"version":"v2"`},
		{name: "force activate before install", body: `{"type":"FORCE_ACTIVATE"}`, wantStatus: http.StatusNoContent},
		{name: "sync data", body: `{"type":"SYNC_DATA","data":{"queue":"analytics-queue","data":{"event":"click"}}}`, wantStatus: http.StatusOK, wantBody: `"queue":"analytics-queue"`},
		{name: "sync data unknown queue", body: `{"type":"SYNC_DATA","data":{"queue":"nope","data":{}}}`, wantStatus: http.StatusBadRequest},
		{name: "unknown type", body: `{"type":"REBOOT"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			resp := f.do(t, "POST", ControlPrefix+"/control", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if body := readBody(t, resp); !strings.Contains(body, tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", body, tt.wantBody)
			}
		})
	}
}

func TestServeHTTP_Sync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	endpoint := origin + "/api/analytics"

	if _, err := f.queue.Enqueue(ctx, syncqueue.AnalyticsQueue, json.RawMessage(`{"event":"click"}`)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	f.net.Set(endpoint, testutil.NewServerErrorResponse())
	if resp := f.do(t, "POST", ControlPrefix+"/sync/"+syncqueue.AnalyticsQueue, ""); resp.StatusCode != http.StatusBadGateway {
		t.Errorf("failed replay status = %d, want 502", resp.StatusCode)
	}
	if n, _ := f.queue.Pending(ctx, syncqueue.AnalyticsQueue); n != 1 {
		t.Fatalf("pending after failure = %d, want 1", n)
	}

	f.net.Set(endpoint, testutil.NewOKResponse(`{"ok":true}`))
	if resp := f.do(t, "POST", ControlPrefix+"/sync/"+syncqueue.AnalyticsQueue, ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("replay status = %d, want 204", resp.StatusCode)
	}
	if n, _ := f.queue.Pending(ctx, syncqueue.AnalyticsQueue); n != 0 {
		t.Errorf("pending after replay = %d, want 0", n)
	}

	if resp := f.do(t, "POST", ControlPrefix+"/sync/unknown", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown queue status = %d, want 404", resp.StatusCode)
	}
}

func TestServeHTTP_Push(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantTitle string
	}{
		{name: "payload", body: `{"title":"Build finished","body":"Project ready"}`, wantTitle: "Build finished"},
		{name: "malformed", body: `not json`, wantTitle: "Offline Runtime"},
		{name: "empty", body: "", wantTitle: "Offline Runtime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			resp := f.do(t, "POST", ControlPrefix+"/push", tt.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			var p push.Payload
			if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if p.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", p.Title, tt.wantTitle)
			}
			if shown := f.notifier.Shown(); len(shown) != 1 {
				t.Errorf("shown = %d, want 1", len(shown))
			}
		})
	}
}

func TestServeHTTP_NotificationClick(t *testing.T) {
	f := newFixture(t)
	id := f.windows.Add(origin + "/")

	resp := f.do(t, "POST", ControlPrefix+"/notificationclick", `{"action":"view-project","data":{"projectId":"42"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var click push.ClickResult
	if err := json.NewDecoder(resp.Body).Decode(&click); err != nil {
		t.Fatalf("decode click: %v", err)
	}
	if click.Target != origin+"/projects/42" || click.WindowID != id {
		t.Errorf("click = %+v", click)
	}
	if f.windows.Focused() != id {
		t.Errorf("focused = %q, want %q", f.windows.Focused(), id)
	}
}

func TestServeHTTP_HealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, "GET", ControlPrefix+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, `"version":"v2"`) {
		t.Errorf("health body = %q", body)
	}

	f.do(t, "POST", ControlPrefix+"/push", `{}`)
	resp = f.do(t, "GET", ControlPrefix+"/metrics", "")
	if body := readBody(t, resp); !strings.Contains(body, "offline_runtime_events_total") {
		t.Error("metrics should expose runtime event counters")
	}
}

func TestDispatch_UnknownEvent(t *testing.T) {
	f := newFixture(t)
	if _, err := f.runtime.Dispatch(context.Background(), nil); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Dispatch(nil) = %v, want ErrUnknownEvent", err)
	}
}
