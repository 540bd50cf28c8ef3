// Command offline-proxy serves an origin through the offline runtime: cached
// strategies for reads, durable sync queues for writes made while offline,
// and push routing.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/offline-runtime/pkg/cache"
	"github.com/Sternrassler/offline-runtime/pkg/client"
	"github.com/Sternrassler/offline-runtime/pkg/control"
	"github.com/Sternrassler/offline-runtime/pkg/events"
	"github.com/Sternrassler/offline-runtime/pkg/lifecycle"
	"github.com/Sternrassler/offline-runtime/pkg/logging"
	"github.com/Sternrassler/offline-runtime/pkg/push"
	"github.com/Sternrassler/offline-runtime/pkg/strategy"
	"github.com/Sternrassler/offline-runtime/pkg/syncqueue"
	"github.com/Sternrassler/offline-runtime/pkg/worker"
	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := loadConfig(env.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg config, logger zerolog.Logger) error {
	s, err := newServer(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer s.close()

	if cfg.InstallOnStart {
		s.install(ctx)
	}
	s.resumeSync(ctx)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Str("origin", cfg.OriginURL).
			Str("version", cfg.Version).
			Str("cache_store", cfg.CacheStore).
			Str("queue_store", cfg.QueueStore).
			Msg("Starting offline proxy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// server owns the runtime components and the backends they share.
type server struct {
	cfg       config
	logger    zerolog.Logger
	redis     *redis.Client
	sqlite    *syncqueue.SQLiteStore
	engine    *strategy.Engine
	lifecycle *lifecycle.Manager
	queue     *syncqueue.Queue
	scheduler *syncqueue.RetryScheduler
	runtime   *worker.Runtime
}

// newServer wires the runtime. A nil fetcher selects the network client.
func newServer(ctx context.Context, cfg config, fetcher strategy.Fetcher) (*server, error) {
	s := &server{cfg: cfg, logger: logging.NewLogger("offline-proxy")}
	origin := cfg.origin()

	if fetcher == nil {
		netCfg := client.DefaultConfig()
		netCfg.UserAgent = cfg.UserAgent
		netCfg.Timeout = cfg.FetchTimeout
		c, err := client.New(netCfg)
		if err != nil {
			return nil, fmt.Errorf("create network client: %w", err)
		}
		fetcher = c
	}

	if cfg.usesRedis() {
		s.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		s.logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
	}

	var store cache.Store = cache.NewMemoryStore()
	if cfg.CacheStore == backendRedis {
		store = cache.NewRedisStore(s.redis, cache.DefaultRedisPrefix)
	}

	var items syncqueue.Store = syncqueue.NewMemoryStore()
	switch cfg.QueueStore {
	case backendRedis:
		items = syncqueue.NewRedisStore(s.redis, syncqueue.DefaultRedisPrefix)
	case backendSQLite:
		db, err := syncqueue.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			s.close()
			return nil, err
		}
		s.sqlite = db
		items = db
	}

	bus := events.NewBus()
	names := cache.Namespaces{Prefix: cfg.Prefix, Version: cfg.Version}

	var err error
	s.engine, err = strategy.NewEngine(strategy.Options{
		Store:      store,
		Fetcher:    fetcher,
		Namespaces: names,
	})
	if err != nil {
		s.close()
		return nil, err
	}

	s.lifecycle, err = lifecycle.NewManager(lifecycle.Options{
		Store:      store,
		Fetcher:    fetcher,
		Namespaces: names,
		Origin:     origin,
		Bus:        bus,
	})
	if err != nil {
		s.close()
		return nil, err
	}

	s.queue, err = syncqueue.New(syncqueue.Options{
		Store:    items,
		Handlers: syncqueue.DefaultHandlers(origin, fetcher),
		Bus:      bus,
	})
	if err != nil {
		s.close()
		return nil, err
	}
	retry := syncqueue.DefaultRetryConfig()
	retry.MaxAttempts = cfg.SyncMaxAttempts
	s.scheduler = syncqueue.NewRetryScheduler(context.WithoutCancel(ctx), s.queue, retry)
	s.queue.SetScheduler(s.scheduler)

	router, err := push.NewRouter(push.NewLogNotifier(100), push.NewMemoryWindows(), origin)
	if err != nil {
		s.close()
		return nil, err
	}

	dispatcher, err := control.NewDispatcher(control.Options{
		Lifecycle: s.lifecycle,
		Queue:     s.queue,
		Store:     store,
		Fetcher:   fetcher,
		Registry:  s.engine.Registry(),
		Origin:    origin,
	})
	if err != nil {
		s.close()
		return nil, err
	}

	s.runtime, err = worker.New(worker.Options{
		Engine:        s.engine,
		Lifecycle:     s.lifecycle,
		Sync:          s.queue,
		Notifications: router,
		Control:       dispatcher,
		Origin:        origin,
		Bus:           bus,
	})
	if err != nil {
		s.close()
		return nil, err
	}

	bus.Subscribe("", func(_ context.Context, ev events.Event) {
		s.logger.Debug().Str("kind", string(ev.Kind)).Str("url", ev.URL).Interface("data", ev.Data).Msg("Runtime event")
	})
	return s, nil
}

// install precaches the shell and activates it.
func (s *server) install(ctx context.Context) {
	if _, err := s.runtime.Dispatch(ctx, worker.InstallEvent{}); err != nil {
		s.logger.Error().Err(err).Msg("Install failed, serving without precache")
		return
	}
	if _, err := s.runtime.Dispatch(ctx, worker.ActivateEvent{}); err != nil {
		s.logger.Error().Err(err).Msg("Activation failed")
	}
}

// resumeSync schedules replay of items a previous process left pending.
func (s *server) resumeSync(ctx context.Context) {
	for _, queue := range s.queue.Names() {
		n, err := s.queue.Pending(ctx, queue)
		if err != nil {
			s.logger.Warn().Err(err).Str("queue", queue).Msg("Failed to read pending items")
			continue
		}
		if n > 0 {
			s.logger.Info().Str("queue", queue).Int("pending", n).Msg("Resuming sync replay")
			s.scheduler.Register(queue)
		}
	}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+worker.ControlPrefix+"/ready", s.readyHandler)
	mux.Handle("/", s.runtime)
	return mux
}

// readyHandler reports whether the shell is installed and Redis, when
// configured, answers.
func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			http.Error(w, "Redis not ready", http.StatusServiceUnavailable)
			return
		}
	}
	if s.lifecycle.State(cache.RoleStatic) == lifecycle.StateNew {
		http.Error(w, "Not installed", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// close stops background work and releases the backends.
func (s *server) close() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.engine != nil {
		s.engine.Wait()
	}
	if s.sqlite != nil {
		if err := s.sqlite.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close SQLite store")
		}
	}
	if s.redis != nil {
		s.redis.Close()
	}
}
