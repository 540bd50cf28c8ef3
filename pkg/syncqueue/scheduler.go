package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Sternrassler/offline-runtime/pkg/logging"
	"github.com/rs/zerolog"
)

// ErrRetryExhausted is returned when every drain attempt failed.
var ErrRetryExhausted = errors.New("sync retry attempts exhausted")

// RetryConfig holds the backoff policy of a RetryScheduler.
type RetryConfig struct {
	// MaxAttempts is the maximum number of drain attempts per registration.
	MaxAttempts int

	// InitialBackoff is the wait after the first failure.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the wait after each failure.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Drainer drains one named queue. *Queue implements it.
type Drainer interface {
	Drain(ctx context.Context, queue string) error
}

// RetryScheduler drains registered queues in the background and retries
// failed drains with exponential backoff and jitter. Registering a queue
// whose drain is already running schedules one more pass after it.
type RetryScheduler struct {
	cfg     RetryConfig
	drainer Drainer
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]bool
	rerun   map[string]bool
}

// NewRetryScheduler creates a scheduler draining through d. Background work
// stops when ctx is cancelled or Stop is called.
func NewRetryScheduler(ctx context.Context, d Drainer, cfg RetryConfig) *RetryScheduler {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &RetryScheduler{
		cfg:     cfg,
		drainer: d,
		logger:  logging.NewLogger("sync-scheduler"),
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]bool),
		rerun:   make(map[string]bool),
	}
}

// Register schedules a drain of queue.
func (s *RetryScheduler) Register(queue string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if s.running[queue] {
		s.rerun[queue] = true
		return
	}
	s.running[queue] = true
	s.wg.Add(1)
	go s.run(queue)
}

func (s *RetryScheduler) run(queue string) {
	defer s.wg.Done()
	for {
		if err := s.drainWithBackoff(s.ctx, queue); err != nil {
			s.logger.Warn().Err(err).Str("queue", queue).Msg("Queue left pending")
		}

		s.mu.Lock()
		if s.rerun[queue] && s.ctx.Err() == nil {
			delete(s.rerun, queue)
			s.mu.Unlock()
			continue
		}
		delete(s.rerun, queue)
		delete(s.running, queue)
		s.mu.Unlock()
		return
	}
}

// drainWithBackoff retries the drain until it succeeds, attempts run out or
// ctx is cancelled.
func (s *RetryScheduler) drainWithBackoff(ctx context.Context, queue string) error {
	var lastErr error
	backoff := s.cfg.InitialBackoff

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err := s.drainer.Drain(ctx, queue)
		if err == nil {
			if attempt > 1 {
				s.logger.Info().
					Str("queue", queue).
					Int("attempt", attempt).
					Msg("Drain succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrUnknownQueue) {
			return err
		}
		if attempt >= s.cfg.MaxAttempts {
			break
		}

		syncRetriesTotal.WithLabelValues(queue).Inc()

		// ±20% jitter
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		syncRetryBackoffSeconds.WithLabelValues(queue).Observe(wait.Seconds())

		s.logger.Debug().
			Str("queue", queue).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying drain after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("drain %s cancelled: %w", queue, ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * s.cfg.BackoffMultiplier)
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}

	syncRetryExhaustedTotal.WithLabelValues(queue).Inc()
	s.logger.Warn().
		Str("queue", queue).
		Int("max_attempts", s.cfg.MaxAttempts).
		Msg("Drain attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, s.cfg.MaxAttempts, lastErr)
}

// Wait blocks until no drain is running.
func (s *RetryScheduler) Wait() {
	s.wg.Wait()
}

// Stop cancels pending retries and waits for running drains to return.
func (s *RetryScheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}
