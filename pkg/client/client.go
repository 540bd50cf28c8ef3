// Package client provides the network side of the offline runtime: an HTTP
// fetcher that classifies failures and records request metrics.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/offline-runtime/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for network fetches.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_fetch_requests_total",
		Help: "Total network fetches by method and status",
	}, []string{"method", "status"})

	fetchRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offline_fetch_duration_seconds",
		Help:    "Network fetch duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_fetch_errors_total",
		Help: "Total network fetch errors by class",
	}, []string{"class"})
)

// Client performs network fetches on behalf of the runtime.
// It never retries: retry policy belongs to the caller or to the background
// sync queue.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// UserAgent is set on requests that carry none.
	UserAgent string

	// Timeout bounds every fetch including the body read by the caller.
	Timeout time.Duration

	// Transport overrides the HTTP transport (tests, proxies).
	Transport http.RoundTripper
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent: "offline-runtime/1.0",
		Timeout:   30 * time.Second,
	}
}

// New creates a new network client.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	logger := logging.NewLogger("network")

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// Fetch sends req over the network bound to ctx.
//
// Transport failures and 5xx answers are returned as *NetworkError (the
// response body is closed). Any other response, including 4xx, is returned
// to the caller as-is.
func (c *Client) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	out := req.Clone(ctx)
	out.RequestURI = ""
	if out.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
		out.Header.Set("User-Agent", c.config.UserAgent)
	}

	startTime := time.Now()
	defer func() {
		fetchRequestDuration.WithLabelValues(req.Method).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Fetching from network")

	resp, err := c.httpClient.Do(out)
	if err != nil {
		class := c.classifyError(nil, err)
		fetchErrorsTotal.WithLabelValues(string(class)).Inc()
		fetchRequestsTotal.WithLabelValues(req.Method, "network_error").Inc()
		c.logger.Warn().Err(err).Str("url", req.URL.String()).Msg("Network fetch failed")
		return nil, &NetworkError{URL: req.URL.String(), ErrorClass: class, Err: err}
	}

	fetchRequestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()

	if class := c.classifyError(resp, nil); class == ErrorClassServer {
		resp.Body.Close()
		fetchErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("url", req.URL.String()).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Origin server error")
		return nil, &NetworkError{URL: req.URL.String(), StatusCode: resp.StatusCode, ErrorClass: class}
	}

	return resp, nil
}

// classifyError categorizes a fetch outcome for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
