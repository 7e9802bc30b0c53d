// Package client provides the HTTP client for the dealer scoring service,
// with request pacing, response caching, and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/dealer-answer/pkg/cache"
	"github.com/Sternrassler/dealer-answer/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the scoring service endpoint.
const DefaultBaseURL = "http://api.coxauto-interview.com/api"

// maxErrorBody bounds how much of a failed response body is kept in errors.
const maxErrorBody = 512

// Prometheus metrics for service requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealer_answer_requests_total",
		Help: "Total service requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealer_answer_request_duration_seconds",
		Help:    "Service request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealer_answer_errors_total",
		Help: "Total service errors by class",
	}, []string{"class"})
)

// Client talks to the scoring service.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	limiter    *ratelimit.Limiter
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the absolute service URL every endpoint is appended to.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// RateLimit paces outgoing requests.
	RateLimit ratelimit.Config

	// Redis enables the response cache when non-nil.
	Redis *redis.Client

	// CacheTTL is the lifetime of cached records.
	CacheTTL time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Config{
		BaseURL:   baseURL,
		UserAgent: "dealer-answer/0.1.0",
		Timeout:   30 * time.Second,
		RateLimit: ratelimit.DefaultConfig(),
		CacheTTL:  cache.DefaultTTL,
	}
}

// New creates a new service client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse base url: %v", ErrInvalidConfig, err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("%w: base url must be absolute (got %q)", ErrInvalidConfig, cfg.BaseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be > 0 (got %s)", ErrInvalidConfig, cfg.Timeout)
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = "dealer-answer/0.1.0"
	}

	logger := log.With().Str("component", "client").Logger()

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis, cfg.CacheTTL)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		limiter: ratelimit.NewLimiter(cfg.RateLimit, logger),
		cache:   cacheManager,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Do performs an HTTP request with pacing, caching, and metrics.
// Non-2xx responses are returned as-is; only transport failures are errors.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := c.relativePath(req.URL.Path)
	label := NormalizeEndpoint(endpoint)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(label).Observe(time.Since(startTime).Seconds())
	}()

	// Cache lookup happens before pacing: a hit costs the service nothing.
	var cacheKey cache.CacheKey
	cacheable := c.cache != nil && cache.Cacheable(req.Method, endpoint)
	if cacheable {
		cacheKey = cache.CacheKey{Endpoint: endpoint, QueryParams: req.URL.Query()}
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("endpoint", endpoint).Msg("Served from cache")
			requestsTotal.WithLabelValues(label, "cache").Inc()
			return cache.EntryToResponse(entry), nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(label, "rate_limited").Inc()
		return nil, &RequestError{Method: req.Method, Endpoint: endpoint, Err: err}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(label, "network_error").Inc()
		return nil, &RequestError{Method: req.Method, Endpoint: endpoint, Err: err}
	}

	requestsTotal.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()

	if class := classifyStatus(resp.StatusCode); class != "" {
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Service request error")
		return resp, nil
	}

	if cacheable && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp, c.cache.TTL())
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// Get performs a GET request to a service endpoint such as "/datasetId".
func (c *Client) Get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	return c.Do(req)
}

// GetJSON GETs endpoint and decodes a 2xx JSON body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, out any) error {
	resp, err := c.Get(ctx, endpoint)
	if err != nil {
		return err
	}
	return decodeResponse(http.MethodGet, endpoint, resp, out)
}

// PostJSON encodes in, POSTs it to endpoint and decodes a 2xx JSON body into out.
func (c *Client) PostJSON(ctx context.Context, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", endpoint, err)
	}

	resp, err := c.Post(ctx, endpoint, body)
	if err != nil {
		return err
	}
	return decodeResponse(http.MethodPost, endpoint, resp, out)
}

// URL resolves endpoint against the base URL.
func (c *Client) URL(endpoint string) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(endpoint, "/")
	return u.String()
}

// BaseURL returns the configured service URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// CacheEnabled reports whether responses are cached in Redis.
func (c *Client) CacheEnabled() bool {
	return c.cache != nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// relativePath strips the base path so cache keys and labels do not depend
// on where the service is mounted.
func (c *Client) relativePath(path string) string {
	rel := strings.TrimPrefix(path, c.baseURL.Path)
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}

func decodeResponse(method, endpoint string, resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return &DecodeError{Endpoint: endpoint, Err: err}
	}
	return nil
}

// NormalizeEndpoint collapses dataset and record IDs so metric labels stay
// bounded, e.g. "/ab12/vehicles/42" becomes "/{dataset}/vehicles/{id}".
func NormalizeEndpoint(endpoint string) string {
	segments := strings.Split(strings.Trim(endpoint, "/"), "/")

	switch {
	case len(segments) == 1 && segments[0] == "datasetId":
		return "/datasetId"
	case len(segments) == 2 && segments[1] == "vehicles":
		return "/{dataset}/vehicles"
	case len(segments) == 2 && segments[1] == "answer":
		return "/{dataset}/answer"
	case len(segments) == 3 && (segments[1] == "vehicles" || segments[1] == "dealers"):
		return "/{dataset}/" + segments[1] + "/{id}"
	default:
		return "other"
	}
}
