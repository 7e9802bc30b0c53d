// Package metrics provides the Prometheus registry and /metrics endpoint for
// dealer-answer. All metrics are defined in their respective packages
// (client, cache, ratelimit, fanout, pipeline) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by dealer-answer.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Path is where the handler is mounted.
const Path = "/metrics"

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - dealer_answer_requests_total{endpoint, status} (Counter): Requests by normalized endpoint and HTTP status ("cache", "network_error" and "rate_limited" for requests that never got one)
//   - dealer_answer_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - dealer_answer_errors_total{class} (Counter): Errors by class (client, server, network, decode)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - dealer_answer_rate_limit_wait_seconds (Histogram): Time spent waiting for a request token
//   - dealer_answer_rate_limit_rejections_total (Counter): Waits abandoned because the context ended
//
// Cache Metrics (pkg/cache):
//   - dealer_answer_cache_hits_total (Counter): Records served from Redis
//   - dealer_answer_cache_misses_total (Counter): Cache misses
//   - dealer_answer_cache_errors_total{operation} (Counter): Cache operation errors
//
// Fan-out Metrics (pkg/fanout):
//   - dealer_answer_fanout_inflight{pool} (Gauge): Calls currently in flight per pool ("vehicles", "dealers")
//   - dealer_answer_fanout_calls_total{pool, outcome} (Counter): Completed calls by outcome
//
// Pipeline Metrics (pkg/pipeline):
//   - dealer_answer_pipeline_phase_duration_seconds{phase} (Histogram): Duration of each completed phase
//   - dealer_answer_vehicle_fetch_failures_total (Counter): Vehicles dropped after a failed fetch
//   - dealer_answer_runs_total{outcome} (Counter): Runs by outcome (success, incorrect, or the failed phase)
//
// Example Prometheus Queries:
//
//   # Vehicle pool saturation (never above 3)
//   max_over_time(dealer_answer_fanout_inflight{pool="vehicles"}[5m])
//
//   # Cache Hit Rate
//   sum(rate(dealer_answer_cache_hits_total[5m])) /
//   (sum(rate(dealer_answer_cache_hits_total[5m])) + sum(rate(dealer_answer_cache_misses_total[5m])))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(dealer_answer_request_duration_seconds_bucket[5m]))

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Handler on addr until ctx is done. It returns the address
// actually bound, which differs from addr when addr uses port 0.
func Serve(ctx context.Context, addr string) (string, error) {
	logger := log.With().Str("component", "metrics").Logger()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	mux := http.NewServeMux()
	mux.Handle(Path, Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return ln.Addr().String(), nil
}
