package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for fan-out pools.
var (
	inflightCalls = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dealer_answer_fanout_inflight",
		Help: "Calls currently in flight by pool name",
	}, []string{"pool"})

	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealer_answer_fanout_calls_total",
		Help: "Completed fan-out calls by pool name and outcome",
	}, []string{"pool", "outcome"})
)

// DefaultMaxConcurrency bounds load on the remote service.
const DefaultMaxConcurrency = 3

// Config holds worker pool configuration.
type Config struct {
	// MaxConcurrency is the maximum number of calls in flight.
	MaxConcurrency int

	// Timeout per call; zero means no per-call timeout.
	Timeout time.Duration

	// Name labels logs and metrics (e.g. "vehicles", "dealers").
	Name string
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig(name string) Config {
	return Config{
		MaxConcurrency: DefaultMaxConcurrency,
		Timeout:        15 * time.Second,
		Name:           name,
	}
}

// Result is the outcome of one call.
type Result[T, R any] struct {
	// Index is the position of Item in the input slice.
	Index int
	Item  T
	Value R
	Err   error
}

// Run calls fn for every item with at most cfg.MaxConcurrency calls in
// flight and returns one Result per item, in input order.
func Run[T, R any](ctx context.Context, items []T, cfg Config, fn func(context.Context, T) (R, error)) []Result[T, R] {
	return RunWith(ctx, items, cfg, fn, nil)
}

// RunWith is Run with a callback invoked for each result as it completes.
// onResult runs on the single collector goroutine, never concurrently with
// itself, and all calls have returned before RunWith does.
func RunWith[T, R any](ctx context.Context, items []T, cfg Config, fn func(context.Context, T) (R, error), onResult func(Result[T, R])) []Result[T, R] {
	results := make([]Result[T, R], len(items))
	if len(items) == 0 {
		return results
	}

	workers := cfg.MaxConcurrency
	if workers <= 0 {
		workers = DefaultMaxConcurrency
	}
	if workers > len(items) {
		workers = len(items)
	}

	start := time.Now()
	logger := log.With().Str("component", "fanout").Str("pool", cfg.Name).Logger()
	logger.Debug().
		Int("items", len(items)).
		Int("workers", workers).
		Msg("Starting fan-out")

	queue := make(chan int)
	completed := make(chan Result[T, R], workers)

	go func() {
		defer close(queue)
		for i := range items {
			select {
			case queue <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go worker(ctx, w, items, cfg, fn, queue, completed, &wg)
	}

	go func() {
		wg.Wait()
		close(completed)
	}()

	done := make([]bool, len(items))
	failed := 0
	for result := range completed {
		results[result.Index] = result
		done[result.Index] = true
		if result.Err != nil {
			failed++
		}
		if onResult != nil {
			onResult(result)
		}
	}

	// Items the feeder never handed out because ctx ended.
	for i := range items {
		if done[i] {
			continue
		}
		results[i] = Result[T, R]{Index: i, Item: items[i], Err: ctx.Err()}
		failed++
		if onResult != nil {
			onResult(results[i])
		}
	}

	logger.Debug().
		Int("items", len(items)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Fan-out complete")

	return results
}

// worker processes item indexes from the queue until it is closed.
func worker[T, R any](ctx context.Context, id int, items []T, cfg Config, fn func(context.Context, T) (R, error), queue <-chan int, completed chan<- Result[T, R], wg *sync.WaitGroup) {
	defer wg.Done()
	processed := 0

	for idx := range queue {
		item := items[idx]

		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if cfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}

		inflightCalls.WithLabelValues(cfg.Name).Inc()
		value, err := fn(callCtx, item)
		inflightCalls.WithLabelValues(cfg.Name).Dec()
		cancel()

		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		callsTotal.WithLabelValues(cfg.Name, outcome).Inc()

		completed <- Result[T, R]{Index: idx, Item: item, Value: value, Err: err}
		processed++
	}

	if processed > 0 {
		log.Debug().
			Str("pool", cfg.Name).
			Int("worker_id", id).
			Int("items_processed", processed).
			Msg("Worker completed")
	}
}
