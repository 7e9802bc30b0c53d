// Command dealer-answer resolves a dataset from the scoring service, groups
// its vehicles by dealer and submits the answer. On success it prints the
// service's message and total milliseconds to stdout; any fatal error exits
// with status 1.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/dealer-answer/internal/config"
	"github.com/Sternrassler/dealer-answer/pkg/client"
	"github.com/Sternrassler/dealer-answer/pkg/dataset"
	"github.com/Sternrassler/dealer-answer/pkg/logging"
	"github.com/Sternrassler/dealer-answer/pkg/metrics"
	"github.com/Sternrassler/dealer-answer/pkg/pipeline"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stdout, config.DefaultSearchPaths...)
	stop()
	os.Exit(code)
}

// run executes one submission and returns the process exit code.
func run(ctx context.Context, stdout io.Writer, configPaths ...string) int {
	logging.Setup(logging.DefaultConfig())

	cfg, err := config.Load(configPaths...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}
	logging.Setup(cfg.Logging())
	logger := logging.NewLogger("main")

	logger.Debug().
		Str("base_url", cfg.BaseURL).
		Str("config_file", cfg.File).
		Msg("Configuration loaded")

	if cfg.MetricsAddr != "" {
		if _, err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server disabled")
		}
	}

	rdb := connectRedis(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	c, err := client.New(cfg.Client(rdb))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create service client")
		return 1
	}
	defer c.Close()

	p, err := pipeline.New(dataset.NewService(c), cfg.Pipeline())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create pipeline")
		return 1
	}

	report, err := p.Run(ctx)
	if err != nil {
		event := logger.Error().Err(err)
		var phaseErr *pipeline.PhaseError
		if errors.As(err, &phaseErr) {
			event = event.Str("phase", string(phaseErr.Phase))
		}
		event.Msg("Run failed")
		return 1
	}

	fmt.Fprintln(stdout, report.Result.Message, report.Result.TotalMilliseconds)
	return 0
}

// connectRedis returns a client for the configured cache, or nil when the
// cache is disabled or unreachable. The run proceeds uncached in both cases.
func connectRedis(ctx context.Context, cfg config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := cfg.RedisOptions()
	if err != nil || opts == nil {
		return nil
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unavailable, running without cache")
		rdb.Close()
		return nil
	}

	logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	return rdb
}
