// Package pipeline resolves a dataset, fans out vehicle and dealer fetches
// under a concurrency cap, groups vehicles by dealer, and submits the
// resulting answer for scoring.
//
// A run has strict phase barriers: every vehicle fetch has returned before
// any dealer is fetched, and every dealer fetch has returned before the
// answer is assembled.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/dealer-answer/pkg/dataset"
	"github.com/Sternrassler/dealer-answer/pkg/fanout"
	"github.com/Sternrassler/dealer-answer/pkg/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxVehicleConcurrency is the most vehicle fetches allowed in flight.
const MaxVehicleConcurrency = 3

// Source is the remote service as seen by the pipeline. *dataset.Service
// implements it.
type Source interface {
	ResolveDatasetID(ctx context.Context) (string, error)
	ListVehicleIDs(ctx context.Context, datasetID string) ([]dataset.VehicleID, error)
	FetchVehicle(ctx context.Context, datasetID string, id dataset.VehicleID) (dataset.VehicleRecord, error)
	FetchDealer(ctx context.Context, datasetID string, id dataset.DealerID) (dataset.DealerRecord, error)
	Submit(ctx context.Context, datasetID string, answer dataset.Answer) (dataset.SubmissionResult, error)
}

var _ Source = (*dataset.Service)(nil)

// Config holds pipeline configuration.
type Config struct {
	// VehicleConcurrency caps in-flight vehicle fetches (1..3).
	VehicleConcurrency int

	// DealerConcurrency caps in-flight dealer fetches.
	DealerConcurrency int

	// FetchTimeout bounds each vehicle or dealer fetch; zero disables it.
	FetchTimeout time.Duration

	// RunTimeout bounds the whole run; zero disables it.
	RunTimeout time.Duration
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		VehicleConcurrency: MaxVehicleConcurrency,
		DealerConcurrency:  MaxVehicleConcurrency,
		FetchTimeout:       15 * time.Second,
	}
}

// Report summarises a completed run.
type Report struct {
	RunID     string
	DatasetID string

	// VehicleIDs is the number of valid vehicle IDs listed.
	VehicleIDs int
	// VehiclesFetched counts vehicles grouped under a dealer.
	VehiclesFetched int
	// VehiclesDropped counts vehicles that failed to fetch or had no valid dealer.
	VehiclesDropped int
	Dealers         int

	Answer dataset.Answer
	Result dataset.SubmissionResult

	Duration time.Duration
}

// Pipeline runs the fetch, group, resolve, submit sequence.
type Pipeline struct {
	source Source
	config Config
	logger zerolog.Logger
}

// New creates a pipeline over source.
func New(source Source, cfg Config) (*Pipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.VehicleConcurrency <= 0 {
		cfg.VehicleConcurrency = MaxVehicleConcurrency
	}
	if cfg.VehicleConcurrency > MaxVehicleConcurrency {
		return nil, fmt.Errorf("vehicle_concurrency must be <= %d (got %d)", MaxVehicleConcurrency, cfg.VehicleConcurrency)
	}
	if cfg.DealerConcurrency <= 0 {
		cfg.DealerConcurrency = MaxVehicleConcurrency
	}

	return &Pipeline{
		source: source,
		config: cfg,
		logger: log.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Run performs one full run. Vehicle fetch failures drop the vehicle; any
// other failure aborts the run with a *PhaseError and nothing is submitted.
// A submission scored as incorrect is not an error.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if p.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	logger := logging.WithRun(p.logger, report.RunID, "")

	report, err := p.run(ctx, report, logger)
	report.Duration = time.Since(start)

	var phaseErr *PhaseError
	switch {
	case errors.As(err, &phaseErr):
		runsTotal.WithLabelValues(string(phaseErr.Phase)).Inc()
		logger.Error().
			Err(phaseErr.Err).
			Str("phase", string(phaseErr.Phase)).
			Dur("duration", report.Duration).
			Msg("Run aborted")
		return report, err
	case err != nil:
		runsTotal.WithLabelValues("error").Inc()
		return report, err
	case report.Result.Success:
		runsTotal.WithLabelValues("success").Inc()
	default:
		runsTotal.WithLabelValues("incorrect").Inc()
	}

	logger.Info().
		Str("dataset_id", report.DatasetID).
		Bool("success", report.Result.Success).
		Int("dealers", report.Dealers).
		Int("vehicles", report.VehiclesFetched).
		Int("vehicles_dropped", report.VehiclesDropped).
		Dur("duration", report.Duration).
		Msg("Run complete")

	return report, nil
}

func (p *Pipeline) run(ctx context.Context, report *Report, logger zerolog.Logger) (*Report, error) {
	phaseStart := time.Now()
	datasetID, err := p.source.ResolveDatasetID(ctx)
	if err != nil {
		return report, &PhaseError{Phase: PhaseDataset, Err: err}
	}
	if datasetID == "" {
		return report, &PhaseError{Phase: PhaseDataset, Err: dataset.ErrDatasetUnavailable}
	}
	report.DatasetID = datasetID
	logger = logging.WithRun(p.logger, report.RunID, datasetID)
	observePhase(PhaseDataset, phaseStart)

	logger.Info().Msg("Dataset resolved")

	// Phase 1: vehicles.
	phaseStart = time.Now()
	ids, err := p.source.ListVehicleIDs(ctx, datasetID)
	if err != nil {
		return report, &PhaseError{Phase: PhaseVehicles, Err: err}
	}
	report.VehicleIDs = len(ids)

	agg, failed := p.fetchVehicles(ctx, datasetID, ids, logger)
	if err := ctx.Err(); err != nil {
		return report, &PhaseError{Phase: PhaseVehicles, Err: err}
	}
	report.VehiclesFetched = agg.VehicleCount()
	report.VehiclesDropped = failed + agg.Ignored()
	observePhase(PhaseVehicles, phaseStart)

	dealerIDs := agg.DealerIDs()
	logger.Info().
		Int("vehicle_ids", len(ids)).
		Int("fetched", report.VehiclesFetched).
		Int("failed", failed).
		Int("without_dealer", agg.Ignored()).
		Int("dealers", len(dealerIDs)).
		Dur("duration", time.Since(phaseStart)).
		Msg("Vehicles grouped")

	// Phase 2: dealers.
	phaseStart = time.Now()
	names, err := p.resolveDealers(ctx, datasetID, dealerIDs, logger)
	if err != nil {
		return report, &PhaseError{Phase: PhaseDealers, Err: err}
	}
	observePhase(PhaseDealers, phaseStart)

	logger.Info().
		Int("dealers", len(names)).
		Dur("duration", time.Since(phaseStart)).
		Msg("Dealers resolved")

	// Phase 3: assemble and submit.
	answer, err := Assemble(dealerIDs, names, agg.VehiclesByDealer())
	if err != nil {
		return report, &PhaseError{Phase: PhaseAssemble, Err: err}
	}
	report.Answer = answer
	report.Dealers = len(answer.Dealers)

	phaseStart = time.Now()
	result, err := p.source.Submit(ctx, datasetID, answer)
	if err != nil {
		return report, &PhaseError{Phase: PhaseSubmit, Err: err}
	}
	report.Result = result
	observePhase(PhaseSubmit, phaseStart)

	return report, nil
}

// fetchVehicles runs phase 1 and returns the grouping plus the number of
// failed fetches. Completions add to the aggregator from worker goroutines.
func (p *Pipeline) fetchVehicles(ctx context.Context, datasetID string, ids []dataset.VehicleID, logger zerolog.Logger) (*Aggregator, int) {
	agg := NewAggregator()

	cfg := fanout.Config{
		MaxConcurrency: p.config.VehicleConcurrency,
		Timeout:        p.config.FetchTimeout,
		Name:           string(PhaseVehicles),
	}

	failed := 0
	fanout.RunWith(ctx, ids, cfg, func(ctx context.Context, id dataset.VehicleID) (dataset.VehicleRecord, error) {
		record, err := p.source.FetchVehicle(ctx, datasetID, id)
		if err != nil {
			return record, err
		}
		if !agg.Add(record) {
			logger.Debug().
				Int("vehicle_id", int(id)).
				Int("dealer_id", int(record.DealerID)).
				Msg("Vehicle has no valid dealer")
		}
		return record, nil
	}, func(r fanout.Result[dataset.VehicleID, dataset.VehicleRecord]) {
		if r.Err == nil {
			return
		}
		failed++
		vehicleFetchFailures.Inc()
		logger.Warn().
			Err(r.Err).
			Int("vehicle_id", int(r.Item)).
			Msg("Vehicle fetch failed, dropping vehicle")
	})

	return agg, failed
}

// resolveDealers runs phase 2. All fetches complete before it returns; the
// lowest failing dealer ID is reported.
func (p *Pipeline) resolveDealers(ctx context.Context, datasetID string, dealerIDs []dataset.DealerID, logger zerolog.Logger) (map[dataset.DealerID]string, error) {
	valid := make([]dataset.DealerID, 0, len(dealerIDs))
	for _, id := range dealerIDs {
		if id.Valid() {
			valid = append(valid, id)
		}
	}

	cfg := fanout.Config{
		MaxConcurrency: p.config.DealerConcurrency,
		Timeout:        p.config.FetchTimeout,
		Name:           string(PhaseDealers),
	}

	results := fanout.Run(ctx, valid, cfg, func(ctx context.Context, id dataset.DealerID) (dataset.DealerRecord, error) {
		return p.source.FetchDealer(ctx, datasetID, id)
	})

	names := make(map[dataset.DealerID]string, len(results))
	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			logger.Error().
				Err(r.Err).
				Int("dealer_id", int(r.Item)).
				Msg("Dealer resolution failed")
			if firstErr == nil {
				firstErr = &DealerResolutionError{DealerID: r.Item, Err: r.Err}
			}
			continue
		}
		names[r.Item] = r.Value.Name
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return names, nil
}

func observePhase(phase Phase, start time.Time) {
	phaseDuration.WithLabelValues(string(phase)).Observe(time.Since(start).Seconds())
}
