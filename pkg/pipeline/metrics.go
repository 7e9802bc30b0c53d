package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealer_answer_pipeline_phase_duration_seconds",
		Help:    "Pipeline phase duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"phase"})

	vehicleFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealer_answer_vehicle_fetch_failures_total",
		Help: "Vehicles dropped because their fetch failed",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealer_answer_runs_total",
		Help: "Pipeline runs by outcome (success, incorrect, or the failed phase)",
	}, []string{"outcome"})
)
