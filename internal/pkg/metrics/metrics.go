package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OnboardingRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safeboard_onboarding_runs_total",
		Help: "The total number of onboarding runs by outcome",
	}, []string{"status"})

	StepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safeboard_step_failures_total",
		Help: "Onboarding step failures",
	}, []string{"step"})

	TransientReadRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safeboard_transient_read_retries_total",
		Help: "Contract reads retried because the node returned no data",
	}, []string{"method"})

	Transactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safeboard_transactions_total",
		Help: "Submitted transactions by kind and final status",
	}, []string{"kind", "status"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "safeboard_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
