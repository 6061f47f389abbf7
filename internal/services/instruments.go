package services

import "github.com/prometheus/client_golang/prometheus"

var (
	gateOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karigpt_gate_outcomes_total",
			Help: "Gate decisions by outcome.",
		},
		[]string{"outcome"},
	)
	backendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "karigpt_backend_duration_seconds",
			Help:    "Latency of generation backend calls.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)
	recordFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "karigpt_record_failures_total",
			Help: "Request records that failed to persist.",
		},
	)
)

func init() {
	prometheus.MustRegister(gateOutcomes, backendLatency, recordFailures)
}
