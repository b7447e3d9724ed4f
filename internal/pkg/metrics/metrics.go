package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RebalancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultpilot_rebalances_total",
		Help: "The total number of rebalance executions processed",
	}, []string{"status"})

	VerificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultpilot_verification_failures_total",
		Help: "Total payload verification failures by reason",
	}, []string{"reason"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vaultpilot_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	DepositsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultpilot_deposits_total",
		Help: "Total deposits processed",
	}, []string{"status"})

	JobQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultpilot_relayer_queue_depth",
		Help: "Number of rebalance jobs waiting in the relayer queue",
	})
)
