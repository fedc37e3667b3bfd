package slasher

import "github.com/prometheus/client_golang/prometheus"

var (
	slashingsDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slasher_slashings_detected_total",
			Help: "Number of slashable offenses detected, partitioned by kind.",
		},
		[]string{"kind"},
	)
	attestationsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slasher_attestations_dropped_total",
			Help: "Number of attestations dropped before processing, partitioned by reason.",
		},
		[]string{"reason"},
	)
	batchesProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slasher_batches_processed_total",
			Help: "Number of attestation batches successfully committed.",
		},
	)
	batchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slasher_batch_duration_seconds",
			Help:    "Wall-clock time to process and commit one attestation batch.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		slashingsDetectedTotal,
		attestationsDroppedTotal,
		batchesProcessedTotal,
		batchDurationSeconds,
	)
}
