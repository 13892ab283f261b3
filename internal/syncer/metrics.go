package syncer

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "atlas",
		Subsystem: "sync",
		Name:      "operations_delivered_total",
		Help:      "Number of outbox operations successfully delivered to the sync service.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "atlas",
		Subsystem: "sync",
		Name:      "operations_failed_total",
		Help:      "Number of outbox delivery attempts that failed.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "atlas",
		Subsystem: "sync",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming and delivering one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, batchDuration)
}
