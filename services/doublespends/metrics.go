package doublespends

import (
	"sync"

	"github.com/bsv-blockchain/chainstate/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusDoubleSpendsRegister   prometheus.Histogram
	prometheusDoubleSpendsDeleteOld  prometheus.Histogram
	prometheusDoubleSpendsRegistered prometheus.Counter
	prometheusDoubleSpendsDeleted    prometheus.Counter
	prometheusDoubleSpendsLoaded     prometheus.Counter
	prometheusDoubleSpendsRecords    prometheus.Gauge
	prometheusDoubleSpendsErrors     *prometheus.CounterVec
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusDoubleSpendsRegister = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chainstate",
			Subsystem: "doublespends",
			Name:      "register",
			Help:      "Histogram of double spend attempt registrations",
			Buckets:   util.MetricsBucketsMicroSeconds,
		},
	)

	prometheusDoubleSpendsDeleteOld = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chainstate",
			Subsystem: "doublespends",
			Name:      "delete_old_records",
			Help:      "Histogram of old double spend record deletion",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusDoubleSpendsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chainstate",
			Subsystem: "doublespends",
			Name:      "registered",
			Help:      "Number of double spend attempts registered",
		},
	)

	prometheusDoubleSpendsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chainstate",
			Subsystem: "doublespends",
			Name:      "deleted",
			Help:      "Number of double spend records deleted by height",
		},
	)

	prometheusDoubleSpendsLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chainstate",
			Subsystem: "doublespends",
			Name:      "loaded",
			Help:      "Number of double spend records loaded at startup",
		},
	)

	prometheusDoubleSpendsRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chainstate",
			Subsystem: "doublespends",
			Name:      "records",
			Help:      "Number of double spend records held",
		},
	)

	prometheusDoubleSpendsErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chainstate",
			Subsystem: "doublespends",
			Name:      "errors",
			Help:      "Number of double spend registry errors by operation",
		},
		[]string{"operation"},
	)
}
