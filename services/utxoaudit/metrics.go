package utxoaudit

import (
	"sync"

	"github.com/bsv-blockchain/chainstate/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusUTXOAuditDuration           prometheus.Histogram
	prometheusUTXOAuditErrors             *prometheus.CounterVec
	prometheusUTXOAuditTransactions       prometheus.Gauge
	prometheusUTXOAuditTransactionOutputs prometheus.Gauge
	prometheusUTXOAuditTotalAmount        prometheus.Gauge
	prometheusUTXOAuditHeight             prometheus.Gauge
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusUTXOAuditDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chainstate",
			Subsystem: "utxoaudit",
			Name:      "duration_seconds",
			Help:      "Duration of a full utxo set audit",
			Buckets:   util.MetricsBucketsSeconds,
		},
	)

	prometheusUTXOAuditErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chainstate",
			Subsystem: "utxoaudit",
			Name:      "errors",
			Help:      "Number of failed utxo set audits by error code",
		},
		[]string{"code"},
	)

	prometheusUTXOAuditTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chainstate",
			Subsystem: "utxoaudit",
			Name:      "transactions",
			Help:      "Transactions with unspent outputs at the last audit",
		},
	)

	prometheusUTXOAuditTransactionOutputs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chainstate",
			Subsystem: "utxoaudit",
			Name:      "transaction_outputs",
			Help:      "Unspent outputs at the last audit",
		},
	)

	prometheusUTXOAuditTotalAmount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chainstate",
			Subsystem: "utxoaudit",
			Name:      "total_amount_satoshis",
			Help:      "Total value of the unspent outputs at the last audit",
		},
	)

	prometheusUTXOAuditHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chainstate",
			Subsystem: "utxoaudit",
			Name:      "height",
			Help:      "Best block height of the last audit",
		},
	)
}
