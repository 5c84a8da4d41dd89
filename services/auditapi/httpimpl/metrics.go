package httpimpl

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusAuditHTTPGetUTXOStats        *prometheus.CounterVec
	prometheusAuditHTTPGetDoubleSpends     *prometheus.CounterVec
	prometheusAuditHTTPGetDoubleSpend      *prometheus.CounterVec
	prometheusAuditHTTPRegisterDoubleSpend *prometheus.CounterVec
	prometheusAuditHTTPPruneDoubleSpends   *prometheus.CounterVec
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func newCounterVec(name, help string) *prometheus.CounterVec {
	return promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chainstate",
			Subsystem: "auditapi",
			Name:      name,
			Help:      help,
		},
		[]string{
			"function",  // function tracking the operation
			"operation", // type of operation achieved
		},
	)
}

func _initPrometheusMetrics() {
	prometheusAuditHTTPGetUTXOStats = newCounterVec("http_get_utxo_stats", "Number of utxo set audits requested over http")
	prometheusAuditHTTPGetDoubleSpends = newCounterVec("http_get_double_spends", "Number of double spend record listings")
	prometheusAuditHTTPGetDoubleSpend = newCounterVec("http_get_double_spend", "Number of double spend record lookups")
	prometheusAuditHTTPRegisterDoubleSpend = newCounterVec("http_register_double_spend", "Number of double spend attempts registered over http")
	prometheusAuditHTTPPruneDoubleSpends = newCounterVec("http_prune_double_spends", "Number of double spend prunes requested over http")
}
