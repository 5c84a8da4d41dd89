package settings

import (
	"net/url"
	"time"

	"github.com/bsv-blockchain/go-chaincfg"
)

type Settings struct {
	ClientName     string
	DataFolder     string
	LogLevel       string
	Logger         string
	PrettyLogs     bool
	StatsPrefix    string
	ChainCfgParams *chaincfg.Params
	DoubleSpends   DoubleSpendSettings
	Chainstate     ChainstateSettings
	BlockIndex     BlockIndexSettings
	Audit          AuditSettings
	Postgres       PostgresSettings
	Prometheus     PrometheusSettings
}

type DoubleSpendSettings struct {
	StoreURL *url.URL
	// LockStripes is the number of per-outpoint locks used to serialize registrations.
	LockStripes int
	// EvictionDepth is reported by the API only; records are always evicted at depth 6.
	EvictionDepth int
}

type ChainstateSettings struct {
	StoreURL *url.URL
}

type BlockIndexSettings struct {
	StoreURL  *url.URL
	CacheTTL  time.Duration
	CacheSize int
}

type AuditSettings struct {
	HTTPListenAddress string
	APIPrefix         string
	EchoDebug         bool
}

type PostgresSettings struct {
	MaxIdleConns int
	MaxOpenConns int
}

type PrometheusSettings struct {
	Endpoint string
}
