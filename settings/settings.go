package settings

import (
	"github.com/bsv-blockchain/go-chaincfg"
)

func NewSettings() *Settings {
	params, err := chaincfg.GetChainParams(getString("network", "mainnet"))
	if err != nil {
		panic(err)
	}

	return &Settings{
		ClientName:     getString("clientName", "chainstate"),
		DataFolder:     getString("dataFolder", "data"),
		LogLevel:       getString("logLevel", "INFO"),
		Logger:         getString("logger", "zerolog"),
		PrettyLogs:     getBool("PRETTY_LOGS", true),
		StatsPrefix:    getString("stats_prefix", "/stats/"),
		ChainCfgParams: params,
		DoubleSpends: DoubleSpendSettings{
			StoreURL:      getURL("doublespends_store", "leveldb:///doublespendattempts"),
			LockStripes:   getInt("doublespends_lockStripes", 256),
			EvictionDepth: getInt("doublespends_evictionDepth", 6),
		},
		Chainstate: ChainstateSettings{
			StoreURL: getURL("chainstate_store", "leveldb:///chainstate"),
		},
		BlockIndex: BlockIndexSettings{
			StoreURL:  getURL("blockindex_store", "sqlite:///blockindex"),
			CacheTTL:  getDuration("blockindex_cacheTTL", "10m"),
			CacheSize: getInt("blockindex_cacheSize", 10_000),
		},
		Audit: AuditSettings{
			HTTPListenAddress: getString("audit_httpListenAddress", ":8090"),
			APIPrefix:         getString("audit_apiPrefix", "/api/v1"),
			EchoDebug:         getBool("audit_echoDebug", false),
		},
		Postgres: PostgresSettings{
			MaxIdleConns: getInt("postgres_maxIdleConns", 10),
			MaxOpenConns: getInt("postgres_maxOpenConns", 80),
		},
		Prometheus: PrometheusSettings{
			Endpoint: getString("prometheusEndpoint", "/metrics"),
		},
	}
}
