package blockindex

import (
	"context"
	"net/url"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/settings"
	"github.com/bsv-blockchain/chainstate/stores/blockindex/memory"
	"github.com/bsv-blockchain/chainstate/stores/blockindex/sql"
	"github.com/bsv-blockchain/chainstate/ulogger"
)

func NewStore(ctx context.Context, logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (Store, error) {
	switch storeURL.Scheme {
	case "memory":
		return memory.New(tSettings.ChainCfgParams.GenesisHash), nil
	case "postgres":
		fallthrough
	case "sqlitememory":
		fallthrough
	case "sqlite":
		s, err := sql.New(ctx, logger, storeURL, tSettings)
		if err != nil {
			return nil, err
		}

		return s, nil
	}

	return nil, errors.NewConfigurationError("unknown block index scheme: %s", storeURL.Scheme)
}
