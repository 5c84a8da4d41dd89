// Package sql implements blockindex.Store on postgres or sqlite, with heights cached in a ttlcache.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/settings"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/bsv-blockchain/chainstate/util"
	"github.com/bsv-blockchain/chainstate/util/usql"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jellydator/ttlcache/v3"
	"github.com/ordishs/gocore"
)

var stat = gocore.NewStat("blockindex")

type SQL struct {
	db          *usql.DB
	engine      util.SQLEngine
	logger      ulogger.Logger
	heightCache *ttlcache.Cache[chainhash.Hash, uint32]
	closeOnce   sync.Once
}

func New(ctx context.Context, logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*SQL, error) {
	logger = logger.New("bisql")

	db, err := util.InitSQLDB(logger, storeURL, tSettings)
	if err != nil {
		return nil, err
	}

	s := &SQL{
		db:     db,
		engine: util.SQLEngine(storeURL.Scheme),
		logger: logger,
		heightCache: ttlcache.New[chainhash.Hash, uint32](
			ttlcache.WithTTL[chainhash.Hash, uint32](tSettings.BlockIndex.CacheTTL),
			ttlcache.WithCapacity[chainhash.Hash, uint32](uint64(max(tSettings.BlockIndex.CacheSize, 1))),
			ttlcache.WithDisableTouchOnHit[chainhash.Hash, uint32](),
		),
	}

	if err = s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err = s.insertGenesis(ctx, tSettings.ChainCfgParams.GenesisHash); err != nil {
		_ = db.Close()
		return nil, err
	}

	go s.heightCache.Start()

	return s, nil
}

func (s *SQL) createSchema(ctx context.Context) error {
	var q string

	switch s.engine {
	case util.Postgres:
		q = `
		CREATE TABLE IF NOT EXISTS blocks (
		 id           BIGSERIAL PRIMARY KEY
		,hash         BYTEA NOT NULL
		,height       BIGINT NOT NULL
		,inserted_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`
	default:
		q = `
		CREATE TABLE IF NOT EXISTS blocks (
		 id           INTEGER PRIMARY KEY AUTOINCREMENT
		,hash         BLOB NOT NULL
		,height       BIGINT NOT NULL
		,inserted_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`
	}

	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return errors.NewStorageUnavailableError("could not create blocks table", err)
	}

	if _, err := s.db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS ux_blocks_hash ON blocks (hash);`); err != nil {
		return errors.NewStorageUnavailableError("could not create ux_blocks_hash index", err)
	}

	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_blocks_height ON blocks (height DESC, id DESC);`); err != nil {
		return errors.NewStorageUnavailableError("could not create idx_blocks_height index", err)
	}

	return nil
}

func (s *SQL) insertGenesis(ctx context.Context, genesisHash *chainhash.Hash) error {
	if genesisHash == nil {
		return errors.NewConfigurationError("no genesis hash for the configured network")
	}

	q := `INSERT INTO blocks (hash, height) VALUES ($1, 0) ON CONFLICT (hash) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, q, genesisHash[:]); err != nil {
		return errors.NewStorageError("failed to insert genesis block %s", genesisHash, err)
	}

	return nil
}

func (s *SQL) Health(ctx context.Context, _ bool) (int, string, error) {
	var n int

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM (SELECT 1 FROM blocks LIMIT 1) t").Scan(&n); err != nil {
		return http.StatusServiceUnavailable, "block index unavailable", errors.NewStorageUnavailableError("block index", err)
	}

	return http.StatusOK, fmt.Sprintf("%s block index OK", s.engine), nil
}

func (s *SQL) GetBlockHeight(ctx context.Context, hash *chainhash.Hash) (uint32, error) {
	start := gocore.CurrentTime()
	defer func() {
		stat.NewStat("GetBlockHeight").AddTime(start)
	}()

	if item := s.heightCache.Get(*hash); item != nil {
		return item.Value(), nil
	}

	var height uint32

	err := s.db.QueryRowContext(ctx, `SELECT height FROM blocks WHERE hash = $1`, hash[:]).Scan(&height)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errors.NewBlockNotFoundError("block %s not found", hash)
		}

		return 0, errors.NewStorageError("failed to get height of block %s", hash, err)
	}

	s.heightCache.Set(*hash, height, ttlcache.DefaultTTL)

	return height, nil
}

func (s *SQL) StoreBlock(ctx context.Context, hash *chainhash.Hash, height uint32) error {
	start := gocore.CurrentTime()
	defer func() {
		stat.NewStat("StoreBlock").AddTime(start)
	}()

	q := `INSERT INTO blocks (hash, height) VALUES ($1, $2) ON CONFLICT (hash) DO UPDATE SET height = excluded.height`

	if _, err := s.db.ExecContext(ctx, q, hash[:], int64(height)); err != nil {
		return errors.NewStorageError("failed to store block %s at height %d", hash, height, err)
	}

	s.heightCache.Delete(*hash)

	return nil
}

func (s *SQL) GetBestBlock(ctx context.Context) (*chainhash.Hash, uint32, error) {
	var (
		hashBytes []byte
		height    uint32
	)

	err := s.db.QueryRowContext(ctx, `SELECT hash, height FROM blocks ORDER BY height DESC, id DESC LIMIT 1`).Scan(&hashBytes, &height)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, errors.NewBlockNotFoundError("block index is empty")
		}

		return nil, 0, errors.NewStorageError("failed to get best block", err)
	}

	hash, err := chainhash.NewHash(hashBytes)
	if err != nil {
		return nil, 0, errors.NewProcessingError("invalid block hash in block index", err)
	}

	return hash, height, nil
}

func (s *SQL) Close() error {
	var err error

	s.closeOnce.Do(func() {
		s.heightCache.Stop()

		if closeErr := s.db.Close(); closeErr != nil {
			err = errors.NewStorageError("failed to close block index", closeErr)
		}
	})

	return err
}
