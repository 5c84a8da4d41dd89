// Package sql implements kvstore.Store on a single two column table in postgres or sqlite.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/settings"
	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/bsv-blockchain/chainstate/util"
	"github.com/bsv-blockchain/chainstate/util/usql"
	levelutil "github.com/btcsuite/goleveldb/leveldb/util"
)

const (
	DefaultTable = "kv"
	pageSize     = 1000
)

var tableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// querier is satisfied by both *usql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Store struct {
	logger ulogger.Logger
	db     *usql.DB
	engine util.SQLEngine
	table  string
}

// New opens the database named by storeURL. The table defaults to "kv" and can be set with
// the "table" query parameter.
func New(ctx context.Context, logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*Store, error) {
	table := storeURL.Query().Get("table")
	if table == "" {
		table = DefaultTable
	}

	if !tableNameRegex.MatchString(table) {
		return nil, errors.NewConfigurationError("invalid table name %q", table)
	}

	db, err := util.InitSQLDB(logger, storeURL, tSettings)
	if err != nil {
		return nil, err
	}

	s := &Store{
		logger: logger,
		db:     db,
		engine: util.SQLEngine(storeURL.Scheme),
		table:  table,
	}

	if err = s.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) createTable(ctx context.Context) error {
	blobType := "BLOB"
	if s.engine == util.Postgres {
		blobType = "BYTEA"
	}

	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (k %s PRIMARY KEY, v %s NOT NULL)`, s.table, blobType, blobType)

	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return errors.NewStorageUnavailableError("could not create %s table", s.table, err)
	}

	return nil
}

func (s *Store) Health(ctx context.Context, _ bool) (int, string, error) {
	var one int

	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return http.StatusServiceUnavailable, fmt.Sprintf("%s table %s unavailable", s.engine, s.table), errors.NewStorageUnavailableError("%s", s.engine, err)
	}

	return http.StatusOK, fmt.Sprintf("%s table %s OK", s.engine, s.table), nil
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	return s.get(ctx, s.db, key)
}

// NewIterator reads the prefix range in pages. Writes made between pages are visible to
// the iterator; use a snapshot for a point in time view.
func (s *Store) NewIterator(ctx context.Context, prefix []byte) kvstore.Iterator {
	return s.newPagedIterator(ctx, s.db, prefix)
}

// NewSnapshot uses a repeatable read transaction on postgres. sqlite shares its cache between
// connections, where an open read transaction would block writers, so the snapshot is a copy.
func (s *Store) NewSnapshot(ctx context.Context) (kvstore.Snapshot, error) {
	if s.engine != util.Postgres {
		return s.copySnapshot(ctx)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, errors.NewStorageError("failed to begin snapshot transaction", err)
	}

	// the snapshot is taken by the first statement of the transaction
	var n int
	if err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 FROM %s LIMIT 1) t", s.table)).Scan(&n); err != nil {
		_ = tx.Rollback()
		return nil, errors.NewStorageError("failed to start snapshot transaction", err)
	}

	return &txSnapshot{store: s, tx: tx}, nil
}

func (s *Store) copySnapshot(ctx context.Context) (kvstore.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT k, v FROM %s ORDER BY k", s.table))
	if err != nil {
		return nil, errors.NewStorageError("failed to read %s for snapshot", s.table, err)
	}

	defer rows.Close()

	snap := &copySnapshot{}

	for rows.Next() {
		var k, v []byte
		if err = rows.Scan(&k, &v); err != nil {
			return nil, errors.NewStorageError("failed to scan %s row", s.table, err)
		}

		snap.keys = append(snap.keys, k)
		snap.values = append(snap.values, v)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to read %s for snapshot", s.table, err)
	}

	return snap, nil
}

func (s *Store) Write(ctx context.Context, batch *kvstore.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("failed to begin write transaction", err)
	}

	upsert := fmt.Sprintf(`INSERT INTO %s (k, v) VALUES ($1, $2) ON CONFLICT (k) DO UPDATE SET v = excluded.v`, s.table)
	del := fmt.Sprintf(`DELETE FROM %s WHERE k = $1`, s.table)

	for _, op := range batch.Ops() {
		if op.Delete {
			_, err = tx.ExecContext(ctx, del, op.Key)
		} else {
			value := op.Value
			if value == nil {
				value = []byte{}
			}

			_, err = tx.ExecContext(ctx, upsert, op.Key, value)
		}

		if err != nil {
			_ = tx.Rollback()
			return errors.NewStorageError("failed to write batch of %d ops to %s", batch.Len(), s.table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.NewStorageError("failed to commit batch of %d ops to %s", batch.Len(), s.table, err)
	}

	return nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.NewStorageError("failed to close %s db", s.engine, err)
	}

	return nil
}

func (s *Store) get(ctx context.Context, q querier, key []byte) ([]byte, error) {
	var value []byte

	err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT v FROM %s WHERE k = $1", s.table), key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("key %x not found", key)
		}

		return nil, errors.NewStorageError("failed to read key %x", key, err)
	}

	return value, nil
}

func (s *Store) newPagedIterator(ctx context.Context, q querier, prefix []byte) kvstore.Iterator {
	it := &pagedIterator{
		ctx:   ctx,
		q:     q,
		table: s.table,
		start: []byte{},
	}

	if len(prefix) > 0 {
		r := levelutil.BytesPrefix(prefix)
		it.start = r.Start
		it.limit = r.Limit
	}

	it.fetch(true)

	return it
}

type txSnapshot struct {
	store *Store
	tx    *sql.Tx
}

func (s *txSnapshot) Get(ctx context.Context, key []byte) ([]byte, error) {
	return s.store.get(ctx, s.tx, key)
}

func (s *txSnapshot) NewIterator(ctx context.Context, prefix []byte) kvstore.Iterator {
	return s.store.newPagedIterator(ctx, s.tx, prefix)
}

func (s *txSnapshot) Release() {
	_ = s.tx.Rollback()
}

type copySnapshot struct {
	keys   [][]byte
	values [][]byte
}

func (s *copySnapshot) Get(_ context.Context, key []byte) ([]byte, error) {
	i := search(s.keys, key)
	if i < len(s.keys) && string(s.keys[i]) == string(key) {
		return append([]byte{}, s.values[i]...), nil
	}

	return nil, errors.NewNotFoundError("key %x not found", key)
}

func (s *copySnapshot) NewIterator(_ context.Context, prefix []byte) kvstore.Iterator {
	if len(prefix) == 0 {
		return kvstore.NewSliceIterator(s.keys, s.values)
	}

	r := levelutil.BytesPrefix(prefix)

	from := search(s.keys, r.Start)
	to := len(s.keys)

	if r.Limit != nil {
		to = search(s.keys, r.Limit)
	}

	return kvstore.NewSliceIterator(s.keys[from:to], s.values[from:to])
}

func (s *copySnapshot) Release() {
	s.keys = nil
	s.values = nil
}
