// Package leveldb implements kvstore.Store on goleveldb.
package leveldb

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/iterator"
	"github.com/btcsuite/goleveldb/leveldb/opt"
	"github.com/btcsuite/goleveldb/leveldb/storage"
	"github.com/btcsuite/goleveldb/leveldb/util"
)

type Store struct {
	logger ulogger.Logger
	db     *leveldb.DB
	name   string
	sync   bool
}

// New opens (or creates) the database in dir. With sync set every batch is flushed to disk
// before Write returns.
func New(logger ulogger.Logger, dir string, sync bool) (*Store, error) {
	opts := &opt.Options{
		Compression: opt.NoCompression,
	}

	db, err := leveldb.OpenFile(dir, opts)
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to open leveldb at %s", dir, err)
	}

	logger.Infof("[leveldb] opened %s", dir)

	return &Store{logger: logger, db: db, name: dir, sync: sync}, nil
}

// NewMemory opens a database that lives in memory only.
func NewMemory(logger ulogger.Logger) (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to open in-memory leveldb", err)
	}

	return &Store{logger: logger, db: db, name: "memory"}, nil
}

func (s *Store) Health(_ context.Context, _ bool) (int, string, error) {
	if _, err := s.db.GetProperty("leveldb.num-files-at-level0"); err != nil {
		return http.StatusServiceUnavailable, fmt.Sprintf("leveldb %s unavailable", s.name), errors.NewStorageUnavailableError("leveldb %s", s.name, err)
	}

	return http.StatusOK, fmt.Sprintf("leveldb %s OK", s.name), nil
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	return get(s.db.Get, key)
}

func (s *Store) NewIterator(_ context.Context, prefix []byte) kvstore.Iterator {
	return newIterator(s.db.NewIterator(rangeFor(prefix), nil))
}

func (s *Store) NewSnapshot(_ context.Context) (kvstore.Snapshot, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, errors.NewStorageError("failed to take leveldb snapshot", err)
	}

	return &snapshot{snap: snap}, nil
}

func (s *Store) Write(_ context.Context, batch *kvstore.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	b := new(leveldb.Batch)

	for _, op := range batch.Ops() {
		if op.Delete {
			b.Delete(op.Key)
		} else {
			b.Put(op.Key, op.Value)
		}
	}

	if err := s.db.Write(b, &opt.WriteOptions{Sync: s.sync}); err != nil {
		return errors.NewStorageError("failed to write batch of %d ops to leveldb", batch.Len(), err)
	}

	return nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.NewStorageError("failed to close leveldb %s", s.name, err)
	}

	return nil
}

type snapshot struct {
	snap *leveldb.Snapshot
}

func (s *snapshot) Get(_ context.Context, key []byte) ([]byte, error) {
	return get(s.snap.Get, key)
}

func (s *snapshot) NewIterator(_ context.Context, prefix []byte) kvstore.Iterator {
	return newIterator(s.snap.NewIterator(rangeFor(prefix), nil))
}

func (s *snapshot) Release() {
	s.snap.Release()
}

func get(fn func([]byte, *opt.ReadOptions) ([]byte, error), key []byte) ([]byte, error) {
	value, err := fn(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, errors.NewNotFoundError("key %x not found", key)
		}

		return nil, errors.NewStorageError("failed to read key %x", key, err)
	}

	// goleveldb returns a fresh slice for Get
	return value, nil
}

func rangeFor(prefix []byte) *util.Range {
	if len(prefix) == 0 {
		return nil
	}

	return util.BytesPrefix(prefix)
}

type iter struct {
	it    iterator.Iterator
	valid bool
}

func newIterator(it iterator.Iterator) *iter {
	return &iter{it: it, valid: it.Next()}
}

func (i *iter) Valid() bool {
	return i.valid
}

func (i *iter) Next() {
	if i.valid {
		i.valid = i.it.Next()
	}
}

func (i *iter) Key() []byte {
	if !i.valid {
		return nil
	}

	return append([]byte(nil), i.it.Key()...)
}

func (i *iter) Value() []byte {
	if !i.valid {
		return nil
	}

	return append([]byte{}, i.it.Value()...)
}

func (i *iter) Error() error {
	if err := i.it.Error(); err != nil {
		return errors.NewStorageError("leveldb iterator failed", err)
	}

	return nil
}

func (i *iter) Release() {
	i.it.Release()
}
