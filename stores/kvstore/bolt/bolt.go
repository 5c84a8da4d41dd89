// Package bolt implements kvstore.Store on a single bbolt bucket.
package bolt

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/bsv-blockchain/chainstate/ulogger"
	bolt "go.etcd.io/bbolt"
)

const (
	DefaultBucket   = "kv"
	initialMmapSize = 256 << 20
)

type Store struct {
	logger ulogger.Logger
	db     *bolt.DB
	bucket []byte
}

// New opens (or creates) the bolt file at path and makes sure bucket exists.
func New(logger ulogger.Logger, path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewStorageUnavailableError("failed to create directory for %s", path, err)
	}

	// writers must remap when the file outgrows the map, which blocks while a snapshot is open
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout:         5 * time.Second,
		InitialMmapSize: initialMmapSize,
	})
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to open bolt db %s", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.NewStorageUnavailableError("failed to create bucket %s", bucket, err)
	}

	logger.Infof("[bolt] opened %s bucket %s", path, bucket)

	return &Store{logger: logger, db: db, bucket: []byte(bucket)}, nil
}

func (s *Store) Health(_ context.Context, _ bool) (int, string, error) {
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(s.bucket) == nil {
			return errors.NewStorageUnavailableError("bucket %s missing", s.bucket)
		}

		return nil
	})
	if err != nil {
		return http.StatusServiceUnavailable, fmt.Sprintf("bolt %s unavailable", s.db.Path()), err
	}

	return http.StatusOK, fmt.Sprintf("bolt %s OK", s.db.Path()), nil
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	var value []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		var err error

		value, err = get(tx.Bucket(s.bucket), key)

		return err
	})

	return value, err
}

// NewIterator iterates inside its own read transaction, which Release closes.
func (s *Store) NewIterator(_ context.Context, prefix []byte) kvstore.Iterator {
	tx, err := s.db.Begin(false)
	if err != nil {
		return kvstore.NewErrorIterator(errors.NewStorageError("failed to begin bolt read tx", err))
	}

	return newIterator(tx.Bucket(s.bucket).Cursor(), prefix, func() {
		_ = tx.Rollback()
	})
}

func (s *Store) NewSnapshot(_ context.Context) (kvstore.Snapshot, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, errors.NewStorageError("failed to begin bolt read tx", err)
	}

	return &snapshot{tx: tx, bucket: tx.Bucket(s.bucket)}, nil
}

func (s *Store) Write(_ context.Context, batch *kvstore.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)

		for _, op := range batch.Ops() {
			if op.Delete {
				if err := b.Delete(op.Key); err != nil {
					return err
				}

				continue
			}

			if err := b.Put(op.Key, op.Value); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return errors.NewStorageError("failed to write batch of %d ops to bolt", batch.Len(), err)
	}

	return nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.NewStorageError("failed to close bolt db", err)
	}

	return nil
}

// snapshot is a read transaction. It must not be used from more than one goroutine at a time.
type snapshot struct {
	tx     *bolt.Tx
	bucket *bolt.Bucket
}

func (s *snapshot) Get(_ context.Context, key []byte) ([]byte, error) {
	return get(s.bucket, key)
}

func (s *snapshot) NewIterator(_ context.Context, prefix []byte) kvstore.Iterator {
	return newIterator(s.bucket.Cursor(), prefix, nil)
}

func (s *snapshot) Release() {
	_ = s.tx.Rollback()
}

func get(b *bolt.Bucket, key []byte) ([]byte, error) {
	v := b.Get(key)
	if v == nil {
		return nil, errors.NewNotFoundError("key %x not found", key)
	}

	// values are only valid for the life of the transaction
	return append([]byte{}, v...), nil
}

type iter struct {
	c       *bolt.Cursor
	prefix  []byte
	key     []byte
	value   []byte
	release func()
}

func newIterator(c *bolt.Cursor, prefix []byte, release func()) *iter {
	i := &iter{c: c, prefix: prefix, release: release}

	if len(prefix) == 0 {
		i.set(c.First())
	} else {
		i.set(c.Seek(prefix))
	}

	return i
}

func (i *iter) set(k, v []byte) {
	if k == nil || !bytes.HasPrefix(k, i.prefix) {
		i.key, i.value = nil, nil
		return
	}

	i.key = append([]byte{}, k...)
	i.value = append([]byte{}, v...)
}

func (i *iter) Valid() bool {
	return i.key != nil
}

func (i *iter) Next() {
	if i.key != nil {
		i.set(i.c.Next())
	}
}

func (i *iter) Key() []byte {
	return i.key
}

func (i *iter) Value() []byte {
	return i.value
}

func (i *iter) Error() error {
	return nil
}

func (i *iter) Release() {
	if i.release != nil {
		i.release()
		i.release = nil
	}
}
