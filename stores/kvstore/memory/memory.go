// Package memory implements kvstore.Store in process memory. Nothing survives Close.
package memory

import (
	"bytes"
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/dolthub/swiss"
)

type Store struct {
	mu     sync.RWMutex
	m      *swiss.Map[string, []byte]
	closed bool
}

func New() *Store {
	return &Store{
		m: swiss.NewMap[string, []byte](1024),
	}
}

func (s *Store) Health(_ context.Context, _ bool) (int, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return http.StatusServiceUnavailable, "memory store closed", errors.NewStorageUnavailableError("memory store closed")
	}

	return http.StatusOK, "memory store OK", nil
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return get(s.m, key)
}

// NewIterator copies the matching entries, so it never observes later writes.
func (s *Store) NewIterator(_ context.Context, prefix []byte) kvstore.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return newIterator(s.m, prefix)
}

func (s *Store) NewSnapshot(_ context.Context) (kvstore.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.NewStorageUnavailableError("memory store closed")
	}

	m := swiss.NewMap[string, []byte](uint32(s.m.Count()) + 1)

	s.m.Iter(func(k string, v []byte) bool {
		m.Put(k, v)
		return false
	})

	return &snapshot{m: m}, nil
}

func (s *Store) Write(_ context.Context, batch *kvstore.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewStorageError("memory store closed")
	}

	for _, op := range batch.Ops() {
		if op.Delete {
			s.m.Delete(string(op.Key))
		} else {
			// batch values are private copies and are never mutated after staging
			s.m.Put(string(op.Key), op.Value)
		}
	}

	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.m.Clear()

	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.m.Count()
}

type snapshot struct {
	m *swiss.Map[string, []byte]
}

func (s *snapshot) Get(_ context.Context, key []byte) ([]byte, error) {
	return get(s.m, key)
}

func (s *snapshot) NewIterator(_ context.Context, prefix []byte) kvstore.Iterator {
	return newIterator(s.m, prefix)
}

func (s *snapshot) Release() {
	s.m = swiss.NewMap[string, []byte](0)
}

func get(m *swiss.Map[string, []byte], key []byte) ([]byte, error) {
	v, ok := m.Get(string(key))
	if !ok {
		return nil, errors.NewNotFoundError("key %x not found", key)
	}

	return append([]byte{}, v...), nil
}

func newIterator(m *swiss.Map[string, []byte], prefix []byte) kvstore.Iterator {
	keys := make([]string, 0)

	m.Iter(func(k string, _ []byte) bool {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}

		return false
	})

	sort.Strings(keys)

	keyBytes := make([][]byte, len(keys))
	values := make([][]byte, len(keys))

	for i, k := range keys {
		keyBytes[i] = []byte(k)
		values[i], _ = m.Get(k)
	}

	return kvstore.NewSliceIterator(keyBytes, values)
}
