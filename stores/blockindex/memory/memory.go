// Package memory keeps a block index in process memory.
package memory

import (
	"context"
	"net/http"
	"sync"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/dolthub/swiss"
)

type Memory struct {
	mu      sync.RWMutex
	heights *swiss.Map[chainhash.Hash, uint32]
	best    chainhash.Hash
	hasBest bool
}

// New returns an index holding only genesisHash at height 0, or nothing if genesisHash is nil.
func New(genesisHash *chainhash.Hash) *Memory {
	m := &Memory{
		heights: swiss.NewMap[chainhash.Hash, uint32](64),
	}

	if genesisHash != nil {
		m.heights.Put(*genesisHash, 0)
		m.best = *genesisHash
		m.hasBest = true
	}

	return m
}

func (m *Memory) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "memory block index OK", nil
}

func (m *Memory) GetBlockHeight(_ context.Context, hash *chainhash.Hash) (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	height, ok := m.heights.Get(*hash)
	if !ok {
		return 0, errors.NewBlockNotFoundError("block %s not found", hash)
	}

	return height, nil
}

func (m *Memory) StoreBlock(_ context.Context, hash *chainhash.Hash, height uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bestHeight, _ := m.heights.Get(m.best)

	m.heights.Put(*hash, height)

	switch {
	case !m.hasBest || height >= bestHeight:
		// ties go to the most recently stored block
		m.best = *hash
		m.hasBest = true
	case m.best == *hash:
		// the best block moved down, find the new highest
		m.heights.Iter(func(h chainhash.Hash, hh uint32) bool {
			if hh > height {
				m.best = h
				height = hh
			}

			return false
		})
	}

	return nil
}

func (m *Memory) GetBestBlock(_ context.Context) (*chainhash.Hash, uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.hasBest {
		return nil, 0, errors.NewBlockNotFoundError("block index is empty")
	}

	best := m.best
	height, _ := m.heights.Get(best)

	return &best, height, nil
}

func (m *Memory) Close() error {
	return nil
}
