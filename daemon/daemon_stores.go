package daemon

import (
	"context"
	"sync"

	"github.com/bsv-blockchain/chainstate/settings"
	"github.com/bsv-blockchain/chainstate/stores/blockindex"
	"github.com/bsv-blockchain/chainstate/stores/chainstate"
	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/bsv-blockchain/chainstate/stores/kvstore/factory"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// Stores are the persistent stores shared by the services. ChainLock serializes height
// lookups against block index writes.
type Stores struct {
	ChainLock    *sync.Mutex
	BlockIndex   blockindex.Store
	ChainstateKV kvstore.Store
	Chainstate   *chainstate.Store
	DoubleSpends kvstore.Store
}

// OpenStores opens every store configured in tSettings. On failure the stores opened so far
// are closed again.
func OpenStores(ctx context.Context, loggerFactory func(serviceName string) ulogger.Logger, tSettings *settings.Settings) (*Stores, error) {
	logger := loggerFactory("stores")

	s := &Stores{
		ChainLock: &sync.Mutex{},
	}

	var err error

	if s.BlockIndex, err = blockindex.NewStore(ctx, loggerFactory("blockindex"), tSettings.BlockIndex.StoreURL, tSettings); err != nil {
		return nil, err
	}

	if s.ChainstateKV, err = factory.New(ctx, loggerFactory("chainstate"), tSettings, tSettings.Chainstate.StoreURL); err != nil {
		s.Close(logger)
		return nil, err
	}

	s.Chainstate = chainstate.New(loggerFactory("chainstate"), s.ChainstateKV, s.BlockIndex, s.ChainLock)

	if s.DoubleSpends, err = factory.New(ctx, loggerFactory("doublespends"), tSettings, tSettings.DoubleSpends.StoreURL); err != nil {
		s.Close(logger)
		return nil, err
	}

	return s, nil
}

// StoreBlock adds a block to the index under the chain lock.
func (s *Stores) StoreBlock(ctx context.Context, hash chainhash.Hash, height uint32) error {
	s.ChainLock.Lock()
	defer s.ChainLock.Unlock()

	return s.BlockIndex.StoreBlock(ctx, &hash, height)
}

func (s *Stores) Close(logger ulogger.Logger) {
	if s.DoubleSpends != nil {
		if err := s.DoubleSpends.Close(); err != nil {
			logger.Errorf("failed to close double spend store: %v", err)
		}
	}

	if s.ChainstateKV != nil {
		if err := s.ChainstateKV.Close(); err != nil {
			logger.Errorf("failed to close chainstate store: %v", err)
		}
	}

	if s.BlockIndex != nil {
		if err := s.BlockIndex.Close(); err != nil {
			logger.Errorf("failed to close block index: %v", err)
		}
	}
}
