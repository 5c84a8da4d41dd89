// Package blockindex maps block hashes to heights on the active chain.
package blockindex

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

type Store interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// GetBlockHeight returns the height of hash, or an errors.ErrBlockNotFound error.
	GetBlockHeight(ctx context.Context, hash *chainhash.Hash) (uint32, error)

	// StoreBlock records hash at height, replacing any height stored for hash before.
	StoreBlock(ctx context.Context, hash *chainhash.Hash, height uint32) error

	// GetBestBlock returns the highest block stored.
	GetBestBlock(ctx context.Context) (*chainhash.Hash, uint32, error)

	Close() error
}
