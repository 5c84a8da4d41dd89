// Package chainstate keeps the unspent output ledger and its address index in a kvstore and
// exposes read-only cursors over them.
//
// Key layout:
//
//	'B'                    best block hash
//	'c' + txid             coins of the transaction (model.Coins)
//	'a' + pubkey hash      outpoints paying to the address, 36 bytes each
package chainstate

import (
	"context"

	"github.com/bsv-blockchain/chainstate/model"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

const (
	KeyBestBlock  = 'B'
	PrefixCoins   = 'c'
	PrefixAddress = 'a'

	AddressSize = 20
)

// Provider gives read-only access to a point in time view of the ledger.
type Provider interface {
	// OpenSnapshotCursor returns a cursor over every coins record, in txid byte order.
	OpenSnapshotCursor(ctx context.Context) (Cursor, error)

	// LookupHeight resolves a block hash to its height under the chain lock. An unknown
	// block returns an errors.ErrBlockNotFound error.
	LookupHeight(ctx context.Context, hash chainhash.Hash) (uint32, error)
}

// Cursor walks the coins records of one snapshot. It is not safe for concurrent use.
type Cursor interface {
	// GetBestBlock returns the best block the snapshot was taken at; zero for an empty ledger.
	GetBestBlock() chainhash.Hash
	Valid() bool
	Next()
	GetKey() (chainhash.Hash, error)
	GetValue() (*model.Coins, error)
	// GetValueSize returns the stored size of the current value in bytes.
	GetValueSize() int
	// OpenAddressCursor walks the address index of the same snapshot. It must be closed
	// before the coins cursor.
	OpenAddressCursor(ctx context.Context) AddressCursor
	Error() error
	Close()
}

// AddressCursor walks the address index of one snapshot. It is not safe for concurrent use.
type AddressCursor interface {
	Valid() bool
	Next()
	GetKey() ([]byte, error)
	GetValue() ([]model.Outpoint, error)
	Error() error
	Close()
}
