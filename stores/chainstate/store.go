package chainstate

import (
	"context"
	"net/http"
	"sync"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/model"
	"github.com/bsv-blockchain/chainstate/stores/blockindex"
	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/bsv-blockchain/chainstate/util/health"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

func errInvalidOutpointList(n int) error {
	return errors.NewProcessingError("invalid outpoint list of %d bytes", n)
}

// Store is the kvstore backed Provider. Writes go through Update.
type Store struct {
	logger     ulogger.Logger
	kv         kvstore.Store
	blockIndex blockindex.Store
	chainLock  sync.Locker
	updateMu   sync.Mutex
}

func New(logger ulogger.Logger, kv kvstore.Store, blockIndex blockindex.Store, chainLock sync.Locker) *Store {
	return &Store{
		logger:     logger,
		kv:         kv,
		blockIndex: blockIndex,
		chainLock:  chainLock,
	}
}

func (s *Store) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	checks := []health.Check{
		{Name: "LedgerStore", Check: s.kv.Health},
		{Name: "BlockIndex", Check: s.blockIndex.Health},
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}

func (s *Store) LookupHeight(ctx context.Context, hash chainhash.Hash) (uint32, error) {
	s.chainLock.Lock()
	defer s.chainLock.Unlock()

	return s.blockIndex.GetBlockHeight(ctx, &hash)
}

// GetBestBlock reads the best block the ledger was last committed at.
func (s *Store) GetBestBlock(ctx context.Context) (chainhash.Hash, error) {
	return readBestBlock(ctx, s.kv)
}

func (s *Store) OpenSnapshotCursor(ctx context.Context) (Cursor, error) {
	snap, err := s.kv.NewSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	best, err := readBestBlock(ctx, snap)
	if err != nil {
		snap.Release()
		return nil, err
	}

	return &coinsCursor{
		snap: snap,
		it:   snap.NewIterator(ctx, []byte{PrefixCoins}),
		best: best,
	}, nil
}

// GetCoins returns the coins of txID, or an errors.ErrNotFound error.
func (s *Store) GetCoins(ctx context.Context, txID chainhash.Hash) (*model.Coins, error) {
	b, err := s.kv.Get(ctx, coinsKey(txID))
	if err != nil {
		return nil, err
	}

	return model.NewCoinsFromBytes(b)
}

// GetAddressOutpoints returns the unspent outpoints paying to a public key hash.
func (s *Store) GetAddressOutpoints(ctx context.Context, address []byte) ([]model.Outpoint, error) {
	b, err := s.kv.Get(ctx, addressKey(address))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return decodeOutpoints(b)
}

func readBestBlock(ctx context.Context, r kvstore.Reader) (chainhash.Hash, error) {
	b, err := r.Get(ctx, bestBlockKey())
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return chainhash.Hash{}, nil
		}

		return chainhash.Hash{}, errors.NewReadError("failed to read best block", err)
	}

	hash, err := chainhash.NewHash(b)
	if err != nil {
		return chainhash.Hash{}, errors.NewReadError("invalid best block value", err)
	}

	return *hash, nil
}

type coinsCursor struct {
	snap kvstore.Snapshot
	it   kvstore.Iterator
	best chainhash.Hash
}

func (c *coinsCursor) GetBestBlock() chainhash.Hash {
	return c.best
}

func (c *coinsCursor) Valid() bool {
	return c.it.Valid()
}

func (c *coinsCursor) Next() {
	c.it.Next()
}

func (c *coinsCursor) GetKey() (chainhash.Hash, error) {
	k := c.it.Key()
	if len(k) != 1+chainhash.HashSize {
		return chainhash.Hash{}, errors.NewProcessingError("invalid coins key length %d", len(k))
	}

	var txID chainhash.Hash

	copy(txID[:], k[1:])

	return txID, nil
}

func (c *coinsCursor) GetValue() (*model.Coins, error) {
	return model.NewCoinsFromBytes(c.it.Value())
}

func (c *coinsCursor) GetValueSize() int {
	return len(c.it.Value())
}

func (c *coinsCursor) OpenAddressCursor(ctx context.Context) AddressCursor {
	return &addressCursor{
		it: c.snap.NewIterator(ctx, []byte{PrefixAddress}),
	}
}

func (c *coinsCursor) Error() error {
	return c.it.Error()
}

func (c *coinsCursor) Close() {
	c.it.Release()
	c.snap.Release()
}

type addressCursor struct {
	it kvstore.Iterator
}

func (c *addressCursor) Valid() bool {
	return c.it.Valid()
}

func (c *addressCursor) Next() {
	c.it.Next()
}

func (c *addressCursor) GetKey() ([]byte, error) {
	k := c.it.Key()
	if len(k) != 1+AddressSize {
		return nil, errors.NewProcessingError("invalid address key length %d", len(k))
	}

	return k[1:], nil
}

func (c *addressCursor) GetValue() ([]model.Outpoint, error) {
	return decodeOutpoints(c.it.Value())
}

func (c *addressCursor) Error() error {
	return c.it.Error()
}

func (c *addressCursor) Close() {
	c.it.Release()
}
