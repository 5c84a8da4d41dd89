package chainstate

import (
	"context"
	"sort"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/model"
	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// Update stages ledger changes and applies them in one atomic batch on Commit.
// Only one Update may be committing at a time; Commit serializes on the store.
type Update struct {
	store     *Store
	coins     map[chainhash.Hash]*model.Coins
	addresses map[string][]model.Outpoint
	bestBlock *chainhash.Hash
}

func (s *Store) NewUpdate() *Update {
	return &Update{
		store:     s,
		coins:     make(map[chainhash.Hash]*model.Coins),
		addresses: make(map[string][]model.Outpoint),
	}
}

// AddOutputs adds the outputs of a transaction. A nil entry in outputs is stored as spent.
// Adding outputs for a transaction that still has unspent outputs is an error.
func (u *Update) AddOutputs(ctx context.Context, txID chainhash.Hash, height uint32, coinbase bool, outputs []*bt.Output) error {
	existing, err := u.loadCoins(ctx, txID)
	if err != nil {
		return err
	}

	if existing != nil && !existing.IsEmpty() {
		return errors.NewInvalidArgumentError("transaction %s already has unspent outputs", txID)
	}

	c := &model.Coins{
		Height:   height,
		Coinbase: coinbase,
		Outputs:  make([]*bt.Output, len(outputs)),
	}

	copy(c.Outputs, outputs)

	// spent slots at the end are never stored
	for len(c.Outputs) > 0 && c.Outputs[len(c.Outputs)-1] == nil {
		c.Outputs = c.Outputs[:len(c.Outputs)-1]
	}

	u.coins[txID] = c

	for i, o := range c.Outputs {
		address := addressOf(o)
		if address == nil {
			continue
		}

		if err = u.addAddressOutpoint(ctx, address, model.NewOutpoint(txID, uint32(i))); err != nil {
			return err
		}
	}

	return nil
}

// Spend marks an output as spent and returns it. Spending an unknown or already spent
// output returns an errors.ErrNotFound error.
func (u *Update) Spend(ctx context.Context, outpoint model.Outpoint) (*bt.Output, error) {
	c, err := u.loadCoins(ctx, outpoint.TxID)
	if err != nil {
		return nil, err
	}

	if c == nil {
		return nil, errors.NewNotFoundError("no unspent outputs for %s", outpoint.TxID)
	}

	o := c.Spend(outpoint.Index)
	if o == nil {
		return nil, errors.NewNotFoundError("output %s is not unspent", outpoint)
	}

	if address := addressOf(o); address != nil {
		if err = u.removeAddressOutpoint(ctx, address, outpoint); err != nil {
			return nil, err
		}
	}

	return o, nil
}

func (u *Update) SetBestBlock(hash chainhash.Hash) {
	u.bestBlock = &hash
}

// Commit writes every staged change atomically. The update must not be used afterwards.
func (u *Update) Commit(ctx context.Context) error {
	batch := kvstore.NewBatch()

	for txID, c := range u.coins {
		if c.IsEmpty() {
			batch.Delete(coinsKey(txID))
			continue
		}

		b, err := c.Bytes()
		if err != nil {
			return err
		}

		batch.Put(coinsKey(txID), b)
	}

	for address, outpoints := range u.addresses {
		if len(outpoints) == 0 {
			batch.Delete(addressKey([]byte(address)))
			continue
		}

		batch.Put(addressKey([]byte(address)), encodeOutpoints(outpoints))
	}

	if u.bestBlock != nil {
		batch.Put(bestBlockKey(), u.bestBlock[:])
	}

	u.store.updateMu.Lock()
	defer u.store.updateMu.Unlock()

	if err := u.store.kv.Write(ctx, batch); err != nil {
		return err
	}

	u.coins = nil
	u.addresses = nil

	return nil
}

func (u *Update) loadCoins(ctx context.Context, txID chainhash.Hash) (*model.Coins, error) {
	if c, ok := u.coins[txID]; ok {
		return c, nil
	}

	c, err := u.store.GetCoins(ctx, txID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	u.coins[txID] = c

	return c, nil
}

func (u *Update) loadAddress(ctx context.Context, address []byte) ([]model.Outpoint, error) {
	if outpoints, ok := u.addresses[string(address)]; ok {
		return outpoints, nil
	}

	return u.store.GetAddressOutpoints(ctx, address)
}

func (u *Update) addAddressOutpoint(ctx context.Context, address []byte, outpoint model.Outpoint) error {
	outpoints, err := u.loadAddress(ctx, address)
	if err != nil {
		return err
	}

	i := sort.Search(len(outpoints), func(i int) bool {
		return outpoints[i].Compare(outpoint) >= 0
	})

	if i < len(outpoints) && outpoints[i] == outpoint {
		return nil
	}

	outpoints = append(outpoints, model.Outpoint{})
	copy(outpoints[i+1:], outpoints[i:])
	outpoints[i] = outpoint

	u.addresses[string(address)] = outpoints

	return nil
}

func (u *Update) removeAddressOutpoint(ctx context.Context, address []byte, outpoint model.Outpoint) error {
	outpoints, err := u.loadAddress(ctx, address)
	if err != nil {
		return err
	}

	kept := make([]model.Outpoint, 0, len(outpoints))

	for _, o := range outpoints {
		if o != outpoint {
			kept = append(kept, o)
		}
	}

	u.addresses[string(address)] = kept

	return nil
}
