package memory

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	genesis := chainhash.HashH([]byte("genesis"))

	m := New(&genesis)

	height, err := m.GetBlockHeight(ctx, &genesis)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), height)

	hash1 := chainhash.HashH([]byte("block1"))
	hash2 := chainhash.HashH([]byte("block2"))

	require.NoError(t, m.StoreBlock(ctx, &hash1, 1))
	require.NoError(t, m.StoreBlock(ctx, &hash2, 2))

	best, height, err := m.GetBestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, hash2, *best)
	assert.Equal(t, uint32(2), height)

	t.Run("lowering the best block", func(t *testing.T) {
		require.NoError(t, m.StoreBlock(ctx, &hash2, 0))

		best, height, err := m.GetBestBlock(ctx)
		require.NoError(t, err)
		assert.Equal(t, hash1, *best)
		assert.Equal(t, uint32(1), height)
	})

	t.Run("unknown block", func(t *testing.T) {
		unknown := chainhash.HashH([]byte("unknown"))

		_, err := m.GetBlockHeight(ctx, &unknown)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBlockNotFound))
	})
}

func TestEmpty(t *testing.T) {
	_, _, err := New(nil).GetBestBlock(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBlockNotFound))
}
