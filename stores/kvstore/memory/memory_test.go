package memory

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/bsv-blockchain/chainstate/stores/kvstore/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	tests.All(t, func(t *testing.T) kvstore.Store {
		return New()
	})
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	store := New()

	b := kvstore.NewBatch()
	b.Put([]byte("k"), []byte("v"))
	require.NoError(t, store.Write(ctx, b))
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Close())

	assert.Error(t, store.Write(ctx, b))

	_, err := store.NewSnapshot(ctx)
	assert.Error(t, err)

	_, _, err = store.Health(ctx, false)
	assert.Error(t, err)
}
