package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/bsv-blockchain/chainstate/stores/kvstore/tests"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltStore(t *testing.T) {
	tests.All(t, func(t *testing.T) kvstore.Store {
		store, err := New(ulogger.TestLogger{}, filepath.Join(t.TempDir(), "test.db"), "")
		require.NoError(t, err)

		return store
	})
}

func TestBoltBucketsAreSeparate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	store, err := New(ulogger.TestLogger{}, path, "one")
	require.NoError(t, err)

	b := kvstore.NewBatch()
	b.Put([]byte("k"), []byte("v"))
	require.NoError(t, store.Write(ctx, b))
	require.NoError(t, store.Close())

	other, err := New(ulogger.TestLogger{}, path, "two")
	require.NoError(t, err)

	defer func() {
		_ = other.Close()
	}()

	_, err = other.Get(ctx, []byte("k"))
	assert.Error(t, err)
}
