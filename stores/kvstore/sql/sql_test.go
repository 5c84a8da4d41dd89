package sql

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/settings"
	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/bsv-blockchain/chainstate/stores/kvstore/tests"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, rawURL string) *Store {
	t.Helper()

	storeURL, err := url.Parse(rawURL)
	require.NoError(t, err)

	tSettings := settings.NewSettings()
	tSettings.DataFolder = t.TempDir()

	store, err := New(context.Background(), ulogger.TestLogger{}, storeURL, tSettings)
	require.NoError(t, err)

	return store
}

func TestSQLiteMemoryStore(t *testing.T) {
	tests.All(t, func(t *testing.T) kvstore.Store {
		return newStore(t, "sqlitememory:///kv")
	})
}

func TestSQLiteStore(t *testing.T) {
	tests.All(t, func(t *testing.T) kvstore.Store {
		return newStore(t, "sqlite:///kvtest?table=entries")
	})
}

func TestInvalidTableName(t *testing.T) {
	storeURL, err := url.Parse("sqlitememory:///kv?table=Bad-Name")
	require.NoError(t, err)

	_, err = New(context.Background(), ulogger.TestLogger{}, storeURL, settings.NewSettings())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestPagedIterator(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "sqlitememory:///kv")

	defer func() {
		_ = store.Close()
	}()

	n := pageSize*2 + 17

	b := kvstore.NewBatch()
	for i := 0; i < n; i++ {
		b.Put([]byte(fmt.Sprintf("p%06d", i)), []byte(fmt.Sprint(i)))
	}

	b.Put([]byte("q"), []byte("outside"))
	require.NoError(t, store.Write(ctx, b))

	keys, values := tests.Collect(t, store.NewIterator(ctx, []byte("p")))
	require.Len(t, keys, n)
	assert.Equal(t, "p000000", keys[0])
	assert.Equal(t, fmt.Sprintf("p%06d", n-1), keys[n-1])
	assert.Equal(t, fmt.Sprint(pageSize), values[pageSize])

	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
}

func TestCopySnapshotPrefix(t *testing.T) {
	snap := &copySnapshot{
		keys:   [][]byte{[]byte("a"), []byte("b1"), []byte("b2"), []byte("c")},
		values: [][]byte{[]byte("1"), []byte("2"), []byte("3"), []byte("4")},
	}

	keys, _ := tests.Collect(t, snap.NewIterator(context.Background(), []byte("b")))
	assert.Equal(t, []string{"b1", "b2"}, keys)

	v, err := snap.Get(context.Background(), []byte("c"))
	require.NoError(t, err)
	assert.Equal(t, []byte("4"), v)

	_, err = snap.Get(context.Background(), []byte("b"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
