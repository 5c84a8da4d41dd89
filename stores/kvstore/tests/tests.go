// Package tests holds the behaviour every kvstore backend must share. Backend tests call these
// functions against a freshly opened, empty store.
package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Collect drains an iterator into parallel key and value slices.
func Collect(t *testing.T, it kvstore.Iterator) ([]string, []string) {
	t.Helper()

	defer it.Release()

	var keys, values []string

	for ; it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
		values = append(values, string(it.Value()))
	}

	require.NoError(t, it.Error())

	return keys, values
}

func GetPut(t *testing.T, store kvstore.Store) {
	ctx := context.Background()

	_, err := store.Get(ctx, []byte("missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	b := kvstore.NewBatch()
	b.Put([]byte("k1"), []byte("v1"))
	require.NoError(t, store.Write(ctx, b))

	v, err := store.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	// overwrite
	b = kvstore.NewBatch()
	b.Put([]byte("k1"), []byte("v2"))
	require.NoError(t, store.Write(ctx, b))

	v, err = store.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	// returned values are copies
	v[0] = 'x'

	v, err = store.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	b = kvstore.NewBatch()
	b.Delete([]byte("k1"))
	require.NoError(t, store.Write(ctx, b))

	_, err = store.Get(ctx, []byte("k1"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// deleting a missing key is not an error
	b = kvstore.NewBatch()
	b.Delete([]byte("k1"))
	require.NoError(t, store.Write(ctx, b))
}

func BatchOrdering(t *testing.T, store kvstore.Store) {
	ctx := context.Background()

	b := kvstore.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	b.Delete([]byte("a"))
	b.Put([]byte("c"), []byte("3"))
	b.Put([]byte("c"), []byte("4"))
	require.NoError(t, store.Write(ctx, b))

	_, err := store.Get(ctx, []byte("a"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	v, err := store.Get(ctx, []byte("c"))
	require.NoError(t, err)
	assert.Equal(t, []byte("4"), v)

	// an empty batch is a no-op
	require.NoError(t, store.Write(ctx, kvstore.NewBatch()))
}

func PrefixIterator(t *testing.T, store kvstore.Store) {
	ctx := context.Background()

	b := kvstore.NewBatch()
	b.Put([]byte("a2"), []byte("x"))
	b.Put([]byte("b"), []byte("y"))
	b.Put([]byte("a1"), []byte("z"))
	b.Put([]byte("a\xff"), []byte("w"))
	b.Put([]byte("\xff\xff"), []byte("max"))
	require.NoError(t, store.Write(ctx, b))

	keys, values := Collect(t, store.NewIterator(ctx, []byte("a")))
	assert.Equal(t, []string{"a1", "a2", "a\xff"}, keys)
	assert.Equal(t, []string{"z", "x", "w"}, values)

	keys, _ = Collect(t, store.NewIterator(ctx, nil))
	assert.Equal(t, []string{"a1", "a2", "a\xff", "b", "\xff\xff"}, keys)

	keys, _ = Collect(t, store.NewIterator(ctx, []byte("\xff")))
	assert.Equal(t, []string{"\xff\xff"}, keys)

	keys, _ = Collect(t, store.NewIterator(ctx, []byte("c")))
	assert.Empty(t, keys)
}

func Snapshot(t *testing.T, store kvstore.Store) {
	ctx := context.Background()

	b := kvstore.NewBatch()
	for i := 0; i < 3; i++ {
		b.Put([]byte(fmt.Sprintf("s%d", i)), []byte{byte(i)})
	}

	require.NoError(t, store.Write(ctx, b))

	snap, err := store.NewSnapshot(ctx)
	require.NoError(t, err)

	b = kvstore.NewBatch()
	b.Delete([]byte("s0"))
	b.Put([]byte("s3"), []byte{3})
	b.Put([]byte("s1"), []byte{9})
	require.NoError(t, store.Write(ctx, b))

	v, err := snap.Get(ctx, []byte("s0"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, v)

	v, err = snap.Get(ctx, []byte("s1"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, v)

	_, err = snap.Get(ctx, []byte("s3"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	keys, _ := Collect(t, snap.NewIterator(ctx, []byte("s")))
	assert.Equal(t, []string{"s0", "s1", "s2"}, keys)

	snap.Release()

	keys, _ = Collect(t, store.NewIterator(ctx, []byte("s")))
	assert.Equal(t, []string{"s1", "s2", "s3"}, keys)
}

func Health(t *testing.T, store kvstore.Store) {
	status, _, err := store.Health(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

// All runs every shared test against stores produced by newStore.
func All(t *testing.T, newStore func(t *testing.T) kvstore.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store kvstore.Store)
	}{
		{"GetPut", GetPut},
		{"BatchOrdering", BatchOrdering},
		{"PrefixIterator", PrefixIterator},
		{"Snapshot", Snapshot},
		{"Health", Health},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			defer func() {
				_ = store.Close()
			}()

			tt.fn(t, store)
		})
	}
}
