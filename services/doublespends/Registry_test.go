package doublespends

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/model"
	"github.com/bsv-blockchain/chainstate/settings"
	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/bsv-blockchain/chainstate/stores/kvstore/leveldb"
	"github.com/bsv-blockchain/chainstate/stores/kvstore/memory"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	txA = chainhash.HashH([]byte("A"))
	txB = chainhash.HashH([]byte("B"))
	txC = chainhash.HashH([]byte("C"))
)

func outpoint(id byte, index uint32) model.Outpoint {
	var txID chainhash.Hash

	txID[0] = id

	return model.NewOutpoint(txID, index)
}

func newRegistry(t *testing.T, store kvstore.Store) *Registry {
	t.Helper()

	r, err := New(context.Background(), ulogger.TestLogger{}, store, settings.NewSettings())
	require.NoError(t, err)

	return r
}

func sortedRecords(records []*model.DoubleSpendRecord) []*model.DoubleSpendRecord {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Outpoint.Compare(records[j].Outpoint) < 0
	})

	return records
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, memory.New())
	p := outpoint(1, 0)

	require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, p, txA, 100))
	require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, p, txB, 102))

	records := r.GetAllRecords()
	require.Len(t, records, 1)
	assert.Equal(t, p, records[0].Outpoint)
	assert.Equal(t, uint32(100), records[0].OriginHeight)
	assert.Equal(t, 2, records[0].ConflictingTxCount())
	assert.True(t, records[0].HasConflictingTx(txA))
	assert.True(t, records[0].HasConflictingTx(txB))

	require.NoError(t, r.DeleteOldRecords(ctx, 105))
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.DeleteOldRecords(ctx, 106))
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.GetAllRecords())
	assert.Equal(t, uint64(1), r.Deleted())
}

func TestIdempotentRegistration(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, memory.New())
	p := outpoint(1, 3)

	require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, p, txA, 10))
	require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, p, txA, 10))

	rec := r.GetRecord(p)
	require.NotNil(t, rec)
	assert.Equal(t, []chainhash.Hash{txA}, rec.ConflictingTxIDs())
	assert.Equal(t, uint32(10), rec.OriginHeight)
}

func TestOriginHeightNeverIncreases(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, memory.New())
	p := outpoint(1, 0)

	tests := []struct {
		height   uint32
		expected uint32
	}{
		{50, 50},
		{60, 50},
		{40, 40},
		{45, 40},
	}

	for _, tt := range tests {
		require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, p, chainhash.HashH([]byte{byte(tt.height)}), tt.height))
		assert.Equal(t, tt.expected, r.GetRecord(p).OriginHeight)
	}

	assert.Equal(t, 4, r.GetRecord(p).ConflictingTxCount())
}

func TestEvictionBoundary(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		currentHeight uint32
		kept          bool
	}{
		{"below origin", 99, true},
		{"at origin", 100, true},
		{"five deep", 105, true},
		{"six deep", 106, false},
		{"far deeper", 1_000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			r := newRegistry(t, store)
			p := outpoint(2, 1)

			require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, p, txA, 100))
			require.NoError(t, r.DeleteOldRecords(ctx, tt.currentHeight))

			assert.Equal(t, tt.kept, r.GetRecord(p) != nil)

			_, err := store.Get(ctx, recordKey(p))
			if tt.kept {
				require.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, errors.ErrNotFound))
			}
		})
	}
}

func TestDeleteOldRecordsIsSelective(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, memory.New())

	for i := byte(0); i < 10; i++ {
		require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, outpoint(i, 0), txA, 100+uint32(i)))
	}

	require.NoError(t, r.DeleteOldRecords(ctx, 110))

	records := sortedRecords(r.GetAllRecords())
	require.Len(t, records, 5)

	for i, rec := range records {
		assert.Equal(t, outpoint(byte(i+5), 0), rec.Outpoint)
	}
}

func TestPruneOldRecordsCounts(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, memory.New())

	for i := 0; i < 50; i++ {
		require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, outpoint(byte(i), 0), txA, 1))
	}

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := 0; i < 100; i++ {
			assert.NoError(t, r.RegisterDoubleSpendAttempt(ctx, outpoint(byte(i), 1), txB, 1_000))
		}
	}()

	deleted, remaining, err := r.PruneOldRecords(ctx, 100)
	require.NoError(t, err)

	wg.Wait()

	assert.Equal(t, 50, deleted)
	assert.LessOrEqual(t, remaining, 100)
	assert.Equal(t, uint64(50), r.Deleted())
	assert.Equal(t, 100, r.Len())

	deleted, remaining, err = r.PruneOldRecords(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Equal(t, 100, remaining)
}

func TestStartupFidelity(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := leveldb.New(ulogger.TestLogger{}, dir, false)
	require.NoError(t, err)

	r := newRegistry(t, store)

	require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, outpoint(1, 0), txA, 100))
	require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, outpoint(1, 0), txB, 99))
	require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, outpoint(2, 7), txC, 200))
	require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, outpoint(3, 1), txA, 300))
	require.NoError(t, r.DeleteOldRecords(ctx, 205))

	before := sortedRecords(r.GetAllRecords())
	require.Len(t, before, 2)

	require.NoError(t, r.Close())

	store, err = leveldb.New(ulogger.TestLogger{}, dir, false)
	require.NoError(t, err)

	reopened := newRegistry(t, store)

	t.Cleanup(func() {
		_ = reopened.Close()
	})

	assert.Equal(t, before, sortedRecords(reopened.GetAllRecords()))
}

func TestLoadStopsAtFirstBadEntry(t *testing.T) {
	ctx := context.Background()

	good1 := model.NewDoubleSpendRecord(outpoint(1, 0), 10)
	good1.AddConflictingTx(txA)

	good3 := model.NewDoubleSpendRecord(outpoint(3, 0), 30)
	good3.AddConflictingTx(txB)

	tests := []struct {
		name  string
		key   []byte
		value []byte
	}{
		{"bad value", recordKey(outpoint(2, 0)), []byte{0x01, 0x02, 0x03}},
		{"bad key", []byte{KeyPrefix, 0x02}, good1.Bytes()},
		{"record under another key", recordKey(outpoint(2, 0)), good3.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()

			batch := kvstore.NewBatch()
			batch.Put(recordKey(good1.Outpoint), good1.Bytes())
			batch.Put(tt.key, tt.value)
			batch.Put(recordKey(good3.Outpoint), good3.Bytes())
			batch.Put([]byte("other table"), []byte("ignored"))
			require.NoError(t, store.Write(ctx, batch))

			r := newRegistry(t, store)

			records := r.GetAllRecords()
			require.Len(t, records, 1)
			assert.Equal(t, good1.Outpoint, records[0].Outpoint)
		})
	}
}

func TestLoadCanceled(t *testing.T) {
	store := memory.New()

	rec := model.NewDoubleSpendRecord(outpoint(1, 0), 10)
	rec.AddConflictingTx(txA)

	batch := kvstore.NewBatch()
	batch.Put(recordKey(rec.Outpoint), rec.Bytes())
	require.NoError(t, store.Write(context.Background(), batch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ctx, ulogger.TestLogger{}, store, settings.NewSettings())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrContextCanceled))
}

// failingStore fails every write while failWrites is set.
type failingStore struct {
	kvstore.Store
	mu         sync.Mutex
	failWrites bool
}

func (s *failingStore) setFailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failWrites = fail
}

func (s *failingStore) Write(ctx context.Context, batch *kvstore.Batch) error {
	s.mu.Lock()
	fail := s.failWrites
	s.mu.Unlock()

	if fail {
		return errors.NewStorageUnavailableError("disk full")
	}

	return s.Store.Write(ctx, batch)
}

func TestRegisterWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.New()}
	r := newRegistry(t, store)
	p := outpoint(4, 2)

	store.setFailWrites(true)

	err := r.RegisterDoubleSpendAttempt(ctx, p, txA, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageError))

	var uErr *errors.Error

	require.True(t, errors.As(err, &uErr))
	assert.Equal(t, p.String(), uErr.GetData("outpoint"))
	assert.Equal(t, "RegisterDoubleSpendAttempt", uErr.GetData("operation"))

	rec := r.GetRecord(p)
	require.NotNil(t, rec, "cache is updated even when the write fails")
	assert.True(t, rec.HasConflictingTx(txA))
	assert.Equal(t, uint64(0), r.Registered())

	_, err = store.Get(ctx, recordKey(p))
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	store.setFailWrites(false)

	require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, p, txB, 101))

	b, err := store.Get(ctx, recordKey(p))
	require.NoError(t, err)

	persisted, err := model.NewDoubleSpendRecordFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, sortedHashes(txA, txB), persisted.ConflictingTxIDs())
	assert.Equal(t, uint32(100), persisted.OriginHeight)
}

func sortedHashes(hashes ...chainhash.Hash) []chainhash.Hash {
	rec := model.NewDoubleSpendRecord(model.Outpoint{}, 0)
	for _, h := range hashes {
		rec.AddConflictingTx(h)
	}

	return rec.ConflictingTxIDs()
}

func TestDeleteOldRecordsWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.New()}
	r := newRegistry(t, store)

	require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, outpoint(1, 0), txA, 100))

	store.setFailWrites(true)

	deleted, remaining, err := r.PruneOldRecords(ctx, 200)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageError))
	assert.Equal(t, 1, deleted)
	assert.Zero(t, remaining)
	assert.Zero(t, r.Deleted())

	t.Run("nothing to delete writes nothing", func(t *testing.T) {
		require.NoError(t, r.DeleteOldRecords(ctx, 200))
	})
}

func TestNewRecord(t *testing.T) {
	r := newRegistry(t, memory.New())
	p := outpoint(5, 0)

	rec, err := r.newRecord(p, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), rec.OriginHeight)
	assert.Zero(t, r.Len(), "empty records are never cached")
	assert.Nil(t, r.GetRecord(p))

	require.NoError(t, r.RegisterDoubleSpendAttempt(context.Background(), p, txA, 10))

	_, err = r.newRecord(p, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvariantViolation))
}

func TestReadersNeverSeeEmptyRecords(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, memory.New())

	done := make(chan struct{})

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for {
			for _, rec := range r.GetAllRecords() {
				assert.Positive(t, rec.ConflictingTxCount(), "record %s", rec.Outpoint)
			}

			select {
			case <-done:
				return
			default:
			}
		}
	}()

	for i := 0; i < 200; i++ {
		p := outpoint(byte(i), uint32(i))
		require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, p, txA, 100))

		if rec := r.GetRecord(p); assert.NotNil(t, rec) {
			assert.Equal(t, 1, rec.ConflictingTxCount())
		}
	}

	close(done)
	wg.Wait()

	assert.Equal(t, 200, r.Len())
}

func TestRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, memory.New())
	p := outpoint(6, 0)

	require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, p, txA, 100))

	rec := r.GetRecord(p)
	rec.AddConflictingTx(txB)
	rec.ObserveHeight(1)

	all := r.GetAllRecords()
	all[0].AddConflictingTx(txC)

	stored := r.GetRecord(p)
	assert.Equal(t, 1, stored.ConflictingTxCount())
	assert.Equal(t, uint32(100), stored.OriginHeight)
}

func TestRecordLoadedFromStoreOnCacheMiss(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := newRegistry(t, store)
	p := outpoint(7, 0)

	rec := model.NewDoubleSpendRecord(p, 50)
	rec.AddConflictingTx(txA)

	batch := kvstore.NewBatch()
	batch.Put(recordKey(p), rec.Bytes())
	require.NoError(t, store.Write(ctx, batch))

	require.NoError(t, r.RegisterDoubleSpendAttempt(ctx, p, txB, 60))

	stored := r.GetRecord(p)
	assert.Equal(t, uint32(50), stored.OriginHeight)
	assert.Equal(t, 2, stored.ConflictingTxCount())
}

func TestConcurrentRegistration(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, memory.New())

	var wg sync.WaitGroup

	for i := 0; i < 64; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			p := outpoint(byte(i%4), 0)
			assert.NoError(t, r.RegisterDoubleSpendAttempt(ctx, p, chainhash.HashH([]byte{byte(i)}), uint32(100+i)))
		}(i)
	}

	wg.Wait()

	require.Equal(t, 4, r.Len())

	for i := byte(0); i < 4; i++ {
		rec := r.GetRecord(outpoint(i, 0))
		assert.Equal(t, 16, rec.ConflictingTxCount())
		assert.Equal(t, uint32(100+i), rec.OriginHeight)
	}

	assert.Equal(t, uint64(64), r.Registered())
}
