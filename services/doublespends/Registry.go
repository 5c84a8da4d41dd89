// Package doublespends keeps a record of every outpoint that more than one transaction has
// tried to spend, until the conflict is buried deep enough in the chain.
package doublespends

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/model"
	"github.com/bsv-blockchain/chainstate/settings"
	"github.com/bsv-blockchain/chainstate/stores/kvstore"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/cespare/xxhash"
	"github.com/dolthub/swiss"
	"github.com/ordishs/gocore"
	"go.uber.org/atomic"
)

const (
	// KeyPrefix tags the registry keyspace: 'D' + 36 byte outpoint.
	KeyPrefix = 'D'

	// EvictionDepth is the number of blocks after which a record is deleted.
	EvictionDepth = 6
)

var stat = gocore.NewStat("doublespends")

// Registry is a write-through cache of double spend records over a kvstore. The cache holds
// every persisted record; callers only ever see copies.
type Registry struct {
	logger     ulogger.Logger
	store      kvstore.Store
	mu         sync.RWMutex
	cache      *swiss.Map[model.Outpoint, *model.DoubleSpendRecord]
	stripes    []sync.Mutex
	registered atomic.Uint64
	deleted    atomic.Uint64
}

// New loads every record from store. Loading stops at the first key or value that cannot be
// decoded; the records read before it are kept.
func New(ctx context.Context, logger ulogger.Logger, store kvstore.Store, tSettings *settings.Settings) (*Registry, error) {
	initPrometheusMetrics()

	if tSettings.DoubleSpends.EvictionDepth != EvictionDepth {
		logger.Warnf("[DoubleSpends] doublespends_evictionDepth=%d is ignored, records are deleted %d blocks deep",
			tSettings.DoubleSpends.EvictionDepth, EvictionDepth)
	}

	r := &Registry{
		logger:  logger,
		store:   store,
		cache:   swiss.NewMap[model.Outpoint, *model.DoubleSpendRecord](1024),
		stripes: make([]sync.Mutex, max(tSettings.DoubleSpends.LockStripes, 1)),
	}

	if err := r.load(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) load(ctx context.Context) error {
	start := gocore.CurrentTime()
	defer func() {
		stat.NewStat("load").AddTime(start)
	}()

	it := r.store.NewIterator(ctx, []byte{KeyPrefix})
	defer it.Release()

	var read int

	for ; it.Valid(); it.Next() {
		select {
		case <-ctx.Done():
			return errors.NewContextCanceledError("loading double spend records", ctx.Err())
		default:
		}

		outpoint, err := outpointFromKey(it.Key())
		if err != nil {
			r.logger.Errorf("[DoubleSpends] read key failure after %d records: %v", read, err)
			break
		}

		rec, err := model.NewDoubleSpendRecordFromBytes(it.Value())
		if err == nil && rec.Outpoint != outpoint {
			err = errors.NewProcessingError("record for %s stored under %s", rec.Outpoint, outpoint)
		}

		if err != nil {
			r.logger.Errorf("[DoubleSpends] read value failure for %s after %d records: %v", outpoint, read, err)
			break
		}

		r.cache.Put(outpoint, rec)
		read++
	}

	if err := it.Error(); err != nil {
		return errors.NewReadError("double spend records iteration failed", err)
	}

	prometheusDoubleSpendsLoaded.Add(float64(read))
	prometheusDoubleSpendsRecords.Set(float64(r.cache.Count()))

	r.logger.Infof("[DoubleSpends] %d records read", read)

	return nil
}

// RegisterDoubleSpendAttempt records that txID tried to spend outpoint in a block at height.
// The record keeps the lowest height seen. The cache is updated even when the write fails.
func (r *Registry) RegisterDoubleSpendAttempt(ctx context.Context, outpoint model.Outpoint, txID chainhash.Hash, height uint32) error {
	start := gocore.CurrentTime()
	defer func() {
		stat.NewStat("RegisterDoubleSpendAttempt").AddTime(start)
		prometheusDoubleSpendsRegister.Observe(time.Since(start).Seconds())
	}()

	stripe := r.stripe(outpoint)
	stripe.Lock()
	defer stripe.Unlock()

	rec, err := r.getRecord(ctx, outpoint)
	if err != nil {
		return r.fail("RegisterDoubleSpendAttempt", outpoint, err)
	}

	if rec == nil {
		if rec, err = r.newRecord(outpoint, height); err != nil {
			return r.fail("RegisterDoubleSpendAttempt", outpoint, err)
		}
	}

	rec.ObserveHeight(height)
	rec.AddConflictingTx(txID)

	r.mu.Lock()
	r.cache.Put(outpoint, rec)
	count := r.cache.Count()
	r.mu.Unlock()

	prometheusDoubleSpendsRecords.Set(float64(count))

	batch := kvstore.NewBatch()
	batch.Put(recordKey(outpoint), rec.Bytes())

	if err = r.store.Write(ctx, batch); err != nil {
		return r.fail("RegisterDoubleSpendAttempt", outpoint, errors.NewStorageError("failed to write double spend record", err))
	}

	r.registered.Inc()
	prometheusDoubleSpendsRegistered.Inc()

	r.logger.Debugf("[DoubleSpends] registered %s spending %s at height %d", txID, outpoint, height)

	return nil
}

// DeleteOldRecords deletes every record whose origin height is at least EvictionDepth blocks
// below currentHeight, in one batch. A failed write is returned; the records are already gone
// from the cache.
func (r *Registry) DeleteOldRecords(ctx context.Context, currentHeight uint32) error {
	_, _, err := r.PruneOldRecords(ctx, currentHeight)
	return err
}

// PruneOldRecords is DeleteOldRecords returning the number of records it deleted and the
// number left, both counted under the same lock.
func (r *Registry) PruneOldRecords(ctx context.Context, currentHeight uint32) (deleted int, remaining int, err error) {
	start := gocore.CurrentTime()
	defer func() {
		stat.NewStat("DeleteOldRecords").AddTime(start)
		prometheusDoubleSpendsDeleteOld.Observe(time.Since(start).Seconds())
	}()

	r.lockAll()
	defer r.unlockAll()

	batch := kvstore.NewBatch()

	r.mu.Lock()

	var old []model.Outpoint

	r.cache.Iter(func(outpoint model.Outpoint, rec *model.DoubleSpendRecord) bool {
		if currentHeight >= rec.OriginHeight && currentHeight-rec.OriginHeight >= EvictionDepth {
			old = append(old, outpoint)
		}

		return false
	})

	for _, outpoint := range old {
		batch.Delete(recordKey(outpoint))
		r.cache.Delete(outpoint)
	}

	remaining = r.cache.Count()

	r.mu.Unlock()

	prometheusDoubleSpendsRecords.Set(float64(remaining))

	if batch.Len() == 0 {
		return 0, remaining, nil
	}

	if err = r.store.Write(ctx, batch); err != nil {
		prometheusDoubleSpendsErrors.WithLabelValues("DeleteOldRecords").Inc()
		r.logger.Errorf("[DoubleSpends] DeleteOldRecords at height %d: error erasing %d old records: %v", currentHeight, len(old), err)

		return len(old), remaining, errors.NewStorageError("error erasing old double spend records", err)
	}

	r.deleted.Add(uint64(len(old)))
	prometheusDoubleSpendsDeleted.Add(float64(len(old)))

	r.logger.Infof("[DoubleSpends] DeleteOldRecords at height %d: %d records erased", currentHeight, len(old))

	return len(old), remaining, nil
}

// GetAllRecords returns a copy of every record.
func (r *Registry) GetAllRecords() []*model.DoubleSpendRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*model.DoubleSpendRecord, 0, r.cache.Count())

	r.cache.Iter(func(_ model.Outpoint, rec *model.DoubleSpendRecord) bool {
		records = append(records, rec.Clone())
		return false
	})

	return records
}

// GetRecord returns a copy of the record for outpoint, or nil.
func (r *Registry) GetRecord(outpoint model.Outpoint) *model.DoubleSpendRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.cache.Get(outpoint)
	if !ok {
		return nil
	}

	return rec.Clone()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.cache.Count()
}

// Registered returns the number of successful registrations since startup.
func (r *Registry) Registered() uint64 {
	return r.registered.Load()
}

// Deleted returns the number of records deleted since startup.
func (r *Registry) Deleted() uint64 {
	return r.deleted.Load()
}

func (r *Registry) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	return r.store.Health(ctx, checkLiveness)
}

func (r *Registry) Close() error {
	return r.store.Close()
}

// getRecord returns a copy of the cached record, falling back to the store.
func (r *Registry) getRecord(ctx context.Context, outpoint model.Outpoint) (*model.DoubleSpendRecord, error) {
	r.mu.RLock()
	rec, ok := r.cache.Get(outpoint)
	r.mu.RUnlock()

	if ok {
		return rec.Clone(), nil
	}

	b, err := r.store.Get(ctx, recordKey(outpoint))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}

		return nil, errors.NewStorageError("failed to read double spend record", err)
	}

	rec, err = model.NewDoubleSpendRecordFromBytes(b)
	if err != nil {
		return nil, errors.NewReadError("invalid double spend record", err)
	}

	r.mu.Lock()
	r.cache.Put(outpoint, rec)
	r.mu.Unlock()

	return rec.Clone(), nil
}

// newRecord returns an empty record for outpoint. It is not cached; the caller puts it once
// it holds a conflicting transaction.
func (r *Registry) newRecord(outpoint model.Outpoint, height uint32) (*model.DoubleSpendRecord, error) {
	r.mu.RLock()
	_, ok := r.cache.Get(outpoint)
	r.mu.RUnlock()

	if ok {
		return nil, errors.NewInvariantViolationError("attempt to recreate the double spend record of %s", outpoint)
	}

	return model.NewDoubleSpendRecord(outpoint, height), nil
}

func (r *Registry) fail(operation string, outpoint model.Outpoint, err error) error {
	prometheusDoubleSpendsErrors.WithLabelValues(operation).Inc()

	r.logger.Errorf("[DoubleSpends] %s failed for %s: %v", operation, outpoint, err)

	var uErr *errors.Error
	if errors.As(err, &uErr) {
		uErr.SetData("outpoint", outpoint.String())
		uErr.SetData("operation", operation)
	}

	return err
}

func (r *Registry) stripe(outpoint model.Outpoint) *sync.Mutex {
	return &r.stripes[xxhash.Sum64(outpoint.Bytes())%uint64(len(r.stripes))]
}

func (r *Registry) lockAll() {
	for i := range r.stripes {
		r.stripes[i].Lock()
	}
}

func (r *Registry) unlockAll() {
	for i := len(r.stripes) - 1; i >= 0; i-- {
		r.stripes[i].Unlock()
	}
}

func recordKey(outpoint model.Outpoint) []byte {
	k := make([]byte, 0, 1+model.OutpointSize)
	k = append(k, KeyPrefix)

	return append(k, outpoint.Bytes()...)
}

func outpointFromKey(key []byte) (model.Outpoint, error) {
	if len(key) != 1+model.OutpointSize || key[0] != KeyPrefix {
		return model.Outpoint{}, errors.NewProcessingError("invalid double spend key %x", key)
	}

	return model.NewOutpointFromBytes(key[1:])
}
