// Package utxoaudit computes a deterministic summary of the unspent output set.
//
// The digest is a double SHA256 over the best block hash followed by, for every transaction
// with unspent outputs in txid byte order, the txid, then VARINT(index+1) and the serialized
// output for each unspent output, then VARINT(0).
package utxoaudit

import (
	"context"
	"crypto/sha256"
	"hash"
	"time"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/model"
	"github.com/bsv-blockchain/chainstate/stores/chainstate"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/bsv-blockchain/chainstate/util"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"
	"go.uber.org/atomic"
)

var stat = gocore.NewStat("utxoaudit")

type Auditor struct {
	logger    ulogger.Logger
	running   atomic.Bool
	audits    atomic.Uint64
	lastStats atomic.Pointer[model.UTXOStats]
}

func New(logger ulogger.Logger) *Auditor {
	initPrometheusMetrics()

	return &Auditor{
		logger: logger,
	}
}

// ComputeUTXOStats walks a snapshot of the ledger and its address index. A canceled ctx
// returns an errors.ErrContextCanceled error and no stats.
func (a *Auditor) ComputeUTXOStats(ctx context.Context, provider chainstate.Provider) (*model.UTXOStats, error) {
	start := gocore.CurrentTime()
	defer func() {
		stat.NewStat("ComputeUTXOStats").AddTime(start)
		prometheusUTXOAuditDuration.Observe(time.Since(start).Seconds())
	}()

	a.running.Store(true)
	defer a.running.Store(false)

	stats, err := a.computeUTXOStats(ctx, provider)
	if err != nil {
		var uErr *errors.Error
		if errors.As(err, &uErr) {
			prometheusUTXOAuditErrors.WithLabelValues(uErr.Code().String()).Inc()
		} else {
			prometheusUTXOAuditErrors.WithLabelValues(errors.ERR_UNKNOWN.String()).Inc()
		}

		a.logger.Errorf("[ComputeUTXOStats] stats computation failed: %v", err)

		return nil, err
	}

	a.audits.Inc()
	a.lastStats.Store(stats)

	prometheusUTXOAuditTransactions.Set(float64(stats.Transactions))
	prometheusUTXOAuditTransactionOutputs.Set(float64(stats.TransactionOutputs))
	prometheusUTXOAuditTotalAmount.Set(float64(stats.TotalAmount))
	prometheusUTXOAuditHeight.Set(float64(stats.Height))

	a.logger.Infof("[ComputeUTXOStats] %s", stats)

	return stats, nil
}

// LastStats returns the result of the most recent successful audit, or nil.
func (a *Auditor) LastStats() *model.UTXOStats {
	last := a.lastStats.Load()
	if last == nil {
		return nil
	}

	stats := *last

	return &stats
}

func (a *Auditor) Running() bool {
	return a.running.Load()
}

func (a *Auditor) Audits() uint64 {
	return a.audits.Load()
}

func (a *Auditor) computeUTXOStats(ctx context.Context, provider chainstate.Provider) (*model.UTXOStats, error) {
	if err := checkCanceled(ctx); err != nil {
		return nil, err
	}

	cursor, err := provider.OpenSnapshotCursor(ctx)
	if err != nil {
		return nil, errors.NewReadError("unable to open ledger snapshot", err)
	}
	defer cursor.Close()

	stats := &model.UTXOStats{
		BestBlock: cursor.GetBestBlock(),
	}

	stats.Height, err = provider.LookupHeight(ctx, stats.BestBlock)
	if err != nil {
		if !errors.Is(err, errors.ErrBlockNotFound) {
			return nil, errors.NewReadError("unable to look up height of %s", stats.BestBlock, err)
		}

		stats.Height = 0
	}

	if err = walkCoins(ctx, cursor, stats); err != nil {
		return nil, err
	}

	// both walks read the one snapshot, so the address counts match the coins
	addressCursor := cursor.OpenAddressCursor(ctx)
	defer addressCursor.Close()

	if err = walkAddresses(ctx, addressCursor, stats); err != nil {
		return nil, err
	}

	return stats, nil
}

func checkCanceled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errors.NewContextCanceledError("utxo set audit canceled", ctx.Err())
	default:
		return nil
	}
}

// walkCoins fills every field of stats except the height and the address counts.
func walkCoins(ctx context.Context, cursor chainstate.Cursor, stats *model.UTXOStats) error {
	h := sha256.New()
	h.Write(stats.BestBlock[:])

	var varint []byte

	for ; cursor.Valid(); cursor.Next() {
		if err := checkCanceled(ctx); err != nil {
			return err
		}

		txID, err := cursor.GetKey()
		if err != nil {
			return errors.NewReadError("unable to read utxo set key", err)
		}

		coins, err := cursor.GetValue()
		if err != nil {
			return errors.NewReadError("unable to read coins of %s", txID, err)
		}

		stats.Transactions++

		h.Write(txID[:])

		for i, o := range coins.Outputs {
			if o == nil {
				continue
			}

			stats.TransactionOutputs++

			varint = util.AppendVarInt(varint[:0], uint64(i)+1)
			h.Write(varint)
			h.Write(o.Bytes())

			stats.TotalAmount += o.Satoshis
		}

		varint = util.AppendVarInt(varint[:0], 0)
		h.Write(varint)

		stats.SerializedSize += uint64(chainhash.HashSize + cursor.GetValueSize())
	}

	if err := cursor.Error(); err != nil {
		return errors.NewReadError("utxo set iteration failed", err)
	}

	stats.HashSerialized = doubleSum(h)

	return nil
}

func walkAddresses(ctx context.Context, cursor chainstate.AddressCursor, stats *model.UTXOStats) error {
	var addresses, outputs uint64

	for ; cursor.Valid(); cursor.Next() {
		if err := checkCanceled(ctx); err != nil {
			return err
		}

		address, err := cursor.GetKey()
		if err != nil {
			return errors.NewReadError("unable to read address index key", err)
		}

		outpoints, err := cursor.GetValue()
		if err != nil {
			return errors.NewReadError("unable to read outpoints of address %x", address, err)
		}

		addresses++
		outputs += uint64(len(outpoints))
	}

	if err := cursor.Error(); err != nil {
		return errors.NewReadError("address index iteration failed", err)
	}

	stats.Addresses = addresses
	stats.AddressOutputs = outputs

	return nil
}

func doubleSum(h hash.Hash) chainhash.Hash {
	return chainhash.Hash(sha256.Sum256(h.Sum(nil)))
}
