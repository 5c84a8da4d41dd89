package chainstate

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"strings"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// UTXOSetMagic identifies a UTXO set stream:
//
//	magic (8, zero padded) | best block hash (32) | height (uint32 LE)
//	UTXOWrapper...
//	EOFMarker | transaction count (uint64 LE) | utxo count (uint64 LE)
const UTXOSetMagic = "U-S-1.0"

const (
	headerSize = 8 + chainhash.HashSize + 4
	footerSize = 16

	importBatchSize = 10_000
)

func buildHeaderBytes(blockHash chainhash.Hash, blockHeight uint32) []byte {
	b := make([]byte, headerSize)

	copy(b[:8], UTXOSetMagic)
	copy(b[8:40], blockHash[:])
	binary.LittleEndian.PutUint32(b[40:44], blockHeight)

	return b
}

func readHeader(r io.Reader) (chainhash.Hash, uint32, error) {
	b := make([]byte, headerSize)

	if _, err := io.ReadFull(r, b); err != nil {
		return chainhash.Hash{}, 0, errors.NewReadError("error reading utxo set header", err)
	}

	if magic := strings.TrimRight(string(b[:8]), "\x00"); magic != UTXOSetMagic {
		return chainhash.Hash{}, 0, errors.NewReadError("invalid utxo set magic %q", magic)
	}

	var hash chainhash.Hash

	copy(hash[:], b[8:40])

	return hash, binary.LittleEndian.Uint32(b[40:44]), nil
}

// ImportUTXOSet loads a UTXO set stream into the ledger, commits its best block and records
// the block in the block index. Records are committed in batches; the best block is only
// written once the footer has been verified.
func (s *Store) ImportUTXOSet(ctx context.Context, r io.Reader) (txCount uint64, utxoCount uint64, err error) {
	br := bufio.NewReader(r)

	blockHash, blockHeight, err := readHeader(br)
	if err != nil {
		return 0, 0, err
	}

	s.logger.Infof("[ImportUTXOSet] importing utxo set at %s (height %d)", blockHash, blockHeight)

	update := s.NewUpdate()
	pending := 0

	for {
		uw, err := NewUTXOWrapperFromReader(ctx, br)
		if err != nil {
			// only the marker yields a bare io.EOF; a truncated stream is a read error
			if err == io.EOF { // nolint:errorlint
				break
			}

			return txCount, utxoCount, err
		}

		if err = update.AddOutputs(ctx, uw.TxID, uw.Height, uw.Coinbase, uw.Outputs()); err != nil {
			return txCount, utxoCount, err
		}

		txCount++
		utxoCount += uint64(len(uw.UTXOs))
		pending++

		if pending == importBatchSize {
			if err = update.Commit(ctx); err != nil {
				return txCount, utxoCount, err
			}

			s.logger.Debugf("[ImportUTXOSet] committed %d transactions", txCount)

			update = s.NewUpdate()
			pending = 0
		}
	}

	var footer [footerSize]byte
	if _, err = io.ReadFull(br, footer[:]); err != nil {
		return txCount, utxoCount, errors.NewReadError("error reading utxo set footer", err)
	}

	expectedTxs := binary.LittleEndian.Uint64(footer[0:8])
	expectedUTXOs := binary.LittleEndian.Uint64(footer[8:16])

	if expectedTxs != txCount || expectedUTXOs != utxoCount {
		return txCount, utxoCount, errors.NewReadError("utxo set footer mismatch: expected %d txs and %d utxos, read %d and %d",
			expectedTxs, expectedUTXOs, txCount, utxoCount)
	}

	update.SetBestBlock(blockHash)

	if err = update.Commit(ctx); err != nil {
		return txCount, utxoCount, err
	}

	if blockHash != (chainhash.Hash{}) {
		s.chainLock.Lock()
		err = s.blockIndex.StoreBlock(ctx, &blockHash, blockHeight)
		s.chainLock.Unlock()

		if err != nil {
			return txCount, utxoCount, err
		}
	}

	s.logger.Infof("[ImportUTXOSet] imported %d transactions with %d utxos", txCount, utxoCount)

	return txCount, utxoCount, nil
}

// ExportUTXOSet writes a consistent snapshot of the ledger as a UTXO set stream.
func (s *Store) ExportUTXOSet(ctx context.Context, w io.Writer) (txCount uint64, utxoCount uint64, err error) {
	cursor, err := s.OpenSnapshotCursor(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer cursor.Close()

	blockHash := cursor.GetBestBlock()

	var blockHeight uint32

	if blockHash != (chainhash.Hash{}) {
		blockHeight, err = s.LookupHeight(ctx, blockHash)
		if err != nil && !errors.Is(err, errors.ErrBlockNotFound) {
			return 0, 0, err
		}
	}

	bw := bufio.NewWriter(w)

	if _, err = bw.Write(buildHeaderBytes(blockHash, blockHeight)); err != nil {
		return 0, 0, errors.NewStorageError("error writing utxo set header", err)
	}

	for ; cursor.Valid(); cursor.Next() {
		select {
		case <-ctx.Done():
			return txCount, utxoCount, errors.NewContextCanceledError("exporting utxo set", ctx.Err())
		default:
		}

		txID, err := cursor.GetKey()
		if err != nil {
			return txCount, utxoCount, err
		}

		coins, err := cursor.GetValue()
		if err != nil {
			return txCount, utxoCount, errors.NewReadError("unable to read coins of %s", txID, err)
		}

		uw, err := NewUTXOWrapperFromCoins(txID, coins)
		if err != nil {
			return txCount, utxoCount, err
		}

		if _, err = bw.Write(uw.Bytes()); err != nil {
			return txCount, utxoCount, errors.NewStorageError("error writing utxo wrapper", err)
		}

		txCount++
		utxoCount += uint64(len(uw.UTXOs))
	}

	if err = cursor.Error(); err != nil {
		return txCount, utxoCount, errors.NewReadError("utxo set iteration failed", err)
	}

	footer := make([]byte, 0, len(EOFMarker)+footerSize)
	footer = append(footer, EOFMarker...)
	footer = binary.LittleEndian.AppendUint64(footer, txCount)
	footer = binary.LittleEndian.AppendUint64(footer, utxoCount)

	if _, err = bw.Write(footer); err != nil {
		return txCount, utxoCount, errors.NewStorageError("error writing utxo set footer", err)
	}

	if err = bw.Flush(); err != nil {
		return txCount, utxoCount, errors.NewStorageError("error flushing utxo set", err)
	}

	return txCount, utxoCount, nil
}
