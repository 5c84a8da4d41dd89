package chainstate

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/model"
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
)

// EOFMarker terminates a UTXO set stream. No transaction has an all zero txid.
var EOFMarker = make([]byte, 32)

// UTXOWrapper is the stream form of the unspent outputs of one transaction:
//
//	txid (32) | height<<1|coinbase (uint32 LE) | count (uint32 LE) | count * UTXO
type UTXOWrapper struct {
	TxID     chainhash.Hash
	Height   uint32
	Coinbase bool
	UTXOs    []*UTXO
}

// UTXO is index (uint32 LE) | value (uint64 LE) | script length (uint32 LE) | script.
type UTXO struct {
	Index  uint32
	Value  uint64
	Script []byte
}

// NewUTXOWrapperFromCoins lists the unspent outputs of c in index order.
func NewUTXOWrapperFromCoins(txID chainhash.Hash, c *model.Coins) (*UTXOWrapper, error) {
	uw := &UTXOWrapper{
		TxID:     txID,
		Height:   c.Height,
		Coinbase: c.Coinbase,
		UTXOs:    make([]*UTXO, 0, c.UnspentCount()),
	}

	for i, o := range c.Outputs {
		if o == nil {
			continue
		}

		index, err := safeconversion.IntToUint32(i)
		if err != nil {
			return nil, errors.NewProcessingError("output index out of range", err)
		}

		var script []byte
		if o.LockingScript != nil {
			script = *o.LockingScript
		}

		uw.UTXOs = append(uw.UTXOs, &UTXO{Index: index, Value: o.Satoshis, Script: script})
	}

	return uw, nil
}

// Outputs expands the wrapper to an index addressed output slice with nil for absent indexes.
func (uw *UTXOWrapper) Outputs() []*bt.Output {
	size := 0

	for _, u := range uw.UTXOs {
		if int(u.Index)+1 > size {
			size = int(u.Index) + 1
		}
	}

	outputs := make([]*bt.Output, size)

	for _, u := range uw.UTXOs {
		outputs[u.Index] = &bt.Output{
			Satoshis:      u.Value,
			LockingScript: bscript.NewFromBytes(u.Script),
		}
	}

	return outputs
}

func (uw *UTXOWrapper) Bytes() []byte {
	size := 32 + 4 + 4
	for _, u := range uw.UTXOs {
		size += 4 + 8 + 4 + len(u.Script)
	}

	b := make([]byte, 0, size)
	b = append(b, uw.TxID[:]...)

	var flag uint32
	if uw.Coinbase {
		flag = 1
	}

	b = binary.LittleEndian.AppendUint32(b, (uw.Height<<1)|flag)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(uw.UTXOs))) // nolint: gosec

	for _, u := range uw.UTXOs {
		b = append(b, u.Bytes()...)
	}

	return b
}

// NewUTXOWrapperFromReader reads the next wrapper. At the EOFMarker it returns an empty
// wrapper and io.EOF.
func NewUTXOWrapperFromReader(ctx context.Context, r io.Reader) (*UTXOWrapper, error) {
	select {
	case <-ctx.Done():
		return nil, errors.NewContextCanceledError("reading utxo set", ctx.Err())
	default:
	}

	uw := &UTXOWrapper{}

	if n, err := io.ReadFull(r, uw.TxID[:]); err != nil {
		return nil, errors.NewReadError("failed to read txid, expected 32 bytes got %d", n, err)
	}

	if bytes.Equal(uw.TxID[:], EOFMarker) {
		return &UTXOWrapper{}, io.EOF
	}

	var b [8]byte
	if n, err := io.ReadFull(r, b[:]); err != nil {
		return nil, errors.NewReadError("failed to read height and number of utxos, expected 8 bytes got %d", n, err)
	}

	encodedHeight := binary.LittleEndian.Uint32(b[0:4])
	numUTXOs := binary.LittleEndian.Uint32(b[4:8])

	uw.Height = encodedHeight >> 1
	uw.Coinbase = encodedHeight&1 == 1
	uw.UTXOs = make([]*UTXO, 0, min(numUTXOs, 1024))

	for i := uint32(0); i < numUTXOs; i++ {
		u, err := NewUTXOFromReader(r)
		if err != nil {
			return nil, errors.NewReadError("failed to read utxo %d of %s", i, uw.TxID, err)
		}

		uw.UTXOs = append(uw.UTXOs, u)
	}

	return uw, nil
}

func (uw *UTXOWrapper) String() string {
	s := strings.Builder{}

	if uw.Coinbase {
		s.WriteString(fmt.Sprintf("%s - (height %d coinbase) - %d output(s):\n", uw.TxID.String(), uw.Height, len(uw.UTXOs)))
	} else {
		s.WriteString(fmt.Sprintf("%s - (height %d) - %d output(s):\n", uw.TxID.String(), uw.Height, len(uw.UTXOs)))
	}

	for _, u := range uw.UTXOs {
		s.WriteString(fmt.Sprintf("\t%v\n", u))
	}

	return s.String()
}

func NewUTXOFromReader(r io.Reader) (*UTXO, error) {
	var b [16]byte

	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}

	u := &UTXO{
		Index: binary.LittleEndian.Uint32(b[0:4]),
		Value: binary.LittleEndian.Uint64(b[4:12]),
	}

	l := binary.LittleEndian.Uint32(b[12:16])

	u.Script = make([]byte, 0, min(l, 1<<20))

	buf := bytes.NewBuffer(u.Script)
	if n, err := io.CopyN(buf, r, int64(l)); err != nil {
		return nil, errors.NewReadError("script truncated after %d of %d bytes", n, l, err)
	}

	u.Script = buf.Bytes()

	return u, nil
}

func (u *UTXO) Bytes() []byte {
	b := make([]byte, 0, 4+8+4+len(u.Script))
	b = binary.LittleEndian.AppendUint32(b, u.Index)
	b = binary.LittleEndian.AppendUint64(b, u.Value)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(u.Script))) // nolint: gosec

	return append(b, u.Script...)
}

func (u *UTXO) String() string {
	return fmt.Sprintf("%d: %d - %x", u.Index, u.Value, u.Script)
}
