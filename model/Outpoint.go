package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// OutpointSize is the serialized size of an outpoint: txid followed by a little-endian index.
const OutpointSize = chainhash.HashSize + 4

// Outpoint identifies a single output of a transaction. It is comparable and can be used
// as a map key.
type Outpoint struct {
	TxID  chainhash.Hash
	Index uint32
}

func NewOutpoint(txID chainhash.Hash, index uint32) Outpoint {
	return Outpoint{TxID: txID, Index: index}
}

// NewOutpointFromBytes decodes an outpoint; b must be exactly OutpointSize bytes.
func NewOutpointFromBytes(b []byte) (Outpoint, error) {
	if len(b) != OutpointSize {
		return Outpoint{}, errors.NewProcessingError("invalid outpoint length, expected %d bytes got %d", OutpointSize, len(b))
	}

	var o Outpoint

	copy(o.TxID[:], b[:chainhash.HashSize])
	o.Index = binary.LittleEndian.Uint32(b[chainhash.HashSize:])

	return o, nil
}

// NewOutpointFromString parses "<txid>:<index>".
func NewOutpointFromString(s string) (Outpoint, error) {
	txIDStr, indexStr, ok := strings.Cut(s, ":")
	if !ok {
		return Outpoint{}, errors.NewInvalidArgumentError("invalid outpoint %q, expected <txid>:<index>", s)
	}

	txID, err := chainhash.NewHashFromStr(txIDStr)
	if err != nil {
		return Outpoint{}, errors.NewInvalidArgumentError("invalid outpoint txid %q", txIDStr, err)
	}

	index, err := strconv.ParseUint(indexStr, 10, 32)
	if err != nil {
		return Outpoint{}, errors.NewInvalidArgumentError("invalid outpoint index %q", indexStr, err)
	}

	return Outpoint{TxID: *txID, Index: uint32(index)}, nil
}

func (o Outpoint) Bytes() []byte {
	b := make([]byte, OutpointSize)

	copy(b, o.TxID[:])
	binary.LittleEndian.PutUint32(b[chainhash.HashSize:], o.Index)

	return b
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}

// Compare orders outpoints by serialized txid bytes, then by index.
func (o Outpoint) Compare(other Outpoint) int {
	if c := bytes.Compare(o.TxID[:], other.TxID[:]); c != 0 {
		return c
	}

	switch {
	case o.Index < other.Index:
		return -1
	case o.Index > other.Index:
		return 1
	default:
		return 0
	}
}
