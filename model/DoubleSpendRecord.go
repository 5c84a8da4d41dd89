package model

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"sort"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// DoubleSpendRecord tracks every transaction seen trying to spend an already contested
// outpoint. The set of conflicting transactions only grows and OriginHeight only decreases.
type DoubleSpendRecord struct {
	Outpoint         Outpoint
	OriginHeight     uint32
	conflictingTxIDs map[chainhash.Hash]struct{}
}

func NewDoubleSpendRecord(outpoint Outpoint, originHeight uint32) *DoubleSpendRecord {
	return &DoubleSpendRecord{
		Outpoint:         outpoint,
		OriginHeight:     originHeight,
		conflictingTxIDs: make(map[chainhash.Hash]struct{}),
	}
}

// AddConflictingTx inserts txID into the conflicting set and reports whether it was new.
func (r *DoubleSpendRecord) AddConflictingTx(txID chainhash.Hash) bool {
	if r.conflictingTxIDs == nil {
		r.conflictingTxIDs = make(map[chainhash.Hash]struct{})
	}

	if _, ok := r.conflictingTxIDs[txID]; ok {
		return false
	}

	r.conflictingTxIDs[txID] = struct{}{}

	return true
}

// ObserveHeight lowers the origin height to height if it is older.
func (r *DoubleSpendRecord) ObserveHeight(height uint32) {
	if height < r.OriginHeight {
		r.OriginHeight = height
	}
}

func (r *DoubleSpendRecord) HasConflictingTx(txID chainhash.Hash) bool {
	_, ok := r.conflictingTxIDs[txID]
	return ok
}

func (r *DoubleSpendRecord) ConflictingTxCount() int {
	return len(r.conflictingTxIDs)
}

// ConflictingTxIDs returns the conflicting transaction ids sorted by their byte value.
func (r *DoubleSpendRecord) ConflictingTxIDs() []chainhash.Hash {
	ids := make([]chainhash.Hash, 0, len(r.conflictingTxIDs))
	for id := range r.conflictingTxIDs {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	return ids
}

// Clone returns a deep copy sharing no state with r.
func (r *DoubleSpendRecord) Clone() *DoubleSpendRecord {
	c := NewDoubleSpendRecord(r.Outpoint, r.OriginHeight)
	for id := range r.conflictingTxIDs {
		c.conflictingTxIDs[id] = struct{}{}
	}

	return c
}

// Bytes serializes the record as outpoint, varint count, sorted txids, origin height (uint32 LE).
func (r *DoubleSpendRecord) Bytes() []byte {
	ids := r.ConflictingTxIDs()

	b := make([]byte, 0, OutpointSize+9+len(ids)*chainhash.HashSize+4)
	b = append(b, r.Outpoint.Bytes()...)
	b = append(b, bt.VarInt(uint64(len(ids))).Bytes()...)

	for _, id := range ids {
		b = append(b, id[:]...)
	}

	return binary.LittleEndian.AppendUint32(b, r.OriginHeight)
}

// NewDoubleSpendRecordFromBytes decodes a record written by Bytes.
func NewDoubleSpendRecordFromBytes(b []byte) (*DoubleSpendRecord, error) {
	if len(b) < OutpointSize+1+4 {
		return nil, errors.NewProcessingError("double spend record too short: %d bytes", len(b))
	}

	outpoint, err := NewOutpointFromBytes(b[:OutpointSize])
	if err != nil {
		return nil, err
	}

	pos := OutpointSize

	need := 1

	switch b[pos] {
	case 0xfd:
		need = 3
	case 0xfe:
		need = 5
	case 0xff:
		need = 9
	}

	if len(b)-pos < need {
		return nil, errors.NewProcessingError("double spend record truncated in txid count")
	}

	vi, size := bt.NewVarIntFromBytes(b[pos:])
	count := uint64(vi)
	pos += size

	if count == 0 {
		return nil, errors.NewProcessingError("double spend record for %s has no conflicting txids", outpoint)
	}

	if count > uint64(len(b)/chainhash.HashSize) || uint64(len(b)-pos) != count*chainhash.HashSize+4 {
		return nil, errors.NewProcessingError("double spend record length mismatch for %d txids", count)
	}

	r := NewDoubleSpendRecord(outpoint, 0)

	for i := uint64(0); i < count; i++ {
		var id chainhash.Hash

		copy(id[:], b[pos:pos+chainhash.HashSize])
		pos += chainhash.HashSize

		r.conflictingTxIDs[id] = struct{}{}
	}

	r.OriginHeight = binary.LittleEndian.Uint32(b[pos:])

	return r, nil
}

type doubleSpendRecordJSON struct {
	TxID           string   `json:"txid"`
	Vout           uint32   `json:"vout"`
	OriginHeight   uint32   `json:"originHeight"`
	ConflictingTxs []string `json:"conflictingTxs"`
}

func (r *DoubleSpendRecord) MarshalJSON() ([]byte, error) {
	ids := r.ConflictingTxIDs()

	j := doubleSpendRecordJSON{
		TxID:           r.Outpoint.TxID.String(),
		Vout:           r.Outpoint.Index,
		OriginHeight:   r.OriginHeight,
		ConflictingTxs: make([]string, len(ids)),
	}

	for i, id := range ids {
		j.ConflictingTxs[i] = id.String()
	}

	return json.Marshal(j)
}

func (r *DoubleSpendRecord) UnmarshalJSON(data []byte) error {
	var j doubleSpendRecordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	txID, err := chainhash.NewHashFromStr(j.TxID)
	if err != nil {
		return errors.NewInvalidArgumentError("invalid txid %q", j.TxID, err)
	}

	*r = *NewDoubleSpendRecord(NewOutpoint(*txID, j.Vout), j.OriginHeight)

	for _, s := range j.ConflictingTxs {
		id, err := chainhash.NewHashFromStr(s)
		if err != nil {
			return errors.NewInvalidArgumentError("invalid conflicting txid %q", s, err)
		}

		r.conflictingTxIDs[*id] = struct{}{}
	}

	return nil
}
