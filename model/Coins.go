package model

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
)

// Coins holds the outputs of one transaction that are tracked in the unspent set.
// Outputs is indexed by output index; a nil entry is a spent (null) output.
type Coins struct {
	Height   uint32
	Coinbase bool
	Outputs  []*bt.Output
}

// Bytes serializes the coins:
//
//	height<<1 | coinbase (uint32 LE)
//	number of output slots (uint32 LE)
//	per slot: 0x00 for a spent output, or 0x01 + satoshis (uint64 LE) + script length (uint32 LE) + script
func (c *Coins) Bytes() ([]byte, error) {
	size := 8
	for _, o := range c.Outputs {
		size++
		if o != nil {
			size += 8 + 4 + scriptLen(o)
		}
	}

	b := make([]byte, 0, size)

	var flag uint32
	if c.Coinbase {
		flag = 1
	}

	b = binary.LittleEndian.AppendUint32(b, (c.Height<<1)|flag)

	slots, err := safeconversion.IntToUint32(len(c.Outputs))
	if err != nil {
		return nil, errors.NewProcessingError("too many outputs", err)
	}

	b = binary.LittleEndian.AppendUint32(b, slots)

	for _, o := range c.Outputs {
		if o == nil {
			b = append(b, 0)
			continue
		}

		b = append(b, 1)
		b = binary.LittleEndian.AppendUint64(b, o.Satoshis)

		l, err := safeconversion.IntToUint32(scriptLen(o))
		if err != nil {
			return nil, errors.NewProcessingError("script too large", err)
		}

		b = binary.LittleEndian.AppendUint32(b, l)

		if o.LockingScript != nil {
			b = append(b, *o.LockingScript...)
		}
	}

	return b, nil
}

// NewCoinsFromBytes decodes a coins record. Trailing bytes are an error.
func NewCoinsFromBytes(b []byte) (*Coins, error) {
	if len(b) < 8 {
		return nil, errors.NewProcessingError("coins record too short: %d bytes", len(b))
	}

	encodedHeight := binary.LittleEndian.Uint32(b[0:4])
	slots := binary.LittleEndian.Uint32(b[4:8])
	pos := 8

	// every slot needs at least its presence byte
	if uint64(slots) > uint64(len(b)-pos) {
		return nil, errors.NewProcessingError("coins record claims %d outputs in %d bytes", slots, len(b))
	}

	c := &Coins{
		Height:   encodedHeight >> 1,
		Coinbase: encodedHeight&1 == 1,
		Outputs:  make([]*bt.Output, slots),
	}

	for i := range c.Outputs {
		if pos >= len(b) {
			return nil, errors.NewProcessingError("coins record truncated at output %d", i)
		}

		present := b[pos]
		pos++

		switch present {
		case 0:
			continue
		case 1:
		default:
			return nil, errors.NewProcessingError("invalid presence marker %d at output %d", present, i)
		}

		if len(b)-pos < 12 {
			return nil, errors.NewProcessingError("coins record truncated at output %d", i)
		}

		satoshis := binary.LittleEndian.Uint64(b[pos : pos+8])
		l := binary.LittleEndian.Uint32(b[pos+8 : pos+12])
		pos += 12

		if uint64(l) > uint64(len(b)-pos) {
			return nil, errors.NewProcessingError("script of output %d overruns record", i)
		}

		script := make([]byte, l)
		copy(script, b[pos:pos+int(l)])
		pos += int(l)

		c.Outputs[i] = &bt.Output{
			Satoshis:      satoshis,
			LockingScript: bscript.NewFromBytes(script),
		}
	}

	if pos != len(b) {
		return nil, errors.NewProcessingError("coins record has %d trailing bytes", len(b)-pos)
	}

	return c, nil
}

// IsEmpty reports whether every output has been spent.
func (c *Coins) IsEmpty() bool {
	for _, o := range c.Outputs {
		if o != nil {
			return false
		}
	}

	return true
}

// UnspentCount returns the number of non-null outputs.
func (c *Coins) UnspentCount() int {
	n := 0

	for _, o := range c.Outputs {
		if o != nil {
			n++
		}
	}

	return n
}

// Spend marks the output at index as spent and returns the previous output, or nil if it
// was already spent or out of range. Trailing spent slots are trimmed.
func (c *Coins) Spend(index uint32) *bt.Output {
	if uint64(index) >= uint64(len(c.Outputs)) {
		return nil
	}

	o := c.Outputs[index]
	c.Outputs[index] = nil

	for len(c.Outputs) > 0 && c.Outputs[len(c.Outputs)-1] == nil {
		c.Outputs = c.Outputs[:len(c.Outputs)-1]
	}

	return o
}

func (c *Coins) String() string {
	s := strings.Builder{}

	if c.Coinbase {
		s.WriteString(fmt.Sprintf("height %d coinbase - %d output slot(s):\n", c.Height, len(c.Outputs)))
	} else {
		s.WriteString(fmt.Sprintf("height %d - %d output slot(s):\n", c.Height, len(c.Outputs)))
	}

	for i, o := range c.Outputs {
		if o == nil {
			s.WriteString(fmt.Sprintf("\t%d: spent\n", i))
			continue
		}

		s.WriteString(fmt.Sprintf("\t%d: %d - %x\n", i, o.Satoshis, scriptBytes(o)))
	}

	return s.String()
}

func scriptLen(o *bt.Output) int {
	if o.LockingScript == nil {
		return 0
	}

	return len(*o.LockingScript)
}

func scriptBytes(o *bt.Output) []byte {
	if o.LockingScript == nil {
		return nil
	}

	return *o.LockingScript
}
