package util

import (
	"github.com/bsv-blockchain/chainstate/errors"
)

// VarintSize calculates the number of bytes required to store a value as a Bitcoin compact size integer.
// Returns 1, 3, 5, or 9 bytes depending on the value size.
func VarintSize(x uint64) uint64 {
	if x < 0xfd {
		return 1
	}

	if x <= 0xffff {
		return 3
	}

	if x <= 0xffffffff {
		return 5
	}

	return 9
}

// AppendVarInt appends n in the MSB base-128 encoding used by the reference node's
// disk formats. Each continuation group is stored minus one so that every value has
// exactly one encoding.
func AppendVarInt(b []byte, n uint64) []byte {
	var tmp [10]byte

	l := 0

	for {
		tmp[l] = byte(n & 0x7f)
		if l > 0 {
			tmp[l] |= 0x80
		}

		if n <= 0x7f {
			break
		}

		n = (n >> 7) - 1
		l++
	}

	for i := l; i >= 0; i-- {
		b = append(b, tmp[i])
	}

	return b
}

// ReadVarInt decodes a value written by AppendVarInt and returns it with the number of bytes read.
func ReadVarInt(b []byte) (uint64, int, error) {
	var n uint64

	for i, c := range b {
		if n > (^uint64(0) >> 7) {
			return 0, 0, errors.NewProcessingError("varint overflows uint64")
		}

		n = (n << 7) | uint64(c&0x7f)

		if c&0x80 == 0 {
			return n, i + 1, nil
		}

		if n == ^uint64(0) {
			return 0, 0, errors.NewProcessingError("varint overflows uint64")
		}

		n++
	}

	return 0, 0, errors.NewProcessingError("varint truncated after %d bytes", len(b))
}
