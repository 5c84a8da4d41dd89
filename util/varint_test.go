package util

import (
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintSize(t *testing.T) {
	tests := []struct {
		name     string
		input    uint64
		expected uint64
	}{
		{"zero value", 0, 1},
		{"max single byte", 0xfc, 1},
		{"min three byte", 0xfd, 3},
		{"max three byte", 0xffff, 3},
		{"min five byte", 0x10000, 5},
		{"max five byte", 0xffffffff, 5},
		{"min nine byte", 0x100000000, 9},
		{"max uint64", math.MaxUint64, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, VarintSize(tt.input))
		})
	}
}

func TestAppendVarInt(t *testing.T) {
	// vectors from the reference node's serialization tests
	tests := []struct {
		value    uint64
		expected string
	}{
		{0, "00"},
		{1, "01"},
		{127, "7f"},
		{128, "8000"},
		{255, "807f"},
		{256, "8100"},
		{16383, "fe7f"},
		{16384, "ff00"},
		{16511, "ff7f"},
		{0x1234, "a334"},
		{65535, "82fe7f"},
		{0x123456, "c7e756"},
		{0x80123456, "86ffc7e756"},
		{0xffffffff, "8efefefe7f"},
		{math.MaxUint64, "80fefefefefefefefe7f"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			b := AppendVarInt(nil, tt.value)
			assert.Equal(t, tt.expected, hex.EncodeToString(b))

			v, n, err := ReadVarInt(b)
			require.NoError(t, err)
			assert.Equal(t, tt.value, v)
			assert.Equal(t, len(b), n)
		})
	}
}

func TestAppendVarInt_Appends(t *testing.T) {
	b := AppendVarInt([]byte{0xaa}, 128)
	assert.Equal(t, []byte{0xaa, 0x80, 0x00}, b)
}

func TestReadVarInt_MaxUint64(t *testing.T) {
	b := AppendVarInt(nil, math.MaxUint64)

	v, n, err := ReadVarInt(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), v)
	assert.Equal(t, len(b), n)
}

func TestReadVarInt_Errors(t *testing.T) {
	_, _, err := ReadVarInt(nil)
	require.Error(t, err)

	_, _, err = ReadVarInt([]byte{0x80, 0x80})
	require.Error(t, err)

	overflow := make([]byte, 11)
	for i := range overflow {
		overflow[i] = 0xff
	}

	_, _, err = ReadVarInt(overflow)
	require.Error(t, err)
}
