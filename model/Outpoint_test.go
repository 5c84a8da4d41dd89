package model

import (
	"testing"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutpoint_Bytes(t *testing.T) {
	txID := chainhash.HashH([]byte("tx1"))
	o := NewOutpoint(txID, 3)

	b := o.Bytes()
	require.Len(t, b, OutpointSize)
	assert.Equal(t, txID[:], b[:32])
	assert.Equal(t, []byte{3, 0, 0, 0}, b[32:])

	decoded, err := NewOutpointFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, o, decoded)

	_, err = NewOutpointFromBytes(b[:35])
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProcessing))
}

func TestOutpoint_FromString(t *testing.T) {
	txID := chainhash.HashH([]byte("tx1"))
	o := NewOutpoint(txID, 7)

	parsed, err := NewOutpointFromString(o.String())
	require.NoError(t, err)
	assert.Equal(t, o, parsed)

	for _, s := range []string{"", "nocolon", "zz:1", txID.String() + ":x", txID.String() + ":-1", txID.String() + ":4294967296"} {
		_, err = NewOutpointFromString(s)
		require.Error(t, err, s)
		assert.True(t, errors.Is(err, errors.ErrInvalidArgument), s)
	}
}

func TestOutpoint_Compare(t *testing.T) {
	a := NewOutpoint(chainhash.Hash{1}, 5)
	b := NewOutpoint(chainhash.Hash{2}, 0)

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, NewOutpoint(chainhash.Hash{1}, 4).Compare(a))
	assert.Equal(t, 1, NewOutpoint(chainhash.Hash{1}, 6).Compare(a))
}
