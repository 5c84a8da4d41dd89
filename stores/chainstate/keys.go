package chainstate

import (
	"github.com/bsv-blockchain/chainstate/model"
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

func bestBlockKey() []byte {
	return []byte{KeyBestBlock}
}

func coinsKey(txID chainhash.Hash) []byte {
	k := make([]byte, 0, 1+chainhash.HashSize)
	k = append(k, PrefixCoins)

	return append(k, txID[:]...)
}

func addressKey(address []byte) []byte {
	k := make([]byte, 0, 1+AddressSize)
	k = append(k, PrefixAddress)

	return append(k, address...)
}

// addressOf returns the public key hash an output pays to, or nil if the output is not P2PKH.
func addressOf(o *bt.Output) []byte {
	if o == nil || o.LockingScript == nil || !o.LockingScript.IsP2PKH() {
		return nil
	}

	pkh, err := o.LockingScript.PublicKeyHash()
	if err != nil || len(pkh) != AddressSize {
		return nil
	}

	return pkh
}

func encodeOutpoints(outpoints []model.Outpoint) []byte {
	b := make([]byte, 0, len(outpoints)*model.OutpointSize)

	for _, o := range outpoints {
		b = append(b, o.Bytes()...)
	}

	return b
}

func decodeOutpoints(b []byte) ([]model.Outpoint, error) {
	if len(b) == 0 || len(b)%model.OutpointSize != 0 {
		return nil, errInvalidOutpointList(len(b))
	}

	outpoints := make([]model.Outpoint, 0, len(b)/model.OutpointSize)

	for i := 0; i < len(b); i += model.OutpointSize {
		o, err := model.NewOutpointFromBytes(b[i : i+model.OutpointSize])
		if err != nil {
			return nil, err
		}

		outpoints = append(outpoints, o)
	}

	return outpoints, nil
}
