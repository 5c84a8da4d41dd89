package model

import (
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// UTXOStats is the result of one audit of the unspent output set.
type UTXOStats struct {
	BestBlock          chainhash.Hash `json:"bestBlock"`
	Height             uint32         `json:"height"`
	Transactions       uint64         `json:"transactions"`
	TransactionOutputs uint64         `json:"transactionOutputs"`
	SerializedSize     uint64         `json:"serializedSize"`
	TotalAmount        uint64         `json:"totalAmount"`
	HashSerialized     chainhash.Hash `json:"hashSerialized"`
	Addresses          uint64         `json:"addresses"`
	AddressOutputs     uint64         `json:"addressOutputs"`
}

func (s *UTXOStats) String() string {
	return fmt.Sprintf("best block %s height %d: %d txs, %d outputs, %d bytes, %d satoshis, hash %s, %d addresses with %d outputs",
		s.BestBlock, s.Height, s.Transactions, s.TransactionOutputs, s.SerializedSize, s.TotalAmount, s.HashSerialized,
		s.Addresses, s.AddressOutputs)
}
