// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btcunit

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// WeightUnit expresses a transaction size in weight units. The weight of a tx
// is `base size * 3 + total size`, where the base size excludes witness data.
type WeightUnit uint64

// ToVByte converts the weight to virtual bytes, rounding up.
func (w WeightUnit) ToVByte() VByte {
	return VByte((uint64(w) + blockchain.WitnessScaleFactor - 1) /
		blockchain.WitnessScaleFactor)
}

// String returns the weight in wu.
func (w WeightUnit) String() string {
	return fmt.Sprintf("%d wu", uint64(w))
}

// VByte expresses a transaction size in virtual bytes, a quarter of a weight
// unit.
type VByte uint64

// ToWU converts the virtual size to weight units.
func (v VByte) ToWU() WeightUnit {
	return WeightUnit(uint64(v) * blockchain.WitnessScaleFactor)
}

// String returns the size in vb.
func (v VByte) String() string {
	return fmt.Sprintf("%d vb", uint64(v))
}

// TxWeight returns the consensus weight of the transaction.
func TxWeight(tx *wire.MsgTx) WeightUnit {
	weight := blockchain.GetTransactionWeight(btcutil.NewTx(tx))
	if weight < 0 {
		return 0
	}

	return WeightUnit(weight)
}
