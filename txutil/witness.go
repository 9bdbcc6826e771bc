// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txutil

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// EnsureWitnessUtxo attaches the witness UTXO to the input at idx if the
// standard spends witness outputs and the PSBT producer left it out. Segwit
// signatures commit to the spent amount, so they cannot be produced without
// it. The previous output is copied so the packet never aliases caller
// memory. It returns true if the field was attached by this call.
//
// Calling it again on the same input is a no-op.
func EnsureWitnessUtxo(packet *psbt.Packet, idx int, standard Standard,
	prevOut *wire.TxOut) (bool, error) {

	if err := checkInputIndex(packet, idx); err != nil {
		return false, err
	}

	if !standard.IsWitness() {
		return false, nil
	}

	in := &packet.Inputs[idx]
	if in.WitnessUtxo != nil {
		return false, nil
	}

	if prevOut == nil {
		return false, fmt.Errorf("%w: input %d", ErrMissingPrevOutput,
			idx)
	}

	pkScript := make([]byte, len(prevOut.PkScript))
	copy(pkScript, prevOut.PkScript)

	in.WitnessUtxo = wire.NewTxOut(prevOut.Value, pkScript)

	return true, nil
}
