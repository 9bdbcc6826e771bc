// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txutil

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcelectrum/pkg/btcunit"
)

// ErrNegativeFee is returned when a transaction spends more than its inputs
// are worth.
var ErrNegativeFee = errors.New("outputs exceed inputs")

// FeeInfo describes the fee paid by a transaction.
type FeeInfo struct {
	// Fee is the sum of the input values minus the sum of the output
	// values.
	Fee btcutil.Amount

	// Weight is the consensus weight of the transaction.
	Weight btcunit.WeightUnit

	// VSize is the virtual size of the transaction.
	VSize btcunit.VByte

	// FeeRate is the effective rate the transaction pays.
	FeeRate btcunit.SatPerVByte
}

// CalcFee computes the fee of tx as the difference between the value of the
// outputs it spends and the value of the outputs it creates. Every spent
// output must be known to the fetcher.
func CalcFee(tx *wire.MsgTx,
	fetcher txscript.PrevOutputFetcher) (*FeeInfo, error) {

	var totalIn btcutil.Amount
	for i, txIn := range tx.TxIn {
		prevOut := fetcher.FetchPrevOutput(txIn.PreviousOutPoint)
		if prevOut == nil {
			return nil, fmt.Errorf("%w: input %d (%v)",
				ErrMissingPrevOutput, i, txIn.PreviousOutPoint)
		}

		totalIn += btcutil.Amount(prevOut.Value)
	}

	var totalOut btcutil.Amount
	for _, txOut := range tx.TxOut {
		totalOut += btcutil.Amount(txOut.Value)
	}

	fee := totalIn - totalOut
	if fee < 0 {
		return nil, fmt.Errorf("%w: in=%v, out=%v", ErrNegativeFee,
			totalIn, totalOut)
	}

	weight := btcunit.TxWeight(tx)
	vsize := weight.ToVByte()

	log.Tracef("Tx %v: fee=%v, vsize=%v", tx.TxHash(), fee, vsize)

	return &FeeInfo{
		Fee:     fee,
		Weight:  weight,
		VSize:   vsize,
		FeeRate: btcunit.CalcSatPerVByte(fee, vsize),
	}, nil
}
