// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txutil

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrInputIndexOutOfRange is returned when an input index does not
	// exist in the PSBT.
	ErrInputIndexOutOfRange = errors.New("input index out of range")

	// ErrMissingPrevOutput is returned when a PSBT input carries neither a
	// witness UTXO nor the full previous transaction.
	ErrMissingPrevOutput = errors.New("previous output unknown")

	// ErrPrevOutMismatch is returned when the previous output data of a PSBT
	// input is inconsistent with the outpoint it spends.
	ErrPrevOutMismatch = errors.New("previous output mismatch")
)

// Ownership is the result of matching a PSBT input against a signer's script.
type Ownership struct {
	// Input is the PSBT input. It points into the packet, so changes made
	// through it are visible in the packet.
	Input *psbt.PInput

	// PrevOut is the output the input spends.
	PrevOut *wire.TxOut

	// IsOurs is true if the previous output script equals the signer's
	// script byte for byte.
	IsOurs bool
}

// checkInputIndex makes sure idx addresses an input of both the unsigned tx
// and the PSBT input metadata.
func checkInputIndex(packet *psbt.Packet, idx int) error {
	if packet == nil || packet.UnsignedTx == nil {
		return fmt.Errorf("%w: nil packet", ErrInputIndexOutOfRange)
	}

	if idx < 0 || idx >= len(packet.UnsignedTx.TxIn) ||
		idx >= len(packet.Inputs) {

		return fmt.Errorf("%w: %d", ErrInputIndexOutOfRange, idx)
	}

	return nil
}

// ResolvePrevOutput returns the output spent by the input at idx. The full
// previous transaction is preferred over the witness UTXO, since only the
// former commits to the outpoint it is referenced by. If both are present
// they must agree.
func ResolvePrevOutput(packet *psbt.Packet, idx int) (*wire.TxOut, error) {
	if err := checkInputIndex(packet, idx); err != nil {
		return nil, err
	}

	in := &packet.Inputs[idx]
	outPoint := packet.UnsignedTx.TxIn[idx].PreviousOutPoint

	if in.NonWitnessUtxo != nil {
		if in.NonWitnessUtxo.TxHash() != outPoint.Hash {
			return nil, fmt.Errorf("%w: input %d spends %v but "+
				"carries tx %v", ErrPrevOutMismatch, idx,
				outPoint.Hash, in.NonWitnessUtxo.TxHash())
		}

		if int(outPoint.Index) >= len(in.NonWitnessUtxo.TxOut) {
			return nil, fmt.Errorf("%w: input %d spends output %d "+
				"of a tx with %d outputs", ErrPrevOutMismatch,
				idx, outPoint.Index,
				len(in.NonWitnessUtxo.TxOut))
		}

		prevOut := in.NonWitnessUtxo.TxOut[outPoint.Index]
		if in.WitnessUtxo != nil &&
			!psbt.TxOutsEqual(in.WitnessUtxo, prevOut) {

			return nil, fmt.Errorf("%w: input %d witness utxo "+
				"differs from previous tx output",
				ErrPrevOutMismatch, idx)
		}

		return prevOut, nil
	}

	if in.WitnessUtxo != nil {
		return in.WitnessUtxo, nil
	}

	return nil, fmt.Errorf("%w: input %d (%v)", ErrMissingPrevOutput, idx,
		outPoint)
}

// DetectInputOwnership resolves the previous output of the input at idx and
// reports whether its script equals myScript. Ownership is decided on script
// bytes only, never on encoded addresses.
func DetectInputOwnership(packet *psbt.Packet, idx int,
	myScript []byte) (*Ownership, error) {

	prevOut, err := ResolvePrevOutput(packet, idx)
	if err != nil {
		return nil, err
	}

	return &Ownership{
		Input:   &packet.Inputs[idx],
		PrevOut: prevOut,
		IsOurs: len(myScript) > 0 &&
			bytes.Equal(prevOut.PkScript, myScript),
	}, nil
}

// MentionsScript reports whether any previous output data of the input at
// idx pays to myScript, whether or not that data is consistent. It lets a
// caller tell an inconsistent input it may own from a foreign one.
func MentionsScript(packet *psbt.Packet, idx int, myScript []byte) bool {
	if len(myScript) == 0 || checkInputIndex(packet, idx) != nil {
		return false
	}

	in := &packet.Inputs[idx]
	if in.WitnessUtxo != nil &&
		bytes.Equal(in.WitnessUtxo.PkScript, myScript) {

		return true
	}

	if in.NonWitnessUtxo == nil {
		return false
	}

	outIdx := packet.UnsignedTx.TxIn[idx].PreviousOutPoint.Index
	if int(outIdx) >= len(in.NonWitnessUtxo.TxOut) {
		return false
	}

	return bytes.Equal(in.NonWitnessUtxo.TxOut[outIdx].PkScript, myScript)
}

// PrevOutputFetcher returns a txscript.PrevOutputFetcher built from the UTXO
// information in a PSBT packet. Inputs without usable UTXO information are
// left out.
func PrevOutputFetcher(packet *psbt.Packet) *txscript.MultiPrevOutFetcher {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for idx, txIn := range packet.UnsignedTx.TxIn {
		prevOut, err := ResolvePrevOutput(packet, idx)
		if err != nil {
			log.Debugf("Skipping input %d in prev output "+
				"fetcher: %v", idx, err)

			continue
		}

		fetcher.AddPrevOut(txIn.PreviousOutPoint, prevOut)
	}

	return fetcher
}
