// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcelectrum/txutil"
	"github.com/davecgh/go-spew/spew"
)

// validatePacket makes sure the packet can be walked input by input.
func validatePacket(packet *psbt.Packet) error {
	switch {
	case packet == nil || packet.UnsignedTx == nil:
		return fmt.Errorf("%w: nil packet", ErrInvalidPacket)

	case len(packet.UnsignedTx.TxIn) == 0:
		return fmt.Errorf("%w: no inputs", ErrInvalidPacket)

	case len(packet.Inputs) != len(packet.UnsignedTx.TxIn):
		return fmt.Errorf("%w: %d psbt inputs for %d tx inputs",
			ErrInvalidPacket, len(packet.Inputs),
			len(packet.UnsignedTx.TxIn))
	}

	return nil
}

// ownedInput is an input of a packet that spends the signer's script.
type ownedInput struct {
	idx     int
	prevOut *wire.TxOut
}

// findOwnedInputs returns the inputs of the packet spending the payment
// script of pubKey. Inputs without previous output data are skipped. The
// witness UTXO is attached to owned inputs that lack it.
func findOwnedInputs(packet *psbt.Packet, cfg txutil.Config,
	pubKey *btcec.PublicKey) ([]ownedInput, error) {

	if err := validatePacket(packet); err != nil {
		return nil, err
	}

	myScript, err := txutil.BuildPaymentScript(
		cfg.Standard, pubKey, cfg.ChainParams(),
	)
	if err != nil {
		return nil, err
	}

	var owned []ownedInput
	for idx := range packet.Inputs {
		own, err := txutil.DetectInputOwnership(packet, idx, myScript)
		switch {
		case errors.Is(err, txutil.ErrMissingPrevOutput):
			log.Debugf("Skipping input %d: %v", idx, err)
			continue

		// Inconsistent data only fails the packet when it may
		// describe one of our outputs.
		case errors.Is(err, txutil.ErrPrevOutMismatch) &&
			!txutil.MentionsScript(packet, idx, myScript):

			log.Debugf("Skipping foreign input %d: %v", idx, err)
			continue

		case err != nil:
			return nil, err
		}

		if !own.IsOurs {
			continue
		}

		added, err := txutil.EnsureWitnessUtxo(
			packet, idx, cfg.Standard, own.PrevOut,
		)
		if err != nil {
			return nil, err
		}
		if added {
			log.Debugf("Attached witness utxo to input %d", idx)
		}

		owned = append(owned, ownedInput{
			idx:     idx,
			prevOut: own.PrevOut,
		})
	}

	return owned, nil
}

// sigHashFetcher returns a prev output fetcher covering every input of the
// packet. Inputs without UTXO data get an empty output so the sighash
// midstate can be computed; none of them is signed.
func sigHashFetcher(packet *psbt.Packet) *txscript.MultiPrevOutFetcher {
	fetcher := txutil.PrevOutputFetcher(packet)
	for _, txIn := range packet.UnsignedTx.TxIn {
		op := txIn.PreviousOutPoint
		if fetcher.FetchPrevOutput(op) == nil {
			fetcher.AddPrevOut(op, &wire.TxOut{})
		}
	}

	return fetcher
}

// inputHashType returns the sighash type requested by the input, defaulting
// to SIGHASH_ALL.
func inputHashType(in *psbt.PInput) txscript.SigHashType {
	if in.SighashType == txscript.SigHashDefault {
		return txscript.SigHashAll
	}

	return in.SighashType
}

// addPartialSig adds sig for pubKey to the input, replacing an earlier
// signature of the same key.
func addPartialSig(in *psbt.PInput, pubKey, sig []byte) {
	for _, ps := range in.PartialSigs {
		if bytes.Equal(ps.PubKey, pubKey) {
			ps.Signature = sig
			return
		}
	}

	in.PartialSigs = append(in.PartialSigs, &psbt.PartialSig{
		PubKey:    pubKey,
		Signature: sig,
	})
}

// signPacket adds a partial signature made with priv to every input of the
// packet spending the signer's script and returns their indices.
func signPacket(packet *psbt.Packet, cfg txutil.Config,
	priv *btcec.PrivateKey) ([]int, error) {

	pubKey := priv.PubKey()
	owned, err := findOwnedInputs(packet, cfg, pubKey)
	if err != nil {
		return nil, err
	}

	if len(owned) == 0 {
		log.Debugf("No inputs of %v are ours",
			packet.UnsignedTx.TxHash())

		return nil, nil
	}

	tx := packet.UnsignedTx
	sigHashes := txscript.NewTxSigHashes(tx, sigHashFetcher(packet))
	pubBytes := pubKey.SerializeCompressed()

	signed := make([]int, 0, len(owned))
	for _, own := range owned {
		in := &packet.Inputs[own.idx]
		hashType := inputHashType(in)

		var sig []byte
		switch cfg.Standard {
		case txutil.StandardBIP84:
			sig, err = txscript.RawTxInWitnessSignature(
				tx, sigHashes, own.idx, own.prevOut.Value,
				own.prevOut.PkScript, hashType, priv,
			)

		case txutil.StandardBIP44:
			sig, err = txscript.RawTxInSignature(
				tx, own.idx, own.prevOut.PkScript, hashType,
				priv,
			)

		default:
			err = fmt.Errorf("%w: %v", txutil.ErrUnsupportedStandard,
				cfg.Standard)
		}
		if err != nil {
			return nil, fmt.Errorf("sign input %d: %w", own.idx, err)
		}

		addPartialSig(in, pubBytes, sig)
		signed = append(signed, own.idx)

		log.Tracef("Signed input %d: %v", own.idx,
			newLogClosure(func() string {
				return spew.Sdump(in)
			}))
	}

	log.Debugf("Signed %d of %d inputs of %v", len(signed),
		len(packet.Inputs), tx.TxHash())

	return signed, nil
}
