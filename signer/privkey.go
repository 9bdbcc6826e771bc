// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcelectrum/txutil"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PrivateKeySigner is a signer backed by a single private key. It has no
// derivation capability.
type PrivateKeySigner struct {
	*keySigner
}

// NewPrivateKeySigner creates a signer from a 32-byte big-endian private
// scalar. Zero and out-of-range scalars are rejected.
func NewPrivateKeySigner(raw []byte,
	cfg txutil.Config) (*PrivateKeySigner, error) {

	cfg, err := txutil.NormalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	if len(raw) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: got %d bytes, want %d",
			ErrInvalidPrivateKey, len(raw), btcec.PrivKeyBytesLen)
	}

	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(raw)
	defer scalar.Zero()

	if overflow {
		return nil, fmt.Errorf("%w: scalar exceeds group order",
			ErrInvalidPrivateKey)
	}
	if scalar.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidPrivateKey)
	}

	priv := secp256k1.NewPrivateKey(&scalar)

	return &PrivateKeySigner{
		keySigner: newKeySigner(KindPrivateKey, cfg, priv),
	}, nil
}

// NewPrivateKeySignerFromWIF creates a signer from a WIF encoded key. The
// key must be compressed and encoded for the config's network.
func NewPrivateKeySignerFromWIF(encoded string,
	cfg txutil.Config) (*PrivateKeySigner, error) {

	cfg, err := txutil.NormalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	wif, err := btcutil.DecodeWIF(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	if !wif.IsForNet(cfg.ChainParams()) {
		return nil, fmt.Errorf("%w: want %v", ErrWrongNetwork,
			cfg.Network)
	}

	if !wif.CompressPubKey {
		return nil, ErrUncompressedKey
	}

	return &PrivateKeySigner{
		keySigner: newKeySigner(KindPrivateKey, cfg, wif.PrivKey),
	}, nil
}
