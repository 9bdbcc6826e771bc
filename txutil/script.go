// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txutil

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

var (
	// ErrUnsupportedStandard is returned when a payment script is requested
	// for a standard that has no single-key script type.
	ErrUnsupportedStandard = errors.New("unsupported address standard")

	// ErrNilPubKey is returned when no public key is given to build a
	// payment script from.
	ErrNilPubKey = errors.New("nil public key")
)

// PaymentAddress returns the address paying to the given public key under the
// given standard: a P2PKH address for BIP-44 and a P2WPKH address for BIP-84.
func PaymentAddress(standard Standard, pubKey *btcec.PublicKey,
	params *chaincfg.Params) (btcutil.Address, error) {

	if pubKey == nil {
		return nil, ErrNilPubKey
	}

	pkHash := btcutil.Hash160(pubKey.SerializeCompressed())

	switch standard {
	case StandardBIP44:
		return btcutil.NewAddressPubKeyHash(pkHash, params)

	case StandardBIP84:
		return btcutil.NewAddressWitnessPubKeyHash(pkHash, params)

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedStandard, standard)
	}
}

// BuildPaymentScript returns the output script a signer with the given public
// key expects its coins to be locked to. The result is deterministic for a
// given standard and key.
func BuildPaymentScript(standard Standard, pubKey *btcec.PublicKey,
	params *chaincfg.Params) ([]byte, error) {

	addr, err := PaymentAddress(standard, pubKey, params)
	if err != nil {
		return nil, err
	}

	return txscript.PayToAddrScript(addr)
}
