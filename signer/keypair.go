// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcelectrum/txutil"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// KeyPair is a secp256k1 key pair owned by exactly one signer.
type KeyPair struct {
	pub  *btcec.PublicKey
	priv *btcec.PrivateKey
}

// newKeyPair wraps priv into a key pair.
func newKeyPair(priv *btcec.PrivateKey) *KeyPair {
	return &KeyPair{
		pub:  priv.PubKey(),
		priv: priv,
	}
}

// PubKey returns the public key of the pair.
func (k *KeyPair) PubKey() *btcec.PublicKey {
	return k.pub
}

// Zero overwrites the private scalar. The pair can no longer sign
// afterwards.
func (k *KeyPair) Zero() {
	if k.priv != nil {
		k.priv.Zero()
		k.priv = nil
	}
}

// keySigner implements the Signer operations shared by the signers that hold
// their key in memory.
type keySigner struct {
	kind Kind
	cfg  txutil.Config

	// onDispose wipes additional key material. It runs under mtx.
	onDispose func()

	// mtx guards the fields below.
	mtx      sync.RWMutex
	keys     *KeyPair
	disposed bool
}

// newKeySigner creates the shared part of an in-memory signer.
func newKeySigner(kind Kind, cfg txutil.Config,
	priv *btcec.PrivateKey) *keySigner {

	return &keySigner{
		kind: kind,
		cfg:  cfg,
		keys: newKeyPair(priv),
	}
}

// withKeys runs f with the key pair held under the read lock, or returns
// ErrDisposedSigner.
func (k *keySigner) withKeys(f func(*KeyPair) error) error {
	k.mtx.RLock()
	defer k.mtx.RUnlock()

	if k.disposed {
		return ErrDisposedSigner
	}

	return f(k.keys)
}

// Kind returns the custody model of the signer.
//
// NOTE: This is part of the Signer interface.
func (k *keySigner) Kind() Kind {
	return k.kind
}

// Config returns the wallet config of the signer.
//
// NOTE: This is part of the Signer interface.
func (k *keySigner) Config() txutil.Config {
	return k.cfg
}

// IsActive returns false once the signer was disposed.
//
// NOTE: This is part of the Signer interface.
func (k *keySigner) IsActive() bool {
	k.mtx.RLock()
	defer k.mtx.RUnlock()

	return !k.disposed
}

// Address returns the payment address of the signer's key.
//
// NOTE: This is part of the Signer interface.
func (k *keySigner) Address(_ context.Context) (string, error) {
	var addr string
	err := k.withKeys(func(keys *KeyPair) error {
		a, err := txutil.PaymentAddress(
			k.cfg.Standard, keys.pub, k.cfg.ChainParams(),
		)
		if err != nil {
			return err
		}

		addr = a.EncodeAddress()

		return nil
	})

	return addr, err
}

// SignMessage returns a compact recoverable signature over the double
// SHA-256 digest of msg.
//
// NOTE: This is part of the Signer interface.
func (k *keySigner) SignMessage(_ context.Context, msg []byte) ([]byte,
	error) {

	var sig []byte
	err := k.withKeys(func(keys *KeyPair) error {
		sig = secpecdsa.SignCompact(
			keys.priv, txutil.MessageDigest(msg), true,
		)

		return nil
	})

	return sig, err
}

// SignPsbt signs the inputs of the packet that spend the signer's payment
// script.
//
// NOTE: This is part of the Signer interface.
func (k *keySigner) SignPsbt(_ context.Context, packet *psbt.Packet) (
	*SignPsbtResult, error) {

	var signed []int
	err := k.withKeys(func(keys *KeyPair) error {
		var err error
		signed, err = signPacket(packet, k.cfg, keys.priv)

		return err
	})
	if err != nil {
		return nil, err
	}

	return &SignPsbtResult{
		Packet:       packet,
		SignedInputs: signed,
	}, nil
}

// Dispose zeroes the private key. It is safe to call more than once.
//
// NOTE: This is part of the Signer interface.
func (k *keySigner) Dispose() {
	k.mtx.Lock()
	defer k.mtx.Unlock()

	if k.disposed {
		return
	}

	k.keys.Zero()
	if k.onDispose != nil {
		k.onDispose()
	}
	k.disposed = true

	log.Debugf("Disposed %v signer", k.kind)
}
