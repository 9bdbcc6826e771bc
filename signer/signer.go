// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package signer provides a uniform signing interface over three custody
// models: an HD seed, a single raw private key and an external hardware
// device. Every signer identifies the inputs it owns in a PSBT, signs only
// those and never finalizes the packet.
package signer

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcelectrum/txutil"
)

// Kind identifies the custody model behind a signer.
type Kind uint8

const (
	// KindSeed is a signer backed by an HD seed.
	KindSeed Kind = iota

	// KindPrivateKey is a signer backed by a single private key.
	KindPrivateKey

	// KindHardware is a signer backed by an external device.
	KindHardware
)

// String returns the string representation of a signer kind.
func (k Kind) String() string {
	switch k {
	case KindSeed:
		return "seed"

	case KindPrivateKey:
		return "privkey"

	case KindHardware:
		return "hardware"

	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// SignPsbtResult is the outcome of signing a PSBT.
type SignPsbtResult struct {
	// Packet is the packet that was signed. It is the same packet that
	// was passed in, updated in place.
	Packet *psbt.Packet

	// SignedInputs lists the indices of the inputs a partial signature
	// was added to, in ascending order.
	SignedInputs []int
}

// Signer is the capability shared by all custody models.
type Signer interface {
	// Kind returns the custody model of the signer.
	Kind() Kind

	// Config returns the wallet config the signer was created with.
	Config() txutil.Config

	// IsActive returns false once the signer was disposed.
	IsActive() bool

	// Address returns the encoded payment address of the signer's key.
	Address(ctx context.Context) (string, error)

	// SignMessage signs the double SHA-256 digest of msg and returns a
	// 65-byte compact recoverable signature.
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)

	// SignPsbt adds a partial signature to every input of the packet
	// spending the signer's payment script. Foreign inputs are left
	// untouched and the packet is never finalized.
	SignPsbt(ctx context.Context, packet *psbt.Packet) (*SignPsbtResult,
		error)

	// Dispose releases the signer's key material. It is safe to call
	// more than once. Every later operation fails with
	// ErrDisposedSigner.
	Dispose()
}

// HDSigner is implemented by signers that sit on a hierarchical
// deterministic key tree.
type HDSigner interface {
	Signer

	// Derive returns a new signer for the given path relative to this
	// signer's path.
	Derive(ctx context.Context, relPath string) (HDSigner, error)

	// ExtendedPublicKey returns the serialized extended public key at the
	// signer's path.
	ExtendedPublicKey(ctx context.Context) (string, error)

	// Path returns the absolute derivation path of the signer.
	Path() string

	// Index returns the last child index of the signer's path without the
	// hardened offset.
	Index() uint32
}

// Compile-time checks of the capabilities of each signer.
var (
	_ HDSigner = (*SeedSigner)(nil)
	_ HDSigner = (*HardwareSigner)(nil)
	_ Signer   = (*PrivateKeySigner)(nil)
)

// asHD returns s as an HDSigner or ErrUnsupportedOperation.
func asHD(s Signer, op string) (HDSigner, error) {
	hd, ok := s.(HDSigner)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %v signer",
			ErrUnsupportedOperation, op, s.Kind())
	}

	return hd, nil
}

// Derive derives a child signer from s. It fails with
// ErrUnsupportedOperation if s is not an HD signer.
func Derive(ctx context.Context, s Signer, relPath string) (HDSigner, error) {
	hd, err := asHD(s, "derive")
	if err != nil {
		return nil, err
	}

	return hd.Derive(ctx, relPath)
}

// ExtendedPublicKey returns the extended public key of s. It fails with
// ErrUnsupportedOperation if s is not an HD signer.
func ExtendedPublicKey(ctx context.Context, s Signer) (string, error) {
	hd, err := asHD(s, "extended public key")
	if err != nil {
		return "", err
	}

	return hd.ExtendedPublicKey(ctx)
}

// PathOf returns the derivation path of s. It fails with
// ErrUnsupportedOperation if s is not an HD signer.
func PathOf(s Signer) (string, error) {
	hd, err := asHD(s, "path")
	if err != nil {
		return "", err
	}

	return hd.Path(), nil
}

// IndexOf returns the child index of s. It fails with
// ErrUnsupportedOperation if s is not an HD signer.
func IndexOf(s Signer) (uint32, error) {
	hd, err := asHD(s, "index")
	if err != nil {
		return 0, err
	}

	return hd.Index(), nil
}
