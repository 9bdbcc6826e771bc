// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcelectrum/txutil"
	"github.com/tyler-smith/go-bip39"
)

var (
	// zpubVersion is the SLIP-132 version of mainnet BIP-84 extended
	// public keys.
	zpubVersion = []byte{0x04, 0xb2, 0x47, 0x46}

	// vpubVersion is the SLIP-132 version of testnet BIP-84 extended
	// public keys.
	vpubVersion = []byte{0x04, 0x5f, 0x1c, 0xf6}
)

// SeedSigner is a signer backed by a BIP-32 seed. It holds the key at its
// derivation path and a private copy of the seed to derive children from.
type SeedSigner struct {
	*keySigner

	path DerivationPath

	// seed and key are guarded by keySigner.mtx.
	seed []byte
	key  *hdkeychain.ExtendedKey
}

// NewSeedSigner creates a signer for the key at path below the master key of
// seed. An empty path selects the default path of the config. The seed is
// copied.
func NewSeedSigner(seed []byte, cfg txutil.Config,
	path string) (*SeedSigner, error) {

	cfg, err := txutil.NormalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	derivPath, err := pathOrDefault(path, cfg)
	if err != nil {
		return nil, err
	}

	key, err := deriveFromSeed(seed, cfg.ChainParams(), derivPath)
	if err != nil {
		return nil, err
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		key.Zero()
		return nil, fmt.Errorf("extract private key: %w", err)
	}

	s := &SeedSigner{
		keySigner: newKeySigner(KindSeed, cfg, priv),
		path:      derivPath,
		seed:      append([]byte(nil), seed...),
		key:       key,
	}
	s.onDispose = func() {
		clear(s.seed)
		s.seed = nil
		s.key.Zero()
	}

	log.Debugf("Created seed signer at %v (%v)", derivPath, cfg)

	return s, nil
}

// NewSeedSignerFromMnemonic creates a seed signer from a BIP-39 mnemonic and
// an optional passphrase.
func NewSeedSignerFromMnemonic(mnemonic, passphrase string, cfg txutil.Config,
	path string) (*SeedSigner, error) {

	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	defer clear(seed)

	return NewSeedSigner(seed, cfg, path)
}

// deriveFromSeed derives the extended private key at path below the master
// key of seed. Intermediate keys are zeroed.
func deriveFromSeed(seed []byte, params *chaincfg.Params,
	path DerivationPath) (*hdkeychain.ExtendedKey, error) {

	key, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}

	for _, child := range path {
		next, err := key.Derive(child)
		key.Zero()
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", child, err)
		}

		key = next
	}

	return key, nil
}

// Derive returns a new seed signer at relPath below this signer's path. The
// child owns its own copy of the seed.
//
// NOTE: This is part of the HDSigner interface.
func (s *SeedSigner) Derive(_ context.Context, relPath string) (HDSigner,
	error) {

	rel, err := ParseRelativePath(relPath)
	if err != nil {
		return nil, err
	}

	var child *SeedSigner
	err = s.withKeys(func(*KeyPair) error {
		var err error
		child, err = NewSeedSigner(
			s.seed, s.cfg, s.path.Append(rel).String(),
		)

		return err
	})
	if err != nil {
		return nil, err
	}

	return child, nil
}

// ExtendedPublicKey returns the neutered extended key at the signer's path.
// BIP-84 keys are serialized with their SLIP-132 version (zpub/vpub).
//
// NOTE: This is part of the HDSigner interface.
func (s *SeedSigner) ExtendedPublicKey(_ context.Context) (string, error) {
	var xpub string
	err := s.withKeys(func(*KeyPair) error {
		pub, err := s.key.Neuter()
		if err != nil {
			return err
		}

		if s.cfg.Standard == txutil.StandardBIP84 {
			version := zpubVersion
			if s.cfg.Network != txutil.NetworkMainnet {
				version = vpubVersion
			}

			pub, err = pub.CloneWithVersion(version)
			if err != nil {
				return err
			}
		}

		xpub = pub.String()

		return nil
	})

	return xpub, err
}

// Path returns the absolute derivation path of the signer.
//
// NOTE: This is part of the HDSigner interface.
func (s *SeedSigner) Path() string {
	return s.path.String()
}

// Index returns the last child index of the signer's path.
//
// NOTE: This is part of the HDSigner interface.
func (s *SeedSigner) Index() uint32 {
	return s.path.Index()
}
