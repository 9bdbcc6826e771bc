// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txutil

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

var (
	// ErrUnsupportedBip is returned when a wallet config names a derivation
	// standard other than BIP-44 or BIP-84.
	ErrUnsupportedBip = errors.New("unsupported bip")

	// ErrUnsupportedNetwork is returned when a wallet config names an
	// unknown network.
	ErrUnsupportedNetwork = errors.New("unsupported network")
)

// Standard is an address derivation standard. It determines both the
// derivation purpose and the output script type of a wallet.
type Standard uint32

const (
	// StandardBIP44 derives legacy pay-to-pubkey-hash outputs.
	StandardBIP44 Standard = 44

	// StandardBIP84 derives native segwit v0 pay-to-witness-pubkey-hash
	// outputs.
	StandardBIP84 Standard = 84

	// DefaultStandard is used when a config leaves the standard unset.
	DefaultStandard = StandardBIP84
)

// String returns the string representation of a standard.
func (s Standard) String() string {
	return fmt.Sprintf("bip%d", uint32(s))
}

// IsWitness returns true if outputs of this standard are spent with witness
// data.
func (s Standard) IsWitness() bool {
	return s == StandardBIP84
}

// Network identifies the bitcoin network a wallet operates on.
type Network string

const (
	// NetworkMainnet is the bitcoin main network.
	NetworkMainnet Network = "mainnet"

	// NetworkTestnet is the bitcoin test network (version 3).
	NetworkTestnet Network = "testnet"

	// NetworkRegtest is the bitcoin regression test network.
	NetworkRegtest Network = "regtest"

	// DefaultNetwork is used when a config leaves the network unset.
	DefaultNetwork = NetworkMainnet
)

// Params returns the chain parameters of the network.
func (n Network) Params() (*chaincfg.Params, error) {
	switch n {
	case NetworkMainnet:
		return &chaincfg.MainNetParams, nil

	case NetworkTestnet:
		return &chaincfg.TestNet3Params, nil

	case NetworkRegtest:
		return &chaincfg.RegressionNetParams, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, string(n))
	}
}

// Config is the immutable wallet configuration of a signer. All fields are
// mandatory once the config went through NormalizeConfig.
type Config struct {
	// Standard is the address derivation standard.
	Standard Standard

	// Network is the network addresses are encoded for.
	Network Network
}

// String returns a summary of the config.
func (c Config) String() string {
	return fmt.Sprintf("%v/%v", c.Standard, c.Network)
}

// ChainParams returns the chain parameters of the config's network. The
// config must have been normalized.
func (c Config) ChainParams() *chaincfg.Params {
	params, err := c.Network.Params()
	if err != nil {
		// A normalized config always carries a known network.
		panic(err)
	}

	return params
}

// CoinType returns the BIP-44 coin type of the config's network: 0 for
// mainnet and 1 for every test network.
func (c Config) CoinType() uint32 {
	if c.Network == NetworkMainnet {
		return 0
	}

	return 1
}

// NormalizeConfig applies the defaults (BIP-84 on mainnet) to the unset
// fields of the given config and validates the result. Any standard outside
// {44, 84} fails with ErrUnsupportedBip.
func NormalizeConfig(cfg Config) (Config, error) {
	if cfg.Standard == 0 {
		cfg.Standard = DefaultStandard
	}

	if cfg.Network == "" {
		cfg.Network = DefaultNetwork
	}

	switch cfg.Standard {
	case StandardBIP44, StandardBIP84:

	default:
		return Config{}, fmt.Errorf("%w: %d", ErrUnsupportedBip,
			uint32(cfg.Standard))
	}

	if _, err := cfg.Network.Params(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
