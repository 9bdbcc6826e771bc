// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcelectrum/txutil"
)

// DerivationPath is a list of BIP-32 child indices. Hardened indices carry
// the hdkeychain.HardenedKeyStart offset.
type DerivationPath []uint32

// DefaultPath returns the first receive path of the first account for the
// given config: m/<standard>'/<coin type>'/0'/0/0.
func DefaultPath(cfg txutil.Config) DerivationPath {
	return DerivationPath{
		uint32(cfg.Standard) + hdkeychain.HardenedKeyStart,
		cfg.CoinType() + hdkeychain.HardenedKeyStart,
		hdkeychain.HardenedKeyStart,
		0,
		0,
	}
}

// ParsePath parses an absolute derivation path such as m/84'/0'/0'/0/5.
// Both ' and h mark hardened indices.
func ParsePath(path string) (DerivationPath, error) {
	path = strings.TrimSpace(path)
	if path != "m" && !strings.HasPrefix(path, "m/") {
		return nil, fmt.Errorf("%w: %q must start with m/",
			ErrInvalidPath, path)
	}

	return parseIndices(strings.TrimPrefix(path, "m"), path)
}

// ParseRelativePath parses a path relative to an existing key, such as 0/5
// or /1'/2.
func ParseRelativePath(path string) (DerivationPath, error) {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "m") {
		return nil, fmt.Errorf("%w: %q is not relative",
			ErrInvalidPath, path)
	}

	rel, err := parseIndices(path, path)
	if err != nil {
		return nil, err
	}

	if len(rel) == 0 {
		return nil, fmt.Errorf("%w: empty relative path", ErrInvalidPath)
	}

	return rel, nil
}

// parseIndices parses the slash separated indices of path. orig is only used
// in error messages.
func parseIndices(path, orig string) (DerivationPath, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return DerivationPath{}, nil
	}

	parts := strings.Split(path, "/")
	indices := make(DerivationPath, 0, len(parts))
	for _, part := range parts {
		hardened := false
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") {
			hardened = true
			part = part[:len(part)-1]
		}

		idx, err := strconv.ParseUint(part, 10, 32)
		if err != nil || idx >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: bad index %q in %q",
				ErrInvalidPath, part, orig)
		}

		child := uint32(idx)
		if hardened {
			child += hdkeychain.HardenedKeyStart
		}

		indices = append(indices, child)
	}

	return indices, nil
}

// Append returns a new path with rel appended to p.
func (p DerivationPath) Append(rel DerivationPath) DerivationPath {
	out := make(DerivationPath, 0, len(p)+len(rel))
	out = append(out, p...)

	return append(out, rel...)
}

// Index returns the last child index without the hardened offset, or zero
// for the master path.
func (p DerivationPath) Index() uint32 {
	if len(p) == 0 {
		return 0
	}

	last := p[len(p)-1]
	if last >= hdkeychain.HardenedKeyStart {
		last -= hdkeychain.HardenedKeyStart
	}

	return last
}

// String formats the path using ' for hardened indices.
func (p DerivationPath) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, child := range p {
		b.WriteString("/")
		if child >= hdkeychain.HardenedKeyStart {
			b.WriteString(strconv.FormatUint(
				uint64(child-hdkeychain.HardenedKeyStart), 10,
			))
			b.WriteString("'")

			continue
		}

		b.WriteString(strconv.FormatUint(uint64(child), 10))
	}

	return b.String()
}

// pathOrDefault parses path, or returns the default path of cfg when path is
// empty.
func pathOrDefault(path string, cfg txutil.Config) (DerivationPath, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPath(cfg), nil
	}

	return ParsePath(path)
}
