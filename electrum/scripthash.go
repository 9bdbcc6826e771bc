// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptHash identifies an output script towards an Electrum server. It is
// the SHA-256 digest of the script.
type ScriptHash [sha256.Size]byte

// NewScriptHash returns the script hash of an output script.
func NewScriptHash(pkScript []byte) ScriptHash {
	return sha256.Sum256(pkScript)
}

// ScriptHashFromAddress returns the script hash of the output script paying
// to the address.
func ScriptHashFromAddress(addr btcutil.Address) (ScriptHash, error) {
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return ScriptHash{}, fmt.Errorf("unable to create script for "+
			"%v: %w", addr, err)
	}

	return NewScriptHash(pkScript), nil
}

// String returns the script hash as sent on the wire: hex encoded with the
// bytes reversed.
func (s ScriptHash) String() string {
	return chainhash.Hash(s).String()
}
