// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txutil

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// MessageDigest returns the digest a message is signed over. The message goes
// through two rounds of SHA-256 so the signature scheme always receives a
// fixed-length input.
func MessageDigest(msg []byte) []byte {
	return chainhash.DoubleHashB(msg)
}
