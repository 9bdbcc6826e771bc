package electrum

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// TestScriptHash checks the script hash of the genesis block address
// against the value documented by the Electrum protocol.
func TestScriptHash(t *testing.T) {
	t.Parallel()

	const expected = "8b01df4e368ea28f8dc0423bcf7a4923e3a12d307c875e47" +
		"a0cfbf90b5c39161"

	pkScript, err := hex.DecodeString(
		"76a91462e907b15cbf27d5425399ebf6f0fb50ebb88f1888ac",
	)
	require.NoError(t, err)
	require.Equal(t, expected, NewScriptHash(pkScript).String())

	addr, err := btcutil.DecodeAddress(
		"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", &chaincfg.MainNetParams,
	)
	require.NoError(t, err)

	fromAddr, err := ScriptHashFromAddress(addr)
	require.NoError(t, err)
	require.Equal(t, expected, fromAddr.String())
}
