package signer

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcelectrum/txutil"
	"github.com/stretchr/testify/require"
)

const (
	// testMnemonic is the mnemonic of the BIP-84 and BIP-44 test vectors.
	testMnemonic = "abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon about"

	testPrivKeyHex = "22a47fa09a223f2aa079edf85a7c2d4f8720ee63e502ee" +
		"2869afab7de234b80c"
)

var (
	mainnetBIP84 = txutil.Config{
		Standard: txutil.StandardBIP84,
		Network:  txutil.NetworkMainnet,
	}

	mainnetBIP44 = txutil.Config{
		Standard: txutil.StandardBIP44,
		Network:  txutil.NetworkMainnet,
	}

	// foreignScript is a P2WPKH script paying to a hash no test key owns.
	foreignScript = append([]byte{0x00, 0x14}, make([]byte, 20)...)
)

// testKeyBytes returns the raw private key used throughout the tests.
func testKeyBytes(t *testing.T) []byte {
	t.Helper()

	raw, err := hex.DecodeString(testPrivKeyHex)
	require.NoError(t, err)

	return raw
}

// testPrivKey returns the private key behind testKeyBytes.
func testPrivKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()

	priv, _ := btcec.PrivKeyFromBytes(testKeyBytes(t))

	return priv
}

// paymentScript returns the payment script of pubKey under cfg.
func paymentScript(t *testing.T, cfg txutil.Config,
	pubKey *btcec.PublicKey) []byte {

	t.Helper()

	script, err := txutil.BuildPaymentScript(
		cfg.Standard, pubKey, cfg.ChainParams(),
	)
	require.NoError(t, err)

	return script
}

// fundingTx returns a tx whose single output pays value to pkScript. The
// salt keeps txids of equal outputs apart.
func fundingTx(pkScript []byte, value int64, salt byte) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{
		Hash: chainhash.Hash{salt}, Index: 0,
	}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(value, pkScript))

	return tx
}

// newPacket returns a PSBT spending output 0 of every given funding tx
// without any UTXO information attached.
func newPacket(t *testing.T, funding ...*wire.MsgTx) *psbt.Packet {
	t.Helper()

	outPoints := make([]*wire.OutPoint, 0, len(funding))
	sequences := make([]uint32, 0, len(funding))
	for _, tx := range funding {
		outPoints = append(outPoints, &wire.OutPoint{
			Hash: tx.TxHash(), Index: 0,
		})
		sequences = append(sequences, wire.MaxTxInSequenceNum)
	}

	packet, err := psbt.New(
		outPoints, []*wire.TxOut{wire.NewTxOut(1000, foreignScript)},
		2, 0, sequences,
	)
	require.NoError(t, err)

	return packet
}

// verifyInput runs the script engine on input idx of tx against prevOut.
func verifyInput(t *testing.T, tx *wire.MsgTx, idx int, prevOut *wire.TxOut,
	fetcher txscript.PrevOutputFetcher) {

	t.Helper()

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	vm, err := txscript.NewEngine(
		prevOut.PkScript, tx, idx, txscript.StandardVerifyFlags, nil,
		sigHashes, prevOut.Value, fetcher,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}
