package txutil

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// TestEnsureWitnessUtxo checks that the witness UTXO is attached once for
// segwit inputs and that later calls are no-ops.
func TestEnsureWitnessUtxo(t *testing.T) {
	t.Parallel()

	// Arrange: a packet whose input only carries the full prev tx.
	funding := prevTx(myP2WPKHScript(t), 50_000)
	packet := newPacket(t, funding)
	packet.Inputs[0].NonWitnessUtxo = funding

	prevOut, err := ResolvePrevOutput(packet, 0)
	require.NoError(t, err)

	// Act: attach twice.
	added, err := EnsureWitnessUtxo(packet, 0, StandardBIP84, prevOut)
	require.NoError(t, err)
	require.True(t, added)

	first := *packet.Inputs[0].WitnessUtxo

	added, err = EnsureWitnessUtxo(packet, 0, StandardBIP84, prevOut)
	require.NoError(t, err)

	// Assert: the second call changed nothing.
	require.False(t, added)
	require.Equal(t, first, *packet.Inputs[0].WitnessUtxo)
	require.Equal(t, int64(50_000), packet.Inputs[0].WitnessUtxo.Value)

	// The attached output does not alias the funding tx.
	require.NotSame(t, prevOut, packet.Inputs[0].WitnessUtxo)
	prevOut.PkScript[0] = 0xff
	require.Equal(t, byte(0x00), packet.Inputs[0].WitnessUtxo.PkScript[0])
}

// TestEnsureWitnessUtxoLegacy checks that legacy inputs are left alone.
func TestEnsureWitnessUtxoLegacy(t *testing.T) {
	t.Parallel()

	funding := prevTx(foreignScript, 1_000)
	packet := newPacket(t, funding)

	added, err := EnsureWitnessUtxo(
		packet, 0, StandardBIP44, funding.TxOut[0],
	)
	require.NoError(t, err)
	require.False(t, added)
	require.Nil(t, packet.Inputs[0].WitnessUtxo)
}

// TestEnsureWitnessUtxoErrors checks the failure modes.
func TestEnsureWitnessUtxoErrors(t *testing.T) {
	t.Parallel()

	packet := newPacket(t, prevTx(foreignScript, 1_000))

	_, err := EnsureWitnessUtxo(packet, 0, StandardBIP84, nil)
	require.ErrorIs(t, err, ErrMissingPrevOutput)

	_, err = EnsureWitnessUtxo(
		packet, 3, StandardBIP84, wire.NewTxOut(1, foreignScript),
	)
	require.ErrorIs(t, err, ErrInputIndexOutOfRange)
}
