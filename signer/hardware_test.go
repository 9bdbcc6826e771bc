package signer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newTestHardwareSigner returns a hardware signer on a fresh mock device at
// the default BIP-84 path.
func newTestHardwareSigner(t *testing.T) (*HardwareSigner, *mockDevice) {
	t.Helper()

	device := &mockDevice{}
	h, err := NewHardwareSigner(device, mainnetBIP84, "")
	require.NoError(t, err)

	return h, device
}

// deviceSig returns a DER signature of the test key followed by hashType,
// shaped like the ones a device returns.
func deviceSig(t *testing.T, hashType txscript.SigHashType) []byte {
	t.Helper()

	digest := chainhash.HashB([]byte("device signature"))
	sig := ecdsa.Sign(testPrivKey(t), digest).Serialize()

	return append(sig, byte(hashType))
}

// expectPubKey makes the device serve the test public key once.
func expectPubKey(t *testing.T, device *mockDevice, path DerivationPath) {
	t.Helper()

	device.On("GetPublicKey", path).Return(eventStream(
		ActionEvent[[]byte]{Type: ActionPending, Prompt: "confirm"},
		ActionEvent[[]byte]{
			Type:   ActionCompleted,
			Result: testPrivKey(t).PubKey().SerializeCompressed(),
		},
	), nil).Once()
}

// TestHardwareSignerAddress checks that the address is derived from the
// device key, and that the key is fetched only once.
func TestHardwareSignerAddress(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h, device := newTestHardwareSigner(t)

	device.On("Status").Return(DeviceReady, nil)
	expectPubKey(t, device, DefaultPath(mainnetBIP84))

	soft, err := NewPrivateKeySigner(testKeyBytes(t), mainnetBIP84)
	require.NoError(t, err)
	want, err := soft.Address(ctx)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		addr, err := h.Address(ctx)
		require.NoError(t, err)
		require.Equal(t, want, addr)
	}

	device.AssertNumberOfCalls(t, "GetPublicKey", 1)
	device.AssertNotCalled(t, "Connect")
}

// TestHardwareSignerReadiness checks the device readiness handling before
// an action.
func TestHardwareSignerReadiness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	msg := []byte("msg")
	sig := make([]byte, compactSigLen)

	t.Run("stale session reconnects once", func(t *testing.T) {
		t.Parallel()

		h, device := newTestHardwareSigner(t)
		device.On("Status").Return(DeviceDisconnected, nil).Once()
		device.On("Connect").Return(nil).Once()
		device.On("Status").Return(DeviceReady, nil)
		device.On("SignMessage", h.path, msg).Return(eventStream(
			ActionEvent[[]byte]{Type: ActionCompleted, Result: sig},
		), nil).Once()

		got, err := h.SignMessage(ctx, msg)
		require.NoError(t, err)
		require.Equal(t, sig, got)
		device.AssertNumberOfCalls(t, "Connect", 1)
	})

	t.Run("status error reconnects", func(t *testing.T) {
		t.Parallel()

		h, device := newTestHardwareSigner(t)
		device.On("Status").Return(
			DeviceDisconnected, errors.New("hid gone"),
		).Once()
		device.On("Connect").Return(nil).Once()
		device.On("Status").Return(DeviceReady, nil)
		device.On("SignMessage", h.path, msg).Return(eventStream(
			ActionEvent[[]byte]{Type: ActionCompleted, Result: sig},
		), nil).Once()

		_, err := h.SignMessage(ctx, msg)
		require.NoError(t, err)
	})

	t.Run("failed reconnect", func(t *testing.T) {
		t.Parallel()

		h, device := newTestHardwareSigner(t)
		connErr := errors.New("no device")
		device.On("Status").Return(DeviceDisconnected, nil)
		device.On("Connect").Return(connErr).Once()

		_, err := h.SignMessage(ctx, msg)
		require.ErrorIs(t, err, connErr)
		device.AssertNotCalled(t, "SignMessage", mock.Anything,
			mock.Anything)
	})

	t.Run("still disconnected", func(t *testing.T) {
		t.Parallel()

		h, device := newTestHardwareSigner(t)
		device.On("Status").Return(DeviceDisconnected, nil)
		device.On("Connect").Return(nil).Once()

		_, err := h.SignMessage(ctx, msg)

		var notReady *DeviceNotReadyError
		require.ErrorAs(t, err, &notReady)
		require.Equal(t, DeviceDisconnected, notReady.Status)
		device.AssertNumberOfCalls(t, "Connect", 1)
	})

	for _, status := range []DeviceStatus{DeviceLocked, DeviceBusy} {
		t.Run(status.String(), func(t *testing.T) {
			t.Parallel()

			h, device := newTestHardwareSigner(t)
			device.On("Status").Return(status, nil)

			_, err := h.SignMessage(ctx, msg)

			var notReady *DeviceNotReadyError
			require.ErrorAs(t, err, &notReady)
			require.Equal(t, status, notReady.Status)

			// A locked or busy device is never retried.
			device.AssertNumberOfCalls(t, "Status", 1)
			device.AssertNotCalled(t, "Connect")
		})
	}
}

// TestHardwareSignerActionEvents checks how terminal events end an action.
func TestHardwareSignerActionEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	msg := []byte("msg")

	t.Run("stopped", func(t *testing.T) {
		t.Parallel()

		h, device := newTestHardwareSigner(t)
		device.On("Status").Return(DeviceReady, nil)
		device.On("SignMessage", h.path, msg).Return(eventStream(
			ActionEvent[[]byte]{Type: ActionPending},
			ActionEvent[[]byte]{Type: ActionStopped},
		), nil).Once()

		_, err := h.SignMessage(ctx, msg)
		require.ErrorIs(t, err, ErrDeviceActionStopped)
	})

	t.Run("error", func(t *testing.T) {
		t.Parallel()

		h, device := newTestHardwareSigner(t)
		rejected := errors.New("user rejected")
		device.On("Status").Return(DeviceReady, nil)
		device.On("SignMessage", h.path, msg).Return(eventStream(
			ActionEvent[[]byte]{Type: ActionError, Err: rejected},
		), nil).Once()

		_, err := h.SignMessage(ctx, msg)
		require.ErrorIs(t, err, rejected)

		var actionErr *DeviceActionError
		require.ErrorAs(t, err, &actionErr)
		require.Equal(t, "sign message", actionErr.Action)
	})

	t.Run("stream closed early", func(t *testing.T) {
		t.Parallel()

		h, device := newTestHardwareSigner(t)
		device.On("Status").Return(DeviceReady, nil)
		device.On("SignMessage", h.path, msg).Return(eventStream(
			ActionEvent[[]byte]{Type: ActionPending},
		), nil).Once()

		_, err := h.SignMessage(ctx, msg)
		require.ErrorIs(t, err, errStreamClosed)
	})

	t.Run("short signature", func(t *testing.T) {
		t.Parallel()

		h, device := newTestHardwareSigner(t)
		device.On("Status").Return(DeviceReady, nil)
		device.On("SignMessage", h.path, msg).Return(eventStream(
			ActionEvent[[]byte]{
				Type:   ActionCompleted,
				Result: []byte{1, 2, 3},
			},
		), nil).Once()

		_, err := h.SignMessage(ctx, msg)

		var actionErr *DeviceActionError
		require.ErrorAs(t, err, &actionErr)
	})

	t.Run("context done", func(t *testing.T) {
		t.Parallel()

		h, device := newTestHardwareSigner(t)
		device.On("Status").Return(DeviceReady, nil)

		// The device never answers.
		pending := make(chan ActionEvent[[]byte])
		device.On("SignMessage", h.path, msg).Return(
			(<-chan ActionEvent[[]byte])(pending), nil,
		).Once()

		ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := h.SignMessage(ctx, msg)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

// TestHardwareSignerSignPsbt checks that only signatures for own inputs made
// with the device key end up in the packet.
func TestHardwareSignerSignPsbt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h, device := newTestHardwareSigner(t)

	pubKey := testPrivKey(t).PubKey()
	pubBytes := pubKey.SerializeCompressed()
	myScript := paymentScript(t, mainnetBIP84, pubKey)

	foreign := fundingTx(foreignScript, 70_000, 1)
	mine := fundingTx(myScript, 50_000, 2)
	packet := newPacket(t, foreign, mine)
	packet.Inputs[0].WitnessUtxo = foreign.TxOut[0]
	packet.Inputs[1].NonWitnessUtxo = mine

	device.On("Status").Return(DeviceReady, nil)
	expectPubKey(t, device, h.path)

	ownSig := deviceSig(t, txscript.SigHashAll)
	device.On("SignPsbt", h.path, packet, []int{1}).Return(eventStream(
		ActionEvent[[]DeviceSignature]{
			Type: ActionCompleted,
			Result: []DeviceSignature{
				{InputIndex: 1, PubKey: pubBytes, Signature: ownSig},
				{InputIndex: 0, PubKey: pubBytes, Signature: ownSig},
				{
					InputIndex: 1,
					PubKey:     []byte{0x02},
					Signature:  []byte{0x30},
				},
			},
		},
	), nil).Once()

	result, err := h.SignPsbt(ctx, packet)
	require.NoError(t, err)
	require.Equal(t, []int{1}, result.SignedInputs)

	require.Empty(t, packet.Inputs[0].PartialSigs)
	require.Equal(t, []*psbt.PartialSig{{
		PubKey:    pubBytes,
		Signature: ownSig,
	}}, packet.Inputs[1].PartialSigs)
	require.NotNil(t, packet.Inputs[1].WitnessUtxo)
}

// TestHardwareSignerSignPsbtRejectsBadSignature checks that a device
// signature is only merged when it is DER encoded and carries the sighash
// type of the input.
func TestHardwareSignerSignPsbtRejectsBadSignature(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		inputHash txscript.SigHashType
		sig       func(t *testing.T) []byte
		valid     bool
	}{{
		name:      "default sighash signed as all",
		inputHash: txscript.SigHashDefault,
		sig: func(t *testing.T) []byte {
			return deviceSig(t, txscript.SigHashAll)
		},
		valid: true,
	}, {
		name:      "explicit sighash matches",
		inputHash: txscript.SigHashSingle,
		sig: func(t *testing.T) []byte {
			return deviceSig(t, txscript.SigHashSingle)
		},
		valid: true,
	}, {
		name:      "malformed der",
		inputHash: txscript.SigHashDefault,
		sig: func(*testing.T) []byte {
			return []byte{0x30, 0x01, 0x01}
		},
	}, {
		name:      "too short",
		inputHash: txscript.SigHashDefault,
		sig: func(*testing.T) []byte {
			return []byte{0x01}
		},
	}, {
		name:      "wrong sighash byte",
		inputHash: txscript.SigHashDefault,
		sig: func(t *testing.T) []byte {
			return deviceSig(t, txscript.SigHashNone)
		},
	}, {
		name:      "all signed for explicit single",
		inputHash: txscript.SigHashSingle,
		sig: func(t *testing.T) []byte {
			return deviceSig(t, txscript.SigHashAll)
		},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h, device := newTestHardwareSigner(t)

			pubKey := testPrivKey(t).PubKey()
			pubBytes := pubKey.SerializeCompressed()
			myScript := paymentScript(t, mainnetBIP84, pubKey)

			mine := fundingTx(myScript, 50_000, 3)
			packet := newPacket(t, mine)
			packet.Inputs[0].WitnessUtxo = mine.TxOut[0]
			packet.Inputs[0].SighashType = tc.inputHash

			device.On("Status").Return(DeviceReady, nil)
			expectPubKey(t, device, h.path)

			sig := tc.sig(t)
			device.On("SignPsbt", h.path, packet, []int{0}).Return(
				eventStream(ActionEvent[[]DeviceSignature]{
					Type: ActionCompleted,
					Result: []DeviceSignature{{
						InputIndex: 0,
						PubKey:     pubBytes,
						Signature:  sig,
					}},
				}), nil,
			).Once()

			result, err := h.SignPsbt(context.Background(), packet)
			if tc.valid {
				require.NoError(t, err)
				require.Equal(t, []int{0}, result.SignedInputs)
				require.Len(t, packet.Inputs[0].PartialSigs, 1)
				require.Equal(
					t, sig,
					packet.Inputs[0].PartialSigs[0].Signature,
				)

				return
			}

			var actionErr *DeviceActionError
			require.ErrorAs(t, err, &actionErr)
			require.ErrorIs(t, err, ErrInvalidDeviceSignature)
			require.Empty(t, packet.Inputs[0].PartialSigs)
		})
	}
}

// TestHardwareSignerSignPsbtNothingOwned checks that the device is not asked
// to sign a packet without own inputs.
func TestHardwareSignerSignPsbtNothingOwned(t *testing.T) {
	t.Parallel()

	h, device := newTestHardwareSigner(t)
	device.On("Status").Return(DeviceReady, nil)
	expectPubKey(t, device, h.path)

	foreign := fundingTx(foreignScript, 70_000, 1)
	packet := newPacket(t, foreign)
	packet.Inputs[0].WitnessUtxo = foreign.TxOut[0]

	result, err := h.SignPsbt(context.Background(), packet)
	require.NoError(t, err)
	require.Empty(t, result.SignedInputs)
	device.AssertNotCalled(t, "SignPsbt", mock.Anything, mock.Anything,
		mock.Anything)
}

// TestHardwareSignerDerive checks derivation on the shared device and that
// the device is closed once the last signer is disposed.
func TestHardwareSignerDerive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	device := &mockDevice{}
	h, err := NewHardwareSigner(device, mainnetBIP84, "m/84'/0'/0'")
	require.NoError(t, err)

	child, err := h.Derive(ctx, "0/3")
	require.NoError(t, err)
	require.Equal(t, "m/84'/0'/0'/0/3", child.Path())
	require.Equal(t, uint32(3), child.Index())
	require.Equal(t, KindHardware, child.Kind())

	childPath, err := ParsePath("m/84'/0'/0'/0/3")
	require.NoError(t, err)

	device.On("Status").Return(DeviceReady, nil)
	device.On("GetExtendedPublicKey", childPath).Return(eventStream(
		ActionEvent[string]{Type: ActionCompleted, Result: "zpub..."},
	), nil).Once()

	xpub, err := ExtendedPublicKey(ctx, child)
	require.NoError(t, err)
	require.Equal(t, "zpub...", xpub)

	device.On("Close").Return(nil).Once()

	h.Dispose()
	h.Dispose()
	device.AssertNotCalled(t, "Close")
	require.True(t, child.IsActive())

	_, err = h.Derive(ctx, "1")
	require.ErrorIs(t, err, ErrDisposedSigner)

	child.Dispose()
	device.AssertNumberOfCalls(t, "Close", 1)

	_, err = child.SignMessage(ctx, []byte("x"))
	require.ErrorIs(t, err, ErrDisposedSigner)

	_, err = child.Address(ctx)
	require.ErrorIs(t, err, ErrDisposedSigner)
}
