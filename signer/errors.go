// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperation is returned when an operation is requested
	// from a signer kind that cannot perform it, such as deriving from a
	// raw private key.
	ErrUnsupportedOperation = errors.New("operation not supported by " +
		"signer")

	// ErrDisposedSigner is returned by every operation of a signer after
	// Dispose was called.
	ErrDisposedSigner = errors.New("signer disposed")

	// ErrInvalidPrivateKey is returned when raw key bytes are not a valid
	// secp256k1 scalar.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrWrongNetwork is returned when a WIF key is encoded for another
	// network than the signer's.
	ErrWrongNetwork = errors.New("key encoded for another network")

	// ErrUncompressedKey is returned for WIF keys flagged as
	// uncompressed, whose addresses differ from the ones derived here.
	ErrUncompressedKey = errors.New("uncompressed keys are not supported")

	// ErrInvalidPath is returned when a derivation path cannot be parsed.
	ErrInvalidPath = errors.New("invalid derivation path")

	// ErrInvalidMnemonic is returned when a mnemonic fails the BIP-39
	// checks.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	// ErrInvalidPacket is returned when a nil or empty PSBT is given.
	ErrInvalidPacket = errors.New("invalid psbt packet")

	// ErrDeviceActionStopped is returned when the user or the device
	// aborted an action.
	ErrDeviceActionStopped = errors.New("device action stopped")

	// ErrInvalidDeviceSignature is returned when a device returns a
	// signature that is not DER encoded or carries another sighash type
	// than the input asks for.
	ErrInvalidDeviceSignature = errors.New("invalid device signature")
)

// DeviceNotReadyError is returned when a hardware device cannot perform an
// action in its current state. It is never retried automatically since the
// user has to act on the device.
type DeviceNotReadyError struct {
	// Status is the status the device reported.
	Status DeviceStatus
}

// Error returns a human-readable description of the error.
func (e *DeviceNotReadyError) Error() string {
	return fmt.Sprintf("device not ready: %v", e.Status)
}

// DeviceActionError is returned when a device reports a failed action.
type DeviceActionError struct {
	// Action is the name of the failed action.
	Action string

	// Err is the error reported by the device.
	Err error
}

// Error returns a human-readable description of the error.
func (e *DeviceActionError) Error() string {
	return fmt.Sprintf("device action %s failed: %v", e.Action, e.Err)
}

// Unwrap returns the error reported by the device.
func (e *DeviceActionError) Unwrap() error {
	return e.Err
}
