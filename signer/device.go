// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

// errStreamClosed is reported when a device closes an event stream before
// sending a terminal event.
var errStreamClosed = errors.New("event stream closed without result")

// DeviceStatus is the state a hardware device reports.
type DeviceStatus uint8

const (
	// DeviceDisconnected means there is no usable session with the
	// device.
	DeviceDisconnected DeviceStatus = iota

	// DeviceReady means the device accepts actions.
	DeviceReady

	// DeviceLocked means the device waits for the user to unlock it.
	DeviceLocked

	// DeviceBusy means the device is running another action.
	DeviceBusy
)

// String returns the string representation of a device status.
func (s DeviceStatus) String() string {
	switch s {
	case DeviceDisconnected:
		return "disconnected"

	case DeviceReady:
		return "ready"

	case DeviceLocked:
		return "locked"

	case DeviceBusy:
		return "busy"

	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ActionEventType is the type of an event emitted during a device action.
type ActionEventType uint8

const (
	// ActionPending reports progress, usually a prompt on the device
	// screen.
	ActionPending ActionEventType = iota

	// ActionCompleted is the terminal event carrying the result.
	ActionCompleted

	// ActionError is the terminal event of a failed action.
	ActionError

	// ActionStopped is the terminal event of an aborted action.
	ActionStopped
)

// String returns the string representation of an event type.
func (t ActionEventType) String() string {
	switch t {
	case ActionPending:
		return "pending"

	case ActionCompleted:
		return "completed"

	case ActionError:
		return "error"

	case ActionStopped:
		return "stopped"

	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ActionEvent is emitted by a device while it runs an action.
type ActionEvent[T any] struct {
	// Type is the type of the event.
	Type ActionEventType

	// Prompt is the interaction the device asks for, set on pending
	// events.
	Prompt string

	// Result is set on completed events.
	Result T

	// Err is set on error events.
	Err error
}

// DeviceSignature is a signature a device produced for a PSBT input.
type DeviceSignature struct {
	// InputIndex is the index of the signed input.
	InputIndex int

	// PubKey is the compressed public key of the signing key.
	PubKey []byte

	// Signature is the DER signature with the sighash type appended.
	Signature []byte
}

// Device is the vendor SDK surface a hardware signer drives. Every action
// returns a channel of events that ends with exactly one terminal event. The
// channel may be closed afterwards.
type Device interface {
	// Connect opens a new session with the device, replacing a stale
	// one.
	Connect(ctx context.Context) error

	// Status reports the current device state.
	Status(ctx context.Context) (DeviceStatus, error)

	// GetPublicKey returns the compressed public key at path.
	GetPublicKey(ctx context.Context,
		path DerivationPath) (<-chan ActionEvent[[]byte], error)

	// GetExtendedPublicKey returns the serialized extended public key at
	// path.
	GetExtendedPublicKey(ctx context.Context,
		path DerivationPath) (<-chan ActionEvent[string], error)

	// SignMessage returns a 65-byte compact signature over the double
	// SHA-256 digest of msg made with the key at path.
	SignMessage(ctx context.Context, path DerivationPath,
		msg []byte) (<-chan ActionEvent[[]byte], error)

	// SignPsbt signs the given inputs of packet with the key at path.
	SignPsbt(ctx context.Context, path DerivationPath, packet *psbt.Packet,
		inputs []int) (<-chan ActionEvent[[]DeviceSignature], error)

	// Close ends the session with the device.
	Close() error
}

// watchAction consumes the events of a device action until the terminal one
// and returns its result.
func watchAction[T any](ctx context.Context, action string,
	events <-chan ActionEvent[T]) (T, error) {

	var zero T
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return zero, &DeviceActionError{
					Action: action,
					Err:    errStreamClosed,
				}
			}

			switch ev.Type {
			case ActionPending:
				log.Infof("Device action %s pending: %s", action,
					ev.Prompt)

			case ActionCompleted:
				log.Debugf("Device action %s completed", action)
				return ev.Result, nil

			case ActionStopped:
				return zero, fmt.Errorf("%w: %s",
					ErrDeviceActionStopped, action)

			case ActionError:
				return zero, &DeviceActionError{
					Action: action,
					Err:    ev.Err,
				}

			default:
				log.Warnf("Device action %s: ignoring event %v",
					action, ev.Type)
			}

		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}
