// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

// ClientState is the connection state of a persistent client.
type ClientState uint32

const (
	// StateUninitialized is the state of a new or closed client. No
	// connection exists and none is being made.
	StateUninitialized ClientState = iota

	// StateConnecting indicates the first connection is being made.
	StateConnecting

	// StateReady indicates the client holds a live session.
	StateReady

	// StateReconnecting indicates the session was lost and a new one is
	// being made.
	StateReconnecting

	// StateFailed indicates the client gave up reconnecting. It stays in
	// this state until Reconnect or Close is called.
	StateFailed
)

// String returns the string representation of a client state.
func (s ClientState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"

	case StateConnecting:
		return "connecting"

	case StateReady:
		return "ready"

	case StateReconnecting:
		return "reconnecting"

	case StateFailed:
		return "failed"

	default:
		return "unknown client state"
	}
}
