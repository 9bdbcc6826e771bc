// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimeout is returned when a request got no response within the
	// per-call timeout. The session stays usable.
	ErrTimeout = errors.New("request timed out")

	// ErrSessionClosed is returned for requests issued on, or still
	// pending when, a session is closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrClientClosed is returned by a client after Close was called.
	ErrClientClosed = errors.New("client closed")

	// ErrFeeEstimateUnavailable is returned when the server has not
	// enough data to estimate a fee for the requested target.
	ErrFeeEstimateUnavailable = errors.New("fee estimate unavailable")

	// ErrInvalidEndpoint is returned when an endpoint cannot be parsed
	// or names an unknown protocol.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrInvalidPolicy is returned when a persistence policy carries
	// negative values.
	ErrInvalidPolicy = errors.New("invalid persistence policy")

	// ErrInvalidResponse is returned when the server result cannot be
	// decoded into the expected shape.
	ErrInvalidResponse = errors.New("invalid response")
)

// ConnectionError is returned when the underlying transport to a server
// failed, either while dialing or while the session was in use.
type ConnectionError struct {
	// Endpoint is the server the connection was made to.
	Endpoint Endpoint

	// Err is the transport error.
	Err error
}

// Error returns a human-readable description of the connection error.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %v failed: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RPCError is an error object returned by the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error returns the server error text.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ExhaustedRetriesError is returned once the client gave up reconnecting to
// its server.
type ExhaustedRetriesError struct {
	// Attempts is the number of connection attempts made.
	Attempts int

	// LastErr is the error of the last attempt.
	LastErr error
}

// Error returns a human-readable description of the error.
func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("gave up after %d connection attempts: %v",
		e.Attempts, e.LastErr)
}

// Unwrap returns the error of the last attempt.
func (e *ExhaustedRetriesError) Unwrap() error {
	return e.LastErr
}

// RejectKind is a best-effort classification of a broadcast rejection.
type RejectKind uint8

const (
	// RejectOther is any rejection not covered by another kind.
	RejectOther RejectKind = iota

	// RejectFeeTooLow is returned when the tx does not pay the minimum
	// relay or mempool fee.
	RejectFeeTooLow

	// RejectConflict is returned when an input is already spent by a tx
	// in the mempool or in the chain, or does not exist.
	RejectConflict

	// RejectAlreadyKnown is returned when the tx is already in the
	// mempool or the chain.
	RejectAlreadyKnown

	// RejectDust is returned when an output is below the dust limit.
	RejectDust
)

// String returns a short name of the reject kind.
func (k RejectKind) String() string {
	switch k {
	case RejectFeeTooLow:
		return "fee too low"

	case RejectConflict:
		return "conflict"

	case RejectAlreadyKnown:
		return "already known"

	case RejectDust:
		return "dust"

	default:
		return "other"
	}
}

// rejectPatterns maps substrings of bitcoind reject reasons, as relayed by
// Electrum servers, to their kind. They are checked in order.
var rejectPatterns = []struct {
	substr string
	kind   RejectKind
}{
	{"min relay fee not met", RejectFeeTooLow},
	{"mempool min fee not met", RejectFeeTooLow},
	{"insufficient fee", RejectFeeTooLow},
	{"fee too low", RejectFeeTooLow},
	{"txn-already-in-mempool", RejectAlreadyKnown},
	{"txn-already-known", RejectAlreadyKnown},
	{"already in block chain", RejectAlreadyKnown},
	{"txn-mempool-conflict", RejectConflict},
	{"bad-txns-inputs-missingorspent", RejectConflict},
	{"missing inputs", RejectConflict},
	{"dust", RejectDust},
}

// classifyReject returns the kind of the given server reject reason.
func classifyReject(reason string) RejectKind {
	reason = strings.ToLower(reason)
	for _, p := range rejectPatterns {
		if strings.Contains(reason, p.substr) {
			return p.kind
		}
	}

	return RejectOther
}

// BroadcastRejectedError is returned when the server refused to relay a
// transaction. Reason is the server's text, unaltered.
type BroadcastRejectedError struct {
	// Code is the server's error code.
	Code int

	// Reason is the rejection reason as sent by the server.
	Reason string

	// Kind is the classification of Reason.
	Kind RejectKind
}

// Error returns the server's reject reason.
func (e *BroadcastRejectedError) Error() string {
	return fmt.Sprintf("broadcast rejected (%v): %s", e.Kind, e.Reason)
}

// newBroadcastRejectedError builds a broadcast error from a server error
// object.
func newBroadcastRejectedError(rpcErr *RPCError) *BroadcastRejectedError {
	return &BroadcastRejectedError{
		Code:   rpcErr.Code,
		Reason: rpcErr.Message,
		Kind:   classifyReject(rpcErr.Message),
	}
}

// isConnectionLevel returns true if err means the session is no longer
// trustworthy and the client should reconnect.
func isConnectionLevel(err error) bool {
	var connErr *ConnectionError

	return errors.As(err, &connErr) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrSessionClosed)
}
