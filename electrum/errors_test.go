package electrum

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestClassifyReject checks the classification of common reject reasons.
func TestClassifyReject(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		reason string
		kind   RejectKind
	}{
		{"min relay fee not met, 100 < 141", RejectFeeTooLow},
		{"mempool min fee not met, 1000 < 2000", RejectFeeTooLow},
		{"insufficient fee, rejecting replacement", RejectFeeTooLow},
		{"txn-mempool-conflict", RejectConflict},
		{"bad-txns-inputs-missingorspent", RejectConflict},
		{"Missing inputs", RejectConflict},
		{"txn-already-in-mempool", RejectAlreadyKnown},
		{"Transaction already in block chain", RejectAlreadyKnown},
		{"dust", RejectDust},
		{"non-final", RejectOther},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.kind, classifyReject(tc.reason), tc.reason)
	}
}

// TestConnectionLevelErrors checks which errors make the client reconnect.
func TestConnectionLevelErrors(t *testing.T) {
	t.Parallel()

	connErr := &ConnectionError{Err: errors.New("eof")}

	require.True(t, isConnectionLevel(connErr))
	require.True(t, isConnectionLevel(fmt.Errorf("call: %w", connErr)))
	require.True(t, isConnectionLevel(ErrTimeout))
	require.True(t, isConnectionLevel(ErrSessionClosed))

	require.False(t, isConnectionLevel(&RPCError{Code: 1}))
	require.False(t, isConnectionLevel(ErrInvalidResponse))
}

// TestExhaustedRetriesErrorUnwrap checks that the last attempt error stays
// reachable.
func TestExhaustedRetriesErrorUnwrap(t *testing.T) {
	t.Parallel()

	lastErr := errors.New("refused")
	err := &ExhaustedRetriesError{Attempts: 3, LastErr: lastErr}

	require.ErrorIs(t, err, lastErr)
	require.Contains(t, err.Error(), "3 connection attempts")
}
