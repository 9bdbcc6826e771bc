package electrum

import (
	"errors"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// TestPersistencePolicy checks validation, defaults and the exhaustion
// bound.
func TestPersistencePolicy(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, PersistencePolicy{MaxRetry: -1}.validate(),
		ErrInvalidPolicy)
	require.ErrorIs(t, PersistencePolicy{RetryPeriod: -1}.validate(),
		ErrInvalidPolicy)
	require.ErrorIs(t, PersistencePolicy{PingPeriod: -1}.validate(),
		ErrInvalidPolicy)
	require.NoError(t, DefaultPersistencePolicy().validate())

	p := PersistencePolicy{MaxRetry: 2}.withDefaults()
	require.Equal(t, DefaultRetryPeriod, p.RetryPeriod)
	require.Equal(t, DefaultPingPeriod, p.PingPeriod)

	// MaxRetry 2 allows three attempts.
	require.False(t, p.exhausted(1))
	require.False(t, p.exhausted(2))
	require.True(t, p.exhausted(3))

	p = PersistencePolicy{RetryPeriod: time.Millisecond}.withDefaults()
	require.Equal(t, time.Millisecond, p.RetryPeriod)
}

// TestPersistencePolicyNotify checks the exhaustion callback.
func TestPersistencePolicyNotify(t *testing.T) {
	t.Parallel()

	// No callback is fine.
	PersistencePolicy{}.notifyExhausted(errors.New("unused"))

	var got error
	p := PersistencePolicy{
		OnExhausted: fn.Some(func(err error) { got = err }),
	}

	want := errors.New("refused")
	p.notifyExhausted(want)
	require.Equal(t, want, got)
}
