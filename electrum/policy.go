// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// DefaultMaxRetry is the default number of reconnect attempts made
	// after the first one failed.
	DefaultMaxRetry = 3

	// DefaultRetryPeriod is the default delay between two connection
	// attempts.
	DefaultRetryPeriod = time.Second

	// DefaultPingPeriod is the default keep-alive interval. Electrum
	// servers drop clients idle for about ten minutes.
	DefaultPingPeriod = time.Minute
)

// PersistencePolicy controls how a client keeps its connection alive and how
// hard it tries to restore it.
type PersistencePolicy struct {
	// MaxRetry is the number of attempts made after a failed one before
	// the client gives up. A client with MaxRetry 2 tries three times in
	// total. Zero means a single attempt.
	MaxRetry int

	// RetryPeriod is the fixed delay between two attempts. Zero means
	// DefaultRetryPeriod.
	RetryPeriod time.Duration

	// PingPeriod is the interval of the keep-alive pings sent while the
	// client is ready. Zero means DefaultPingPeriod.
	PingPeriod time.Duration

	// OnExhausted is called with the last connection error when the
	// client gives up.
	OnExhausted fn.Option[func(error)]
}

// DefaultPersistencePolicy returns the policy used when none is given.
func DefaultPersistencePolicy() PersistencePolicy {
	return PersistencePolicy{
		MaxRetry:    DefaultMaxRetry,
		RetryPeriod: DefaultRetryPeriod,
		PingPeriod:  DefaultPingPeriod,
	}
}

// String returns a summary of the policy.
func (p PersistencePolicy) String() string {
	return fmt.Sprintf("max_retry=%d, retry_period=%v, ping_period=%v",
		p.MaxRetry, p.RetryPeriod, p.PingPeriod)
}

// withDefaults fills in the unset periods.
func (p PersistencePolicy) withDefaults() PersistencePolicy {
	if p.RetryPeriod == 0 {
		p.RetryPeriod = DefaultRetryPeriod
	}

	if p.PingPeriod == 0 {
		p.PingPeriod = DefaultPingPeriod
	}

	return p
}

// validate checks that no field of the policy is negative.
func (p PersistencePolicy) validate() error {
	switch {
	case p.MaxRetry < 0:
		return fmt.Errorf("%w: max retry %d", ErrInvalidPolicy,
			p.MaxRetry)

	case p.RetryPeriod < 0:
		return fmt.Errorf("%w: retry period %v", ErrInvalidPolicy,
			p.RetryPeriod)

	case p.PingPeriod < 0:
		return fmt.Errorf("%w: ping period %v", ErrInvalidPolicy,
			p.PingPeriod)
	}

	return nil
}

// exhausted returns true if the number of consecutive failed attempts is
// beyond what the policy allows.
func (p PersistencePolicy) exhausted(failures int) bool {
	return failures > p.MaxRetry
}

// notifyExhausted calls the OnExhausted callback, if any.
func (p PersistencePolicy) notifyExhausted(lastErr error) {
	p.OnExhausted.WhenSome(func(cb func(error)) {
		cb(lastErr)
	})
}
