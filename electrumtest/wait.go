package electrumtest

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is returned when a polled condition did not hold within
	// the timeout.
	ErrTimeout = errors.New("condition not met within the timeout")
)

// PollInterval is the interval conditions are polled at.
const PollInterval = 10 * time.Millisecond

// NoError polls f until it returns nil or the timeout is reached, in which
// case the last error returned by f is returned.
//
// NOTE: NoError does not interrupt f. If f blocks, NoError may block longer
// than the provided timeout.
func NoError(f func() error, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	lastErr := f()
	if lastErr == nil {
		return nil
	}

	for {
		select {
		case <-deadline.C:
			return lastErr

		case <-ticker.C:
			lastErr = f()
			if lastErr == nil {
				return nil
			}
		}
	}
}

// Predicate polls pred until it returns true or the timeout is reached.
func Predicate(pred func() bool, timeout time.Duration) error {
	return NoError(func() error {
		if pred() {
			return nil
		}

		return ErrTimeout
	}, timeout)
}
