// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultClientName is the client name sent in the version handshake.
	DefaultClientName = "btcelectrum"

	// DefaultProtocolVersion is the Electrum protocol version requested
	// in the version handshake.
	DefaultProtocolVersion = "1.4"
)

// Config holds the options of a persistent client.
type Config struct {
	// Endpoint is the server to connect to.
	Endpoint Endpoint

	// Transport holds the dialing options.
	Transport TransportConfig

	// Policy controls reconnects and keep-alive.
	Policy PersistencePolicy

	// CallTimeout is the time a request waits for its response. Zero
	// means DefaultCallTimeout.
	CallTimeout time.Duration

	// ClientName and ProtocolVersion are sent in the server.version
	// handshake. Empty values mean DefaultClientName and
	// DefaultProtocolVersion.
	ClientName      string
	ProtocolVersion string

	// RequestsPerSecond throttles the requests sent to the server. Zero
	// means no limit.
	RequestsPerSecond float64

	// newTicker creates the keep-alive ticker.
	newTicker func(time.Duration) ticker.Ticker
}

// validate checks the config and fills in the defaults.
func (c *Config) validate() error {
	if err := c.Endpoint.validate(); err != nil {
		return err
	}

	if err := c.Policy.validate(); err != nil {
		return err
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("negative request rate %v",
			c.RequestsPerSecond)
	}

	c.Policy = c.Policy.withDefaults()

	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}

	if c.ClientName == "" {
		c.ClientName = DefaultClientName
	}

	if c.ProtocolVersion == "" {
		c.ProtocolVersion = DefaultProtocolVersion
	}

	if c.newTicker == nil {
		c.newTicker = func(d time.Duration) ticker.Ticker {
			return ticker.New(d)
		}
	}

	return nil
}

// lifetime scopes the background work of a client between two calls to
// Close.
type lifetime struct {
	// key identifies the shared connect of this lifetime.
	key string

	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// newLifetime creates the lifetime with the given generation.
func newLifetime(gen uint64) *lifetime {
	ctx, cancel := context.WithCancel(context.Background())

	return &lifetime{
		key:    "connect-" + strconv.FormatUint(gen, 10),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Client is a persistent Electrum client. It connects lazily on the first
// request, keeps the connection alive with periodic pings and reconnects
// with a bounded number of attempts when the connection is lost.
type Client struct {
	cfg Config

	limiter *rate.Limiter

	// connectGroup makes concurrent callers share one connect.
	connectGroup singleflight.Group

	// mtx guards the fields below.
	mtx sync.Mutex

	state ClientState

	// session is the live session while the client is ready.
	session *Session

	// failures is the number of consecutive failed connection attempts.
	failures int

	// connecting is set while a connect of the current lifetime is
	// making attempts.
	connecting bool

	// exhaustedErr is the error calls fail with while the client is in
	// the failed state.
	exhaustedErr error

	gen uint64
	lt  *lifetime
}

// NewClient creates a client for the given server. No connection is made
// until the first request.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg: cfg,
		lt:  newLifetime(0),
	}

	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}

		c.limiter = rate.NewLimiter(
			rate.Limit(cfg.RequestsPerSecond), burst,
		)
	}

	return c, nil
}

// Endpoint returns the server of the client.
func (c *Client) Endpoint() Endpoint {
	return c.cfg.Endpoint
}

// State returns the current connection state.
func (c *Client) State() ClientState {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.state
}

// Reconnect drops the current session, if any, clears a failed state and
// connects again. A connect that is already making attempts is allowed to
// finish first, and its outcome is returned if it produced a session.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mtx.Lock()
	for c.connecting {
		c.mtx.Unlock()

		log.Debugf("Waiting for running connect to %v before "+
			"reconnecting", c.cfg.Endpoint)

		sess, err := c.awaitSession(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err == nil && sess != nil {
			return nil
		}

		c.mtx.Lock()
	}

	old := c.session
	c.session = nil
	c.failures = 0
	c.exhaustedErr = nil
	if c.state != StateUninitialized {
		c.state = StateReconnecting
	}
	c.mtx.Unlock()

	if old != nil {
		old.Close()
	}

	log.Infof("Reconnecting to %v", c.cfg.Endpoint)

	_, err := c.awaitSession(ctx)

	return err
}

// Close closes the session and stops all background work. Pending calls
// fail. The client returns to its initial state and connects again on the
// next request.
func (c *Client) Close() {
	c.mtx.Lock()
	lt := c.lt
	c.gen++
	c.lt = newLifetime(c.gen)
	sess := c.session
	c.session = nil
	c.state = StateUninitialized
	c.failures = 0
	c.connecting = false
	c.exhaustedErr = nil
	c.mtx.Unlock()

	lt.cancel()

	if sess != nil {
		sess.Close()
	}

	lt.wg.Wait()

	log.Debugf("Client for %v closed", c.cfg.Endpoint)
}

// currentSession returns the live session, connecting first if there is
// none.
func (c *Client) currentSession(ctx context.Context) (*Session, error) {
	c.mtx.Lock()
	switch {
	case c.state == StateReady && c.session != nil:
		sess := c.session
		c.mtx.Unlock()

		return sess, nil

	case c.state == StateFailed:
		err := c.exhaustedErr
		c.mtx.Unlock()

		return nil, err
	}
	c.mtx.Unlock()

	return c.awaitSession(ctx)
}

// awaitSession joins the shared connect of the current lifetime and waits
// for its outcome or for ctx to be done. The connect itself is not bound to
// ctx, so other waiters are unaffected when a caller gives up.
func (c *Client) awaitSession(ctx context.Context) (*Session, error) {
	c.mtx.Lock()
	lt := c.lt
	c.mtx.Unlock()

	resultChan := c.connectGroup.DoChan(lt.key, func() (any, error) {
		return c.connect(lt)
	})

	select {
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}

		sess, ok := res.Val.(*Session)
		if !ok {
			return nil, ErrNotConnected
		}

		return sess, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// connect makes connection attempts until one succeeds or the policy is
// exhausted. Attempts are spaced by the retry period.
func (c *Client) connect(lt *lifetime) (*Session, error) {
	c.mtx.Lock()
	switch {
	case c.lt != lt:
		c.mtx.Unlock()
		return nil, ErrClientClosed

	case c.state == StateReady && c.session != nil:
		sess := c.session
		c.mtx.Unlock()

		return sess, nil

	case c.state == StateFailed:
		err := c.exhaustedErr
		c.mtx.Unlock()

		return nil, err

	case c.state == StateUninitialized:
		c.state = StateConnecting
	}
	c.connecting = true
	c.mtx.Unlock()

	defer c.connectDone(lt)

	for {
		sess, err := c.dialSession(lt.ctx)
		if err == nil {
			return c.markReady(lt, sess)
		}

		if lt.ctx.Err() != nil {
			return nil, ErrClientClosed
		}

		c.mtx.Lock()
		if c.lt != lt {
			c.mtx.Unlock()
			return nil, ErrClientClosed
		}

		c.failures++
		attempts := c.failures

		if c.cfg.Policy.exhausted(attempts) {
			exhaustedErr := &ExhaustedRetriesError{
				Attempts: attempts,
				LastErr:  err,
			}
			c.state = StateFailed
			c.exhaustedErr = exhaustedErr
			c.failures = 0
			c.mtx.Unlock()

			log.Errorf("Giving up on %v after %d attempts: %v",
				c.cfg.Endpoint, attempts, err)

			c.cfg.Policy.notifyExhausted(err)

			return nil, exhaustedErr
		}

		c.mtx.Unlock()

		log.Warnf("Connection attempt %d to %v failed: %v, retrying "+
			"in %v", attempts, c.cfg.Endpoint, err,
			c.cfg.Policy.RetryPeriod)

		select {
		case <-time.After(c.cfg.Policy.RetryPeriod):

		case <-lt.ctx.Done():
			return nil, ErrClientClosed
		}
	}
}

// connectDone clears the connecting flag if lt is still the current
// lifetime.
func (c *Client) connectDone(lt *lifetime) {
	c.mtx.Lock()
	if c.lt == lt {
		c.connecting = false
	}
	c.mtx.Unlock()
}

// markReady installs a freshly connected session and starts its keep-alive.
func (c *Client) markReady(lt *lifetime, sess *Session) (*Session, error) {
	c.mtx.Lock()
	if c.lt != lt {
		c.mtx.Unlock()
		sess.Close()

		return nil, ErrClientClosed
	}

	c.session = sess
	c.state = StateReady
	c.failures = 0

	// The wait group is only grown while the lifetime is current, which
	// Close changes under the same mutex before waiting.
	lt.wg.Add(1)
	c.mtx.Unlock()

	go c.keepAlive(lt, sess)

	log.Infof("Connected to %v", c.cfg.Endpoint)

	return sess, nil
}

// dialSession opens a new session and performs the version handshake.
func (c *Client) dialSession(ctx context.Context) (*Session, error) {
	sess, err := NewSession(SessionConfig{
		Endpoint:    c.cfg.Endpoint,
		Transport:   c.cfg.Transport,
		CallTimeout: c.cfg.CallTimeout,
	})
	if err != nil {
		return nil, err
	}

	if err := sess.Connect(ctx); err != nil {
		return nil, err
	}

	result, err := sess.Call(
		ctx, methodServerVersion, c.cfg.ClientName,
		c.cfg.ProtocolVersion,
	)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("version handshake: %w", err)
	}

	log.Debugf("Server %v version: %s", c.cfg.Endpoint, result)

	return sess, nil
}

// keepAlive pings the server of the given session periodically and starts a
// reconnect once the session is lost.
func (c *Client) keepAlive(lt *lifetime, sess *Session) {
	defer lt.wg.Done()

	t := c.cfg.newTicker(c.cfg.Policy.PingPeriod)
	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-t.Ticks():
			_, err := sess.Call(lt.ctx, methodServerPing)
			switch {
			case err == nil:
				c.resetFailures()
				continue

			case lt.ctx.Err() != nil:
				return

			case !isConnectionLevel(err):
				log.Warnf("Keep-alive ping to %v returned: %v",
					c.cfg.Endpoint, err)

				continue
			}

			log.Warnf("Keep-alive ping to %v failed: %v",
				c.cfg.Endpoint, err)

			if c.dropSession(sess) {
				c.reconnectInBackground(lt)
			}

			return

		case <-sess.Done():
			if lt.ctx.Err() != nil {
				return
			}

			if c.dropSession(sess) {
				log.Warnf("Lost connection to %v: %v",
					c.cfg.Endpoint, sess.Err())

				c.reconnectInBackground(lt)
			}

			return

		case <-lt.ctx.Done():
			return
		}
	}
}

// reconnectInBackground restores the connection without a waiting caller.
func (c *Client) reconnectInBackground(lt *lifetime) {
	_, err := c.awaitSession(lt.ctx)
	if err != nil && !errors.Is(err, ErrClientClosed) &&
		!errors.Is(err, context.Canceled) {

		log.Errorf("Unable to reconnect to %v: %v", c.cfg.Endpoint, err)
	}
}

// dropSession closes the given session if it is still the current one and
// moves the client to the reconnecting state. It returns false if another
// goroutine already replaced the session.
func (c *Client) dropSession(sess *Session) bool {
	c.mtx.Lock()
	if c.session != sess {
		c.mtx.Unlock()
		sess.Close()

		return false
	}

	c.session = nil
	c.state = StateReconnecting
	c.mtx.Unlock()

	sess.Close()

	return true
}

// resetFailures clears the consecutive failure counter after a successful
// round-trip.
func (c *Client) resetFailures() {
	c.mtx.Lock()
	c.failures = 0
	c.mtx.Unlock()
}

// throttle waits for the request rate limiter, if any.
func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}

	return c.limiter.Wait(ctx)
}

// call sends a request over the live session. If the session fails at the
// connection level and retry is set, the client reconnects and sends the
// request once more.
func (c *Client) call(ctx context.Context, retry bool, method string,
	params ...any) (json.RawMessage, error) {

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	sess, err := c.currentSession(ctx)
	if err != nil {
		return nil, err
	}

	result, err := sess.Call(ctx, method, params...)
	switch {
	case err == nil:
		c.resetFailures()
		return result, nil

	case !isConnectionLevel(err):
		return nil, err
	}

	log.Warnf("%s on %v failed: %v", method, c.cfg.Endpoint, err)

	c.dropSession(sess)

	if !retry {
		return nil, err
	}

	sess, err = c.currentSession(ctx)
	if err != nil {
		return nil, err
	}

	result, err = sess.Call(ctx, method, params...)
	switch {
	case err == nil:
		c.resetFailures()

	case isConnectionLevel(err):
		c.dropSession(sess)
	}

	return result, err
}

// Call sends an arbitrary request. Read-only requests are retried once over a
// new connection if the current one fails.
func (c *Client) Call(ctx context.Context, method string,
	params ...any) (json.RawMessage, error) {

	return c.call(ctx, true, method, params...)
}
