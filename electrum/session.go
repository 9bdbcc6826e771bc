// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// DefaultCallTimeout is the time a request waits for its response.
	DefaultCallTimeout = 15 * time.Second

	// jsonRPCVersion is the version string sent with every request.
	jsonRPCVersion = "2.0"
)

var (
	// ErrNotConnected is returned when a request is issued on a session
	// that was never connected.
	ErrNotConnected = errors.New("session not connected")

	// ErrAlreadyConnected is returned when Connect is called on a session
	// that is past its disconnected state.
	ErrAlreadyConnected = errors.New("session already connected")
)

// SessionState is the state of a transport session.
type SessionState uint32

const (
	// SessionDisconnected is the state of a new session.
	SessionDisconnected SessionState = iota

	// SessionConnecting indicates the session is dialing its server.
	SessionConnecting

	// SessionReady indicates the session accepts requests.
	SessionReady

	// SessionClosed is the terminal state of a session.
	SessionClosed
)

// String returns the string representation of a session state.
func (s SessionState) String() string {
	switch s {
	case SessionDisconnected:
		return "disconnected"

	case SessionConnecting:
		return "connecting"

	case SessionReady:
		return "ready"

	case SessionClosed:
		return "closed"

	default:
		return "unknown session state"
	}
}

// request is a JSON-RPC request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// response is a JSON-RPC response or a server notification. Notifications
// carry a method and no id.
type response struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// rpcError decodes the error member of a response. Most servers send an
// object, a few send a bare string.
func (r *response) rpcError() *RPCError {
	if len(r.Error) == 0 || string(r.Error) == "null" {
		return nil
	}

	rpcErr := &RPCError{}
	if err := json.Unmarshal(r.Error, rpcErr); err == nil {
		return rpcErr
	}

	var msg string
	if err := json.Unmarshal(r.Error, &msg); err == nil {
		return &RPCError{Message: msg}
	}

	return &RPCError{Message: string(r.Error)}
}

// SessionConfig holds the options of a single transport session.
type SessionConfig struct {
	// Endpoint is the server to connect to.
	Endpoint Endpoint

	// Transport holds the dialing options.
	Transport TransportConfig

	// CallTimeout is the time a request waits for its response. Zero
	// means DefaultCallTimeout.
	CallTimeout time.Duration
}

// Session is a single connection to an Electrum server. Requests are
// multiplexed over the connection and responses are matched to them by id,
// so they may arrive in any order. A session is used once: after it closed,
// a new one has to be created.
type Session struct {
	cfg SessionConfig

	state atomic.Uint32

	// conn is set before the session becomes ready and never changes
	// afterwards.
	conn msgConn

	// writeMtx serializes writes on conn.
	writeMtx sync.Mutex

	// nextID is the id of the last request sent. Ids are never reused
	// within a session.
	nextID atomic.Uint64

	// pendingMtx guards pending.
	pendingMtx sync.Mutex

	// pending holds the waiters of the in-flight requests by id. It is
	// nil once the session is closed.
	pending map[uint64]chan fn.Result[json.RawMessage]

	closeOnce sync.Once

	// closeErr is the reason the session was closed. It is set before
	// done is closed.
	closeErr error

	done chan struct{}

	wg sync.WaitGroup
}

// NewSession creates a session for the given server. No connection is made
// until Connect is called.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.Endpoint.validate(); err != nil {
		return nil, err
	}

	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	return &Session{
		cfg:     cfg,
		pending: make(map[uint64]chan fn.Result[json.RawMessage]),
		done:    make(chan struct{}),
	}, nil
}

// Endpoint returns the server of the session.
func (s *Session) Endpoint() Endpoint {
	return s.cfg.Endpoint
}

// State returns the current state of the session.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Done returns a channel that is closed once the session is torn down,
// either by Close or because the connection failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the session was torn down, or nil while it is
// still open.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.closeErr

	default:
		return nil
	}
}

// Connect dials the server and starts reading responses. Dial failures are
// returned as a *ConnectionError.
func (s *Session) Connect(ctx context.Context) error {
	if !s.state.CompareAndSwap(
		uint32(SessionDisconnected), uint32(SessionConnecting)) {

		state := s.State()
		if state == SessionClosed {
			return ErrSessionClosed
		}

		return fmt.Errorf("%w: state is %v", ErrAlreadyConnected, state)
	}

	log.Debugf("Connecting to %v", s.cfg.Endpoint)

	conn, err := dialTransport(ctx, s.cfg.Endpoint, &s.cfg.Transport)
	if err != nil {
		connErr := &ConnectionError{Endpoint: s.cfg.Endpoint, Err: err}

		// Dialing failed, the session cannot be reused.
		s.teardown(connErr)

		return connErr
	}

	s.conn = conn

	// The session may have been closed while we were dialing.
	if !s.state.CompareAndSwap(
		uint32(SessionConnecting), uint32(SessionReady)) {

		_ = conn.Close()

		return ErrSessionClosed
	}

	s.wg.Add(1)
	go s.readLoop()

	log.Debugf("Connected to %v", s.cfg.Endpoint)

	return nil
}

// Call sends a request and waits for its response. It returns the raw
// result, a *RPCError if the server answered with an error, ErrTimeout if no
// response arrived within the call timeout, or the session error if the
// session was torn down meanwhile.
func (s *Session) Call(ctx context.Context, method string,
	params ...any) (json.RawMessage, error) {

	switch s.State() {
	case SessionReady:

	case SessionClosed:
		return nil, s.closeReason()

	default:
		return nil, ErrNotConnected
	}

	if params == nil {
		params = []any{}
	}

	id := s.nextID.Add(1)
	payload, err := json.Marshal(request{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	// The channel is buffered so the reader never blocks on a waiter
	// that already gave up.
	respChan := make(chan fn.Result[json.RawMessage], 1)

	s.pendingMtx.Lock()
	if s.pending == nil {
		s.pendingMtx.Unlock()
		return nil, s.closeReason()
	}
	s.pending[id] = respChan
	s.pendingMtx.Unlock()

	log.Tracef("%v: -> %s", s.cfg.Endpoint, payload)

	s.writeMtx.Lock()
	err = s.conn.WriteMessage(payload)
	s.writeMtx.Unlock()

	if err != nil {
		s.removePending(id)

		s.teardown(&ConnectionError{Endpoint: s.cfg.Endpoint, Err: err})

		// A concurrent Close may have won the teardown.
		return nil, s.closeReason()
	}

	timer := time.NewTimer(s.cfg.CallTimeout)
	defer timer.Stop()

	select {
	case result := <-respChan:
		return result.Unpack()

	case <-timer.C:
		s.removePending(id)
		return nil, fmt.Errorf("%w: %s (id=%d) after %v", ErrTimeout,
			method, id, s.cfg.CallTimeout)

	case <-ctx.Done():
		s.removePending(id)
		return nil, ctx.Err()
	}
}

// Close tears the session down. Every pending request fails with
// ErrSessionClosed. It is safe to call Close multiple times.
func (s *Session) Close() {
	s.teardown(ErrSessionClosed)
	s.wg.Wait()
}

// closeReason returns the error requests fail with after the session was
// torn down.
func (s *Session) closeReason() error {
	<-s.done
	return s.closeErr
}

// removePending forgets the waiter of the given request.
func (s *Session) removePending(id uint64) {
	s.pendingMtx.Lock()
	delete(s.pending, id)
	s.pendingMtx.Unlock()
}

// teardown closes the session for the given reason and rejects every
// pending waiter with it. Only the first call has an effect.
func (s *Session) teardown(reason error) {
	s.closeOnce.Do(func() {
		s.closeErr = reason

		prev := SessionState(s.state.Swap(uint32(SessionClosed)))
		if prev == SessionReady {
			_ = s.conn.Close()
		}

		s.pendingMtx.Lock()
		pending := s.pending
		s.pending = nil
		s.pendingMtx.Unlock()

		for _, respChan := range pending {
			respChan <- fn.Err[json.RawMessage](reason)
		}

		close(s.done)

		if errors.Is(reason, ErrSessionClosed) {
			log.Debugf("Session to %v closed", s.cfg.Endpoint)
		} else {
			log.Warnf("Session to %v torn down: %v",
				s.cfg.Endpoint, reason)
		}
	})
}

// readLoop reads messages until the connection fails and hands every
// response to its waiter.
func (s *Session) readLoop() {
	defer s.wg.Done()

	for {
		msg, err := s.conn.ReadMessage()
		if err != nil {
			s.teardown(&ConnectionError{
				Endpoint: s.cfg.Endpoint,
				Err:      err,
			})

			return
		}

		log.Tracef("%v: <- %s", s.cfg.Endpoint, msg)

		s.dispatch(msg)
	}
}

// dispatch delivers a single message to the waiter of its request id.
func (s *Session) dispatch(msg []byte) {
	var resp response
	if err := json.Unmarshal(msg, &resp); err != nil {
		log.Warnf("%v: dropping malformed message: %v",
			s.cfg.Endpoint, err)

		return
	}

	if resp.ID == nil {
		log.Debugf("%v: dropping notification %q", s.cfg.Endpoint,
			resp.Method)

		return
	}

	s.pendingMtx.Lock()
	respChan, ok := s.pending[*resp.ID]
	delete(s.pending, *resp.ID)
	s.pendingMtx.Unlock()

	if !ok {
		log.Debugf("%v: no pending request for id %d",
			s.cfg.Endpoint, *resp.ID)

		return
	}

	if rpcErr := resp.rpcError(); rpcErr != nil {
		respChan <- fn.Err[json.RawMessage](rpcErr)
		return
	}

	respChan <- fn.Ok(resp.Result)
}
