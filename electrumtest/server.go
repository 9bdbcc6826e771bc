// Package electrumtest provides an in-process Electrum server for tests.
package electrumtest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/btcsuite/websocket"
	"github.com/stretchr/testify/require"
)

var (
	// ErrNoReply can be returned by a handler to leave a request
	// unanswered.
	ErrNoReply = errors.New("no reply")
)

// Handler answers a request. A returned *RPCError is sent as the error
// object of the response, any other error as an internal error.
type Handler func(params []json.RawMessage) (any, error)

// RPCError is an error object sent by the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *RPCError) Error() string {
	return e.Message
}

// request is a JSON-RPC request as received by the server.
type request struct {
	ID     *uint64           `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// response is a JSON-RPC response as sent by the server.
type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      *uint64   `json:"id"`
	Result  any       `json:"result"`
	Error   *RPCError `json:"error,omitempty"`
}

// notification is a message sent without a request.
type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// frameConn is a server side connection carrying one message per frame.
type frameConn interface {
	read() ([]byte, error)
	write(msg []byte) error
	close() error
}

// lineConn frames messages with newlines.
type lineConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (l *lineConn) read() ([]byte, error) {
	return l.reader.ReadBytes('\n')
}

func (l *lineConn) write(msg []byte) error {
	_, err := l.conn.Write(append(msg, '\n'))
	return err
}

func (l *lineConn) close() error {
	return l.conn.Close()
}

// wsFrameConn frames messages as WebSocket text frames.
type wsFrameConn struct {
	conn *websocket.Conn
}

func (w *wsFrameConn) read() ([]byte, error) {
	_, msg, err := w.conn.ReadMessage()
	return msg, err
}

func (w *wsFrameConn) write(msg []byte) error {
	return w.conn.WriteMessage(websocket.TextMessage, msg)
}

func (w *wsFrameConn) close() error {
	return w.conn.Close()
}

// serverConn is a connected client.
type serverConn struct {
	frames   frameConn
	writeMtx sync.Mutex
}

func (c *serverConn) send(v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()

	return c.frames.write(msg)
}

// Server is a fake Electrum server speaking newline framed JSON-RPC over TCP
// or JSON-RPC over WebSocket.
type Server struct {
	t testing.TB

	host string
	port uint16

	listener   net.Listener
	httpServer *httptest.Server

	handlersMtx sync.RWMutex
	handlers    map[string]Handler

	connsMtx sync.Mutex
	conns    map[*serverConn]struct{}
	closed   bool

	accepted atomic.Int32

	callsMtx sync.Mutex
	calls    map[string]int

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// newServer creates a server with the handshake and ping handlers
// registered.
func newServer(t testing.TB) *Server {
	s := &Server{
		t:        t,
		handlers: make(map[string]Handler),
		conns:    make(map[*serverConn]struct{}),
		calls:    make(map[string]int),
	}

	s.Handle("server.version", func([]json.RawMessage) (any, error) {
		return []string{"ElectrumX 1.16.0", "1.4"}, nil
	})
	s.Handle("server.ping", func([]json.RawMessage) (any, error) {
		return nil, nil
	})

	t.Cleanup(s.Close)

	return s
}

// NewServer starts a server accepting plain TCP connections on a random
// local port.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := newServer(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s.listener = listener
	s.setAddr(t, listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()

	return s
}

// NewWebSocketServer starts a server accepting WebSocket connections on a
// random local port.
func NewWebSocketServer(t testing.TB) *Server {
	t.Helper()

	s := newServer(t)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	s.httpServer = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}

			s.wg.Add(1)
			s.serve(&wsFrameConn{conn: conn})
		},
	))
	s.setAddr(t, s.httpServer.Listener.Addr().String())

	return s
}

// setAddr records the host and port of the listener.
func (s *Server) setAddr(t testing.TB, addr string) {
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	port, err := strconv.ParseUint(portStr, 10, 16)
	require.NoError(t, err)

	s.host = host
	s.port = uint16(port)
}

// Host returns the host the server listens on.
func (s *Server) Host() string {
	return s.host
}

// Port returns the port the server listens on.
func (s *Server) Port() uint16 {
	return s.port
}

// Handle registers the handler of a method, replacing any previous one.
func (s *Server) Handle(method string, h Handler) {
	s.handlersMtx.Lock()
	defer s.handlersMtx.Unlock()

	s.handlers[method] = h
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int {
	return int(s.accepted.Load())
}

// Calls returns the number of requests received for the method.
func (s *Server) Calls(method string) int {
	s.callsMtx.Lock()
	defer s.callsMtx.Unlock()

	return s.calls[method]
}

// Notify sends a notification to every connected client.
func (s *Server) Notify(method string, params ...any) {
	for _, conn := range s.snapshotConns() {
		_ = conn.send(notification{
			JSONRPC: "2.0",
			Method:  method,
			Params:  params,
		})
	}
}

// DropConnections closes every client connection, leaving the server
// listening.
func (s *Server) DropConnections() {
	for _, conn := range s.snapshotConns() {
		_ = conn.frames.close()
	}
}

// Close stops the server and closes every connection.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.listener != nil {
			_ = s.listener.Close()
		}

		s.connsMtx.Lock()
		s.closed = true
		s.connsMtx.Unlock()

		s.DropConnections()

		if s.httpServer != nil {
			s.httpServer.Close()
		}

		s.wg.Wait()
	})
}

func (s *Server) snapshotConns() []*serverConn {
	s.connsMtx.Lock()
	defer s.connsMtx.Unlock()

	conns := make([]*serverConn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}

	return conns
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.wg.Add(1)
		go s.serve(&lineConn{conn: conn, reader: bufio.NewReader(conn)})
	}
}

// serve reads requests from the connection until it is closed. Every request
// is handled on its own goroutine, so responses may be sent out of order.
func (s *Server) serve(frames frameConn) {
	defer s.wg.Done()

	s.accepted.Add(1)

	conn := &serverConn{frames: frames}

	s.connsMtx.Lock()
	if s.closed {
		s.connsMtx.Unlock()
		_ = frames.close()

		return
	}
	s.conns[conn] = struct{}{}
	s.connsMtx.Unlock()

	defer func() {
		s.connsMtx.Lock()
		delete(s.conns, conn)
		s.connsMtx.Unlock()

		_ = frames.close()
	}()

	for {
		msg, err := frames.read()
		if err != nil {
			return
		}

		msg = bytes.TrimSpace(msg)
		if len(msg) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(msg, &req); err != nil {
			s.t.Logf("electrumtest: bad request %q: %v", msg, err)
			continue
		}

		s.callsMtx.Lock()
		s.calls[req.Method]++
		s.callsMtx.Unlock()

		go s.answer(conn, req)
	}
}

// answer runs the handler of a request and sends its response.
func (s *Server) answer(conn *serverConn, req request) {
	s.handlersMtx.RLock()
	handler, ok := s.handlers[req.Method]
	s.handlersMtx.RUnlock()

	resp := response{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &RPCError{
			Code:    -32601,
			Message: "unknown method " + req.Method,
		}
		_ = conn.send(resp)

		return
	}

	result, err := handler(req.Params)

	var rpcErr *RPCError
	switch {
	case errors.Is(err, ErrNoReply):
		return

	case errors.As(err, &rpcErr):
		resp.Error = rpcErr

	case err != nil:
		resp.Error = &RPCError{Code: -32603, Message: err.Error()}

	default:
		resp.Result = result
	}

	_ = conn.send(resp)
}

// UnusedAddress returns a local address nothing listens on.
func UnusedAddress(t testing.TB) (string, uint16) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().(*net.TCPAddr)
	require.NoError(t, listener.Close())

	return addr.IP.String(), uint16(addr.Port)
}
