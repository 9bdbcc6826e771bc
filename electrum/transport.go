// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/btcsuite/websocket"
	"golang.org/x/net/proxy"
)

const (
	// DefaultDialTimeout is the time allowed to establish a connection,
	// including the TLS and WebSocket handshakes.
	DefaultDialTimeout = 30 * time.Second
)

// DialFunc dials a network connection. It has the signature of
// net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network,
	address string) (net.Conn, error)

// TransportConfig holds the dialing options of a session.
type TransportConfig struct {
	// TLSConfig is used for the tls, ssl and wss protocols. When nil, the
	// system roots are used and the server name is the endpoint host.
	TLSConfig *tls.Config

	// Proxy is the host:port of a SOCKS5 proxy, such as Tor, every
	// connection is made through. Empty means direct connections.
	Proxy string

	// ProxyUser and ProxyPass are the optional SOCKS5 credentials. Tor
	// uses distinct credentials to isolate circuits.
	ProxyUser string
	ProxyPass string

	// DialTimeout bounds connection establishment. Zero means
	// DefaultDialTimeout.
	DialTimeout time.Duration

	// Dial overrides the dialer used to open the underlying connection.
	Dial DialFunc
}

// dialTimeout returns the configured dial timeout or its default.
func (c *TransportConfig) dialTimeout() time.Duration {
	if c.DialTimeout <= 0 {
		return DefaultDialTimeout
	}

	return c.DialTimeout
}

// dialer returns the function used to open raw connections.
func (c *TransportConfig) dialer() (DialFunc, error) {
	if c.Dial != nil {
		return c.Dial, nil
	}

	direct := &net.Dialer{Timeout: c.dialTimeout()}
	if c.Proxy == "" {
		return direct.DialContext, nil
	}

	var auth *proxy.Auth
	if c.ProxyUser != "" || c.ProxyPass != "" {
		auth = &proxy.Auth{User: c.ProxyUser, Password: c.ProxyPass}
	}

	socks, err := proxy.SOCKS5("tcp", c.Proxy, auth, direct)
	if err != nil {
		return nil, fmt.Errorf("unable to create socks5 dialer: %w", err)
	}

	if ctxDialer, ok := socks.(proxy.ContextDialer); ok {
		return ctxDialer.DialContext, nil
	}

	return func(_ context.Context, network, address string) (net.Conn,
		error) {

		return socks.Dial(network, address)
	}, nil
}

// tlsConfig returns the TLS config to use for the given endpoint.
func (c *TransportConfig) tlsConfig(ep Endpoint) *tls.Config {
	var cfg *tls.Config
	if c.TLSConfig != nil {
		cfg = c.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if cfg.ServerName == "" {
		cfg.ServerName = ep.Host
	}

	return cfg
}

// msgConn is a duplex connection carrying one JSON message per frame.
type msgConn interface {
	// ReadMessage blocks until the next message arrives.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one message.
	WriteMessage(msg []byte) error

	// Close closes the connection, unblocking pending reads.
	Close() error
}

// streamConn frames messages on a byte stream by terminating each of them
// with a newline, as Electrum does over TCP and TLS.
type streamConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

// newStreamConn wraps a byte stream connection.
func newStreamConn(conn net.Conn) *streamConn {
	return &streamConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// ReadMessage returns the next non-empty line.
func (s *streamConn) ReadMessage() ([]byte, error) {
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			return nil, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		return line, nil
	}
}

// WriteMessage writes the message followed by a newline.
func (s *streamConn) WriteMessage(msg []byte) error {
	frame := make([]byte, 0, len(msg)+1)
	frame = append(frame, msg...)
	frame = append(frame, '\n')

	_, err := s.conn.Write(frame)

	return err
}

// Close closes the underlying stream.
func (s *streamConn) Close() error {
	return s.conn.Close()
}

// wsConn carries one message per WebSocket text frame.
type wsConn struct {
	conn *websocket.Conn
}

// ReadMessage returns the payload of the next data frame.
func (w *wsConn) ReadMessage() ([]byte, error) {
	_, msg, err := w.conn.ReadMessage()
	return msg, err
}

// WriteMessage sends the message as a single text frame.
func (w *wsConn) WriteMessage(msg []byte) error {
	return w.conn.WriteMessage(websocket.TextMessage, msg)
}

// Close closes the WebSocket connection.
func (w *wsConn) Close() error {
	return w.conn.Close()
}

// dialTransport opens a framed connection to the endpoint.
func dialTransport(ctx context.Context, ep Endpoint,
	cfg *TransportConfig) (msgConn, error) {

	dial, err := cfg.dialer()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.dialTimeout())
	defer cancel()

	if ep.Protocol.IsWebSocket() {
		return dialWebSocket(ctx, ep, cfg, dial)
	}

	raw, err := dial(ctx, "tcp", ep.Address())
	if err != nil {
		return nil, err
	}

	if !ep.Protocol.IsTLS() {
		return newStreamConn(raw), nil
	}

	tlsConn := tls.Client(raw, cfg.tlsConfig(ep))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return newStreamConn(tlsConn), nil
}

// dialWebSocket opens a WebSocket connection to the endpoint. The TLS
// handshake of wss endpoints is done by the WebSocket dialer.
func dialWebSocket(ctx context.Context, ep Endpoint, cfg *TransportConfig,
	dial DialFunc) (msgConn, error) {

	handshakeTimeout := cfg.dialTimeout()
	if deadline, ok := ctx.Deadline(); ok {
		handshakeTimeout = time.Until(deadline)
	}

	dialer := websocket.Dialer{
		NetDial: func(network, address string) (net.Conn, error) {
			return dial(ctx, network, address)
		},
		TLSClientConfig:  cfg.tlsConfig(ep),
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.Dial(ep.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}

	return &wsConn{conn: conn}, nil
}
