// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Protocol is the transport used to reach an Electrum server.
type Protocol string

const (
	// ProtocolTCP is plain TCP with newline-delimited messages.
	ProtocolTCP Protocol = "tcp"

	// ProtocolTLS is TCP wrapped in TLS with newline-delimited messages.
	ProtocolTLS Protocol = "tls"

	// ProtocolSSL is an alias of ProtocolTLS used by Electrum server
	// lists.
	ProtocolSSL Protocol = "ssl"

	// ProtocolWS is a plain WebSocket, one message per frame.
	ProtocolWS Protocol = "ws"

	// ProtocolWSS is a WebSocket over TLS, one message per frame.
	ProtocolWSS Protocol = "wss"
)

// IsTLS returns true if the protocol runs over TLS.
func (p Protocol) IsTLS() bool {
	return p == ProtocolTLS || p == ProtocolSSL || p == ProtocolWSS
}

// IsWebSocket returns true if the protocol frames messages as WebSocket
// frames.
func (p Protocol) IsWebSocket() bool {
	return p == ProtocolWS || p == ProtocolWSS
}

// valid returns true if the protocol is known.
func (p Protocol) valid() bool {
	switch p {
	case ProtocolTCP, ProtocolTLS, ProtocolSSL, ProtocolWS, ProtocolWSS:
		return true

	default:
		return false
	}
}

// Endpoint is the address of an Electrum server.
type Endpoint struct {
	// Host is the server host name or IP address.
	Host string

	// Port is the server port.
	Port uint16

	// Protocol is the transport to reach the server with.
	Protocol Protocol
}

// Address returns the host:port pair of the endpoint.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// URL returns the endpoint as a URL, such as tcp://host:50001.
func (e Endpoint) URL() string {
	return fmt.Sprintf("%s://%s", e.Protocol, e.Address())
}

// String returns the endpoint as a URL.
func (e Endpoint) String() string {
	return e.URL()
}

// validate checks that all fields of the endpoint are set and known.
func (e Endpoint) validate() error {
	if e.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}

	if e.Port == 0 {
		return fmt.Errorf("%w: missing port", ErrInvalidEndpoint)
	}

	if !e.Protocol.valid() {
		return fmt.Errorf("%w: unknown protocol %q", ErrInvalidEndpoint,
			string(e.Protocol))
	}

	return nil
}

// ParseEndpoint parses a server address. Two forms are accepted: a URL such
// as ssl://electrum.example.com:50002, and the host:port:t / host:port:s
// notation of Electrum server lists, where t is plain TCP and s is TLS.
func ParseEndpoint(s string) (Endpoint, error) {
	if strings.Contains(s, "://") {
		return parseEndpointURL(s)
	}

	// The short form always ends with a single protocol letter.
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidEndpoint, s)
	}

	var proto Protocol
	switch s[idx+1:] {
	case "t":
		proto = ProtocolTCP

	case "s":
		proto = ProtocolTLS

	default:
		return Endpoint{}, fmt.Errorf("%w: %q has no protocol suffix",
			ErrInvalidEndpoint, s)
	}

	host, portStr, err := net.SplitHostPort(s[:idx])
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	return newEndpoint(host, portStr, proto)
}

// parseEndpointURL parses the URL form of an endpoint.
func parseEndpointURL(s string) (Endpoint, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	return newEndpoint(
		u.Hostname(), u.Port(), Protocol(strings.ToLower(u.Scheme)),
	)
}

// newEndpoint builds and validates an endpoint from its parsed parts.
func newEndpoint(host, portStr string, proto Protocol) (Endpoint, error) {
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: bad port %q",
			ErrInvalidEndpoint, portStr)
	}

	ep := Endpoint{
		Host:     host,
		Port:     uint16(port),
		Protocol: proto,
	}

	if err := ep.validate(); err != nil {
		return Endpoint{}, err
	}

	return ep, nil
}
