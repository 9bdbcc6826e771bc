package electrum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseEndpoint checks both accepted notations.
func TestParseEndpoint(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected Endpoint
		err      bool
	}{
		{
			input: "tcp://electrum.example.com:50001",
			expected: Endpoint{
				Host: "electrum.example.com", Port: 50001,
				Protocol: ProtocolTCP,
			},
		},
		{
			input: "SSL://electrum.example.com:50002",
			expected: Endpoint{
				Host: "electrum.example.com", Port: 50002,
				Protocol: ProtocolSSL,
			},
		},
		{
			input: "wss://[::1]:50004",
			expected: Endpoint{
				Host: "::1", Port: 50004, Protocol: ProtocolWSS,
			},
		},
		{
			input: "electrum.example.com:50002:s",
			expected: Endpoint{
				Host: "electrum.example.com", Port: 50002,
				Protocol: ProtocolTLS,
			},
		},
		{
			input: "127.0.0.1:50001:t",
			expected: Endpoint{
				Host: "127.0.0.1", Port: 50001,
				Protocol: ProtocolTCP,
			},
		},
		{input: "http://electrum.example.com:80", err: true},
		{input: "tcp://electrum.example.com", err: true},
		{input: "tcp://electrum.example.com:70000", err: true},
		{input: "electrum.example.com:50002", err: true},
		{input: "electrum.example.com:50002:x", err: true},
		{input: "nohost", err: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()

			ep, err := ParseEndpoint(tc.input)
			if tc.err {
				require.ErrorIs(t, err, ErrInvalidEndpoint)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, ep)
		})
	}
}

// TestEndpointRoundTrip checks that the URL form of an endpoint parses back
// to the same endpoint.
func TestEndpointRoundTrip(t *testing.T) {
	t.Parallel()

	for _, proto := range []Protocol{
		ProtocolTCP, ProtocolTLS, ProtocolSSL, ProtocolWS, ProtocolWSS,
	} {
		for _, host := range []string{"example.org", "10.0.0.1", "::1"} {
			ep := Endpoint{Host: host, Port: 50001, Protocol: proto}

			parsed, err := ParseEndpoint(ep.String())
			require.NoError(t, err)
			require.Equal(t, ep, parsed)
		}
	}
}

// TestProtocolTraits checks the TLS and framing properties of each
// protocol.
func TestProtocolTraits(t *testing.T) {
	t.Parallel()

	require.False(t, ProtocolTCP.IsTLS())
	require.False(t, ProtocolTCP.IsWebSocket())
	require.True(t, ProtocolTLS.IsTLS())
	require.True(t, ProtocolSSL.IsTLS())
	require.False(t, ProtocolWS.IsTLS())
	require.True(t, ProtocolWS.IsWebSocket())
	require.True(t, ProtocolWSS.IsTLS())
	require.True(t, ProtocolWSS.IsWebSocket())
}
