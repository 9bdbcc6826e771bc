package signer

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcelectrum/txutil"
	"github.com/stretchr/testify/require"
)

// secp256k1N is the order of the secp256k1 group.
var secp256k1N = []byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe,
	0xba, 0xae, 0xdc, 0xe6, 0xaf, 0x48, 0xa0, 0x3b,
	0xbf, 0xd2, 0x5e, 0x8c, 0xd0, 0x36, 0x41, 0x41,
}

// TestNewPrivateKeySigner checks raw key validation.
func TestNewPrivateKeySigner(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		raw     []byte
		wantErr error
	}{
		{
			name: "valid key",
			raw:  testKeyBytes(t),
		},
		{
			name:    "short key",
			raw:     make([]byte, 31),
			wantErr: ErrInvalidPrivateKey,
		},
		{
			name:    "zero key",
			raw:     make([]byte, 32),
			wantErr: ErrInvalidPrivateKey,
		},
		{
			name:    "group order",
			raw:     secp256k1N,
			wantErr: ErrInvalidPrivateKey,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, err := NewPrivateKeySigner(tc.raw, mainnetBIP84)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, KindPrivateKey, s.Kind())
			require.Equal(t, mainnetBIP84, s.Config())
		})
	}
}

// TestPrivateKeySignerWIF checks WIF import and its network checks.
func TestPrivateKeySignerWIF(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	priv := testPrivKey(t)
	testnet := txutil.Config{
		Standard: txutil.StandardBIP84,
		Network:  txutil.NetworkTestnet,
	}

	wif, err := btcutil.NewWIF(priv, &chaincfg.TestNet3Params, true)
	require.NoError(t, err)

	s, err := NewPrivateKeySignerFromWIF(wif.String(), testnet)
	require.NoError(t, err)

	fromRaw, err := NewPrivateKeySigner(testKeyBytes(t), testnet)
	require.NoError(t, err)

	a, err := s.Address(ctx)
	require.NoError(t, err)
	b, err := fromRaw.Address(ctx)
	require.NoError(t, err)
	require.Equal(t, b, a)
	require.Regexp(t, "^tb1q", a)

	_, err = NewPrivateKeySignerFromWIF(wif.String(), mainnetBIP84)
	require.ErrorIs(t, err, ErrWrongNetwork)

	uncompressed, err := btcutil.NewWIF(
		priv, &chaincfg.TestNet3Params, false,
	)
	require.NoError(t, err)

	_, err = NewPrivateKeySignerFromWIF(uncompressed.String(), testnet)
	require.ErrorIs(t, err, ErrUncompressedKey)

	_, err = NewPrivateKeySignerFromWIF("not a wif", testnet)
	require.ErrorIs(t, err, ErrInvalidPrivateKey)
}

// TestPrivateKeySignerNotHD checks that the HD helpers refuse a raw key
// signer instead of returning a default value.
func TestPrivateKeySignerNotHD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	s, err := NewPrivateKeySigner(testKeyBytes(t), mainnetBIP84)
	require.NoError(t, err)

	_, err = Derive(ctx, s, "0")
	require.ErrorIs(t, err, ErrUnsupportedOperation)

	_, err = ExtendedPublicKey(ctx, s)
	require.ErrorIs(t, err, ErrUnsupportedOperation)

	_, err = PathOf(s)
	require.ErrorIs(t, err, ErrUnsupportedOperation)

	_, err = IndexOf(s)
	require.ErrorIs(t, err, ErrUnsupportedOperation)
}

// TestKindString checks the names of the signer kinds.
func TestKindString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "seed", KindSeed.String())
	require.Equal(t, "privkey", KindPrivateKey.String())
	require.Equal(t, "hardware", KindHardware.String())
	require.Equal(t, "unknown(9)", Kind(9).String())
}
