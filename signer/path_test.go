package signer

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcelectrum/txutil"
	"github.com/stretchr/testify/require"
)

const hardened = hdkeychain.HardenedKeyStart

// TestParsePath checks absolute path parsing and formatting.
func TestParsePath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		path    string
		want    DerivationPath
		str     string
		wantErr bool
	}{
		{
			name: "bip84 receive",
			path: "m/84'/0'/0'/0/5",
			want: DerivationPath{
				84 + hardened, hardened, hardened, 0, 5,
			},
			str: "m/84'/0'/0'/0/5",
		},
		{
			name: "h marks hardened",
			path: "m/44h/1h/2h",
			want: DerivationPath{
				44 + hardened, 1 + hardened, 2 + hardened,
			},
			str: "m/44'/1'/2'",
		},
		{
			name: "master",
			path: "m",
			want: DerivationPath{},
			str:  "m",
		},
		{
			name:    "relative",
			path:    "0/1",
			wantErr: true,
		},
		{
			name:    "not a number",
			path:    "m/84'/x",
			wantErr: true,
		},
		{
			name:    "index too large",
			path:    "m/2147483648",
			wantErr: true,
		},
		{
			name:    "empty element",
			path:    "m/0//1",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParsePath(tc.path)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidPath)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.str, got.String())
		})
	}
}

// TestParseRelativePath checks relative path parsing.
func TestParseRelativePath(t *testing.T) {
	t.Parallel()

	rel, err := ParseRelativePath("1'/7")
	require.NoError(t, err)
	require.Equal(t, DerivationPath{1 + hardened, 7}, rel)

	rel, err = ParseRelativePath("/3")
	require.NoError(t, err)
	require.Equal(t, DerivationPath{3}, rel)

	_, err = ParseRelativePath("m/0")
	require.ErrorIs(t, err, ErrInvalidPath)

	_, err = ParseRelativePath("")
	require.ErrorIs(t, err, ErrInvalidPath)
}

// TestDefaultPath checks the default path per config.
func TestDefaultPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "m/84'/0'/0'/0/0", DefaultPath(mainnetBIP84).String())
	require.Equal(t, "m/44'/1'/0'/0/0", DefaultPath(txutil.Config{
		Standard: txutil.StandardBIP44,
		Network:  txutil.NetworkTestnet,
	}).String())
}

// TestPathAppendAndIndex checks that Append never aliases the receiver and
// that Index strips the hardened offset.
func TestPathAppendAndIndex(t *testing.T) {
	t.Parallel()

	base := make(DerivationPath, 2, 8)
	base[0], base[1] = 84+hardened, hardened

	a := base.Append(DerivationPath{1})
	b := base.Append(DerivationPath{2})
	require.Equal(t, uint32(1), a.Index())
	require.Equal(t, uint32(2), b.Index())
	require.Equal(t, uint32(0), base.Index())
	require.Equal(t, uint32(0), DerivationPath{}.Index())
}
