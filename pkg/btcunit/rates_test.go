package btcunit

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

// TestParseBTCPerKVByte checks that server estimates given in BTC/kvB are
// scaled to satoshis exactly.
func TestParseBTCPerKVByte(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected btcutil.Amount
		vbRate   string
		wantErr  bool
	}{
		{
			name:     "min relay fee",
			input:    "0.00001",
			expected: 1000,
			vbRate:   "1.000 sat/vb",
		},
		{
			name:     "fractional sat per vb",
			input:    "0.00012345",
			expected: 12345,
			vbRate:   "12.345 sat/vb",
		},
		{
			name:     "zero",
			input:    "0",
			expected: 0,
			vbRate:   "0.000 sat/vb",
		},
		{
			name:    "negative",
			input:   "-1",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "fast",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rate, err := ParseBTCPerKVByte(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, rate.Sats())
			require.True(t, rate.Equal(NewSatPerKVByte(tc.expected)))
			require.Equal(t, tc.vbRate, rate.ToSatPerVByte().String())
		})
	}
}

// TestParseNegativeFeeRate makes sure a negative estimate maps to the
// sentinel error.
func TestParseNegativeFeeRate(t *testing.T) {
	t.Parallel()

	_, err := ParseBTCPerKVByte("-0.0001")
	require.ErrorIs(t, err, ErrNegativeFeeRate)
}

// TestCalcSatPerVByte checks the effective rate of a fee over a size.
func TestCalcSatPerVByte(t *testing.T) {
	t.Parallel()

	// Arrange: a 141 vb tx paying 1410 sats.
	rate := CalcSatPerVByte(1410, 141)

	// Assert: the rate is exactly 10 sat/vb and converts both ways.
	require.True(t, rate.Equal(NewSatPerVByte(10)))
	require.True(t, rate.ToSatPerKVByte().Equal(NewSatPerKVByte(10000)))
	require.Equal(t, btcutil.Amount(1410), rate.FeeForVSize(141))
	require.Equal(t, "10.000 sat/vb", rate.String())

	// A zero size never divides by zero.
	require.True(t, CalcSatPerVByte(1000, 0).Equal(NewSatPerVByte(0)))
}

// TestFeeForVSizeRoundsDown checks that fractional fees are truncated.
func TestFeeForVSizeRoundsDown(t *testing.T) {
	t.Parallel()

	rate := NewSatPerKVByte(1500)

	// 1.5 sat/vb * 141 vb = 211.5 sats.
	require.Equal(t, btcutil.Amount(211), rate.FeeForVSize(141))
	require.True(t, NewSatPerKVByte(1000).LessThan(rate))
	require.Equal(t, "1500.000 sat/kvb", rate.String())
}
