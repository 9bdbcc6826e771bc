// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btcunit provides fee rate and transaction size units.
package btcunit

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
)

const (
	// kilo is a generic multiplier for kilo units.
	kilo = 1000

	// stringPrecision is the number of decimal places used when a rate is
	// formatted. Three places keep 1 sat/kvB visible as 0.001 sat/vB.
	stringPrecision = 3
)

var (
	// ErrNegativeFeeRate is returned when a fee rate below zero is parsed.
	ErrNegativeFeeRate = errors.New("negative fee rate")

	decKilo = decimal.NewFromInt(kilo)

	decSatPerBTC = decimal.NewFromInt(btcutil.SatoshiPerBitcoin)
)

// SatPerKVByte is a fee rate in satoshis per 1000 virtual bytes. It is the
// unit bitcoind and Electrum servers report estimates in, scaled from BTC to
// satoshis.
type SatPerKVByte struct {
	rate decimal.Decimal
}

// NewSatPerKVByte returns a fee rate of the given satoshis per kvB.
func NewSatPerKVByte(sats btcutil.Amount) SatPerKVByte {
	return SatPerKVByte{rate: decimal.NewFromInt(int64(sats))}
}

// ParseBTCPerKVByte parses a decimal BTC/kvB value, such as the result of
// `blockchain.estimatefee`, without going through a float.
func ParseBTCPerKVByte(btcPerKVB string) (SatPerKVByte, error) {
	btc, err := decimal.NewFromString(btcPerKVB)
	if err != nil {
		return SatPerKVByte{}, fmt.Errorf("parse fee rate %q: %w",
			btcPerKVB, err)
	}

	if btc.IsNegative() {
		return SatPerKVByte{}, fmt.Errorf("%w: %s", ErrNegativeFeeRate,
			btcPerKVB)
	}

	return SatPerKVByte{rate: btc.Mul(decSatPerBTC)}, nil
}

// ToSatPerVByte converts the rate to sat/vB.
func (s SatPerKVByte) ToSatPerVByte() SatPerVByte {
	return SatPerVByte{rate: s.rate.Div(decKilo)}
}

// FeeForVSize returns the fee for a tx of the given virtual size, rounded
// down to the satoshi.
func (s SatPerKVByte) FeeForVSize(vb VByte) btcutil.Amount {
	return s.ToSatPerVByte().FeeForVSize(vb)
}

// Sats returns the rate in whole satoshis per kvB, truncated.
func (s SatPerKVByte) Sats() btcutil.Amount {
	return btcutil.Amount(s.rate.IntPart())
}

// Equal returns true if both rates are the same.
func (s SatPerKVByte) Equal(other SatPerKVByte) bool {
	return s.rate.Equal(other.rate)
}

// LessThan returns true if the rate is below the other rate.
func (s SatPerKVByte) LessThan(other SatPerKVByte) bool {
	return s.rate.LessThan(other.rate)
}

// String returns the rate in sat/kvB.
func (s SatPerKVByte) String() string {
	return s.rate.StringFixed(stringPrecision) + " sat/kvb"
}

// SatPerVByte is a fee rate in satoshis per virtual byte.
type SatPerVByte struct {
	rate decimal.Decimal
}

// NewSatPerVByte returns a fee rate of the given satoshis per vB.
func NewSatPerVByte(sats btcutil.Amount) SatPerVByte {
	return SatPerVByte{rate: decimal.NewFromInt(int64(sats))}
}

// CalcSatPerVByte returns the rate paid by a tx of the given virtual size
// spending the given fee. A zero size yields a zero rate.
func CalcSatPerVByte(fee btcutil.Amount, vb VByte) SatPerVByte {
	if vb == 0 {
		return SatPerVByte{rate: decimal.Zero}
	}

	return SatPerVByte{rate: decimal.NewFromInt(int64(fee)).Div(
		decimal.NewFromInt(int64(vb)),
	)}
}

// ToSatPerKVByte converts the rate to sat/kvB.
func (s SatPerVByte) ToSatPerKVByte() SatPerKVByte {
	return SatPerKVByte{rate: s.rate.Mul(decKilo)}
}

// FeeForVSize returns the fee for a tx of the given virtual size, rounded
// down to the satoshi.
func (s SatPerVByte) FeeForVSize(vb VByte) btcutil.Amount {
	fee := s.rate.Mul(decimal.NewFromInt(int64(vb)))
	return btcutil.Amount(fee.Floor().IntPart())
}

// Equal returns true if both rates are the same.
func (s SatPerVByte) Equal(other SatPerVByte) bool {
	return s.rate.Equal(other.rate)
}

// LessThan returns true if the rate is below the other rate.
func (s SatPerVByte) LessThan(other SatPerVByte) bool {
	return s.rate.LessThan(other.rate)
}

// String returns the rate in sat/vB.
func (s SatPerVByte) String() string {
	return s.rate.StringFixed(stringPrecision) + " sat/vb"
}
