// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user input
// and formatting cents in a display currency.
package core

import (
	"bytes"
	"encoding/json"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for display when no currency is configured.
const DefaultCurrency = "USD"

// maxAmountUnits caps a single amount so balances can never overflow int64 cents.
var maxAmountUnits = decimal.New(1, 12)

// Exponent window for parsed amounts, checked before any comparison or
// rounding since both rescale the decimal to a common exponent.
const (
	minAmountExp = -18
	maxAmountExp = 12
)

// Money is a fixed-point amount in cents. Ledger math never touches floats.
type Money struct {
	Cents int64
}

// AmountInput carries an amount exactly as the user supplied it. It decodes
// from a JSON string or a JSON number so API clients may send either.
type AmountInput string

func (a *AmountInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AmountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return ErrInvalidAmount
	}
	*a = AmountInput(n.String())
	return nil
}

// Parse converts the input to cents.
func (a AmountInput) Parse() (Money, error) {
	cents, err := ParseDecimalToCents(string(a))
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

// ParseDecimalToCents converts a decimal string to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators as well as
// exponent notation, and rounds half away from zero to two decimals.
// Zero is allowed; negative, non-finite and oversized values are rejected,
// as are exponents outside [-18, 12] however the mantissa is written.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,345") -> 1235, nil
//	ParseDecimalToCents("1e2") -> 10000, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if exp := d.Exponent(); exp < minAmountExp || exp > maxAmountExp {
		return 0, ErrInvalidAmount
	}
	if d.IsNegative() || d.GreaterThan(maxAmountUnits) {
		return 0, ErrInvalidAmount
	}
	return d.Round(2).Shift(2).IntPart(), nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(n Money) Money {
	return Money{Cents: m.Cents + n.Cents}
}

func (m Money) IsNegative() bool {
	return m.Cents < 0
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Format renders the amount in the given ISO currency, e.g. "$1,234.50".
// Unknown currency codes fall back to a plain two-decimal rendering.
func (m Money) Format(currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	if gomoney.GetCurrency(currency) == nil {
		return m.Decimal().StringFixed(2) + " " + currency
	}
	return gomoney.New(m.Cents, currency).Display()
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a major-unit number, e.g. 12.5.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}
