// Package money represents monetary amounts as integer minor units (cents).
//
// Amounts cross the JSON boundary as decimal numbers ("12.50" or 12.5) and are
// stored and computed as int64 cents, so split shares can be reconciled to
// sum exactly to a transaction amount.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a value cannot be parsed as an amount.
var ErrInvalidAmount = errors.New("invalid amount")

// minorUnits is the number of decimal places in the currency's minor unit.
const minorUnits = 2

// Amount is a monetary value in cents.
type Amount int64

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// FromDecimal converts a decimal value to cents, rounding half away from zero
// on the third decimal place. Values outside the int64 cents range are
// rejected with ErrInvalidAmount.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	cents := d.Shift(minorUnits).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	return Amount(cents.IntPart()), nil
}

// HasCents reports whether d needs no more than the currency's minor unit
// precision.
func HasCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(minorUnits))
}

// Add returns a+b, or ErrInvalidAmount if the sum overflows.
func Add(a, b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%w: sum is out of range", ErrInvalidAmount)
	}
	return a + b, nil
}

// Parse parses a decimal string such as "12.34" or "12,34".
func Parse(s string) (Amount, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants in tests and defaults.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -minorUnits)
}

// String renders the amount with two decimals, e.g. "12.50".
func (a Amount) String() string {
	return a.Decimal().StringFixed(minorUnits)
}

// Positive reports whether the amount is greater than zero.
func (a Amount) Positive() bool {
	return a > 0
}

// MarshalJSON renders the amount as a JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return ErrInvalidAmount
	}
	parsed, err := Parse(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
