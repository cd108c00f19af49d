// Package money renders ledger amounts with exactly two fractional digits.
package money

import (
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every amount.
const Scale = 2

// Amount is a decimal that always serializes as a fixed-point string such
// as "100.00". Arithmetic goes through the embedded decimal.
type Amount struct {
	decimal.Decimal
}

// Of wraps d, rounding to Scale digits.
func Of(d decimal.Decimal) Amount {
	return Amount{Decimal: d.Round(Scale)}
}

// Zero is 0.00.
func Zero() Amount {
	return Amount{Decimal: decimal.Zero}
}

// String returns the fixed-point form.
func (a Amount) String() string {
	return a.StringFixed(Scale)
}

// MarshalJSON quotes the fixed-point form so no precision is lost in transit.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.StringFixed(Scale) + `"`), nil
}

// HasScale reports whether d needs no more than Scale fractional digits.
func HasScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Scale))
}
