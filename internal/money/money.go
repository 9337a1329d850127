// Package money implements the Money value type: a signed decimal with
// exactly two fractional digits that round-trips losslessly through
// the amount-format parsers in internal/format.
//
// float64 is deliberately avoided here: the original statement
// arithmetic (balance reconciliation to within a few thousandths)
// is noise-sensitive to binary floating point rounding, so amounts
// are carried on shopspring/decimal.Decimal end to end.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a signed monetary amount rounded to exactly two decimal
// places. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{d: decimal.Zero}

// New builds a Money from a decimal, rounding to two places.
func New(d decimal.Decimal) Money {
	return Money{d: d.Round(2)}
}

// NewFromFloat builds a Money from a float64, rounding to two places.
// Intended for literals and tests, not for parsing user input.
func NewFromFloat(f float64) Money {
	return Money{d: decimal.NewFromFloat(f).Round(2)}
}

// Parse parses a plain decimal string (no currency symbol or sign
// markers; those are stripped by internal/format before reaching
// here) into a Money.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("money: %w", err)
	}
	return New(d), nil
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return New(m.d.Add(other.d))
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return New(m.d.Sub(other.d))
}

// Neg returns -m.
func (m Money) Neg() Money {
	return New(m.d.Neg())
}

// Abs returns |m|.
func (m Money) Abs() Money {
	return New(m.d.Abs())
}

// Cmp returns -1, 0, or 1 as m is less than, equal to, or greater
// than other.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

// WithinTolerance reports whether |m - other| <= tol, where tol is a
// plain decimal tolerance such as 0.005.
func (m Money) WithinTolerance(other Money, tol decimal.Decimal) bool {
	diff := m.d.Sub(other.d).Abs()
	return diff.Cmp(tol) <= 0
}

// IsZero reports whether m is exactly 0.00.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// Sign returns -1, 0, or 1 depending on the sign of m.
func (m Money) Sign() int {
	return m.d.Sign()
}

// String renders m with exactly two fractional digits, e.g. "-1234.56".
func (m Money) String() string {
	return m.d.StringFixed(2)
}

// Decimal exposes the underlying decimal.Decimal for callers that need
// arithmetic helpers this type doesn't wrap.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// MarshalJSON renders m as a quoted JSON string, e.g. "-1234.56",
// matching the wire format in spec §6.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON
// number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("money: unmarshal %q: %w", data, err)
	}
	m.d = d.Round(2)
	return nil
}

// Value implements driver.Valuer so Money can be written to a database
// column, matching the teacher's convention of making domain value
// types SQL-aware even where no storage layer is wired yet.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
