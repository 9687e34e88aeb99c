// Package core holds the domain model: kids, transactions, money and the
// partition scope tag.
//
// This file contains signed money parsing and formatting. Amounts are kept
// as integer cents; decimal arithmetic is only used at the string boundary.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in cents. Positive is a credit, negative a debit.
type Money struct {
	Cents int64
}

var centsFactor = decimal.NewFromInt(100)

// ParseAmount converts a signed decimal string to Money with half-up
// rounding past two decimal places. Both dot and comma separators are
// accepted. A zero result is rejected: a transaction with no effect cannot
// be recorded.
//
// Examples:
//
//	ParseAmount("25")     -> +2500 cents
//	ParseAmount("-5.00")  -> -500 cents
//	ParseAmount("12,346") -> +1235 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Mul(centsFactor).Round(0)
	if !cents.IsInteger() || cents.Abs().GreaterThan(decimal.NewFromInt(1<<53)) {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Cents: cents.IntPart()}
	if m.Cents == 0 {
		return Money{}, ErrZeroAmount
	}
	return m, nil
}

// Neg returns the amount with its sign flipped.
func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

// IsCredit reports whether the amount adds to a balance.
func (m Money) IsCredit() bool {
	return m.Cents > 0
}

// Decimal returns the amount in whole currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.Cents).Div(centsFactor)
}

// String renders the amount as a plain signed decimal, e.g. "-5.00".
// Currency-aware display lives in the currency package.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
