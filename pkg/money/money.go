package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnits converts a decimal major-unit amount (e.g. "49.99") to the
// smallest currency unit (4999). Amounts with sub-cent precision are rejected
// rather than rounded; billing never rounds silently.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	scaled := amount.Mul(decimal.NewFromInt(100))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-cent precision", amount)
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits converts minor units back to a major-unit decimal.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
}

// Parse reads a major-unit amount string ("100.00") into a decimal.
func Parse(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return d, nil
}

// FeeBreakdown is the split of a task charge: the agreed task budget plus the
// platform service fee. Computed fresh per checkout; never persisted on its
// own so later fee-setting changes cannot drift past charges.
type FeeBreakdown struct {
	BaseAmount decimal.Decimal `json:"base_amount"`
	ServiceFee decimal.Decimal `json:"service_fee"`
	Total      decimal.Decimal `json:"total_charge"`
	Currency   string          `json:"currency"`
}

// NewFeeBreakdown computes base + fee exactly. Both inputs must be
// non-negative and the base must be positive.
func NewFeeBreakdown(base, fee decimal.Decimal, currency string) (FeeBreakdown, error) {
	if base.LessThanOrEqual(decimal.Zero) {
		return FeeBreakdown{}, fmt.Errorf("base amount must be positive, got %s", base)
	}
	if fee.IsNegative() {
		return FeeBreakdown{}, fmt.Errorf("service fee must not be negative, got %s", fee)
	}
	return FeeBreakdown{
		BaseAmount: base,
		ServiceFee: fee,
		Total:      base.Add(fee),
		Currency:   strings.ToUpper(strings.TrimSpace(currency)),
	}, nil
}

// TotalMinorUnits returns the total charge in minor units.
func (f FeeBreakdown) TotalMinorUnits() (int64, error) {
	return MinorUnits(f.Total)
}
