package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/taskhive/taskhive-backend/internal/settings"
	"github.com/taskhive/taskhive-backend/pkg/config"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/money"
)

type settingsReader interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// FeeCalculator resolves the platform service fee and computes charge
// breakdowns. The fee comes from the settings table when an operator override
// exists, otherwise from config.
type FeeCalculator struct {
	settings settingsReader
	cfg      config.PaymentsConfig
}

func NewFeeCalculator(settingsRepo settingsReader, cfg config.PaymentsConfig) *FeeCalculator {
	return &FeeCalculator{settings: settingsRepo, cfg: cfg}
}

// ServiceFee returns the current platform fee in major units.
func (f *FeeCalculator) ServiceFee(ctx context.Context) (decimal.Decimal, error) {
	raw := f.cfg.ServiceFee
	if f.settings != nil {
		if override, ok, err := f.settings.Get(ctx, settings.KeyServiceFee); err != nil {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading service fee setting")
		} else if ok {
			raw = override
		}
	}

	fee, err := money.Parse(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeConfig, err, fmt.Sprintf("invalid service fee %q", raw))
	}
	if fee.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeConfig, fmt.Sprintf("service fee must not be negative, got %s", fee))
	}
	return fee, nil
}

// Breakdown computes base + fee for a charge in the platform currency.
func (f *FeeCalculator) Breakdown(ctx context.Context, base decimal.Decimal, currency string) (money.FeeBreakdown, error) {
	fee, err := f.ServiceFee(ctx)
	if err != nil {
		return money.FeeBreakdown{}, err
	}
	if currency == "" {
		currency = f.cfg.Currency
	}
	breakdown, err := money.NewFeeBreakdown(base, fee, currency)
	if err != nil {
		return money.FeeBreakdown{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "computing fee breakdown")
	}
	return breakdown, nil
}
