package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taskhive/taskhive-backend/internal/payments"
	"github.com/taskhive/taskhive-backend/pkg/airwallex"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/money"
)

// CreatePaymentInput is a standalone, task-less charge request.
type CreatePaymentInput struct {
	Amount   decimal.Decimal
	Currency string
}

// CreatePayment opens a bare payment intent without a task behind it. Only the
// intent-based provider supports this; session and order based providers
// require a task-scoped checkout, so they steer the caller there instead of
// failing generically.
func (s *Service) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CheckoutResult, error) {
	switch s.provider {
	case enums.ProviderStripe, enums.ProviderPayPal:
		return nil, pkgerrors.New(pkgerrors.CodeUseCreateCheckout,
			fmt.Sprintf("%s does not support standalone payments", s.provider))
	case enums.ProviderAirwallex:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeConfig, fmt.Sprintf("no payment flow for provider %q", s.provider))
	}

	if s.airwallex == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "airwallex client not configured")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	totalMinor, err := money.MinorUnits(input.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "converting amount to minor units")
	}

	orderRef := fmt.Sprintf("payment-standalone-%s", uuid.NewString())
	intent, err := s.airwallex.CreatePaymentIntent(ctx, airwallex.CreateIntentParams{
		RequestID:       orderRef,
		Amount:          input.Amount,
		Currency:        input.Currency,
		MerchantOrderID: orderRef,
	})
	if err != nil {
		return nil, wrapProviderErr(err, "creating standalone payment intent")
	}

	return &CheckoutResult{
		ID:               intent.ID,
		PaymentIntentRef: intent.ID,
		Amount:           totalMinor,
		Currency:         input.Currency,
		ClientSecret:     intent.ClientSecret,
	}, nil
}

// PaymentStatusResult is the normalized poll shape.
type PaymentStatusResult struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentStatus polls the provider for the state of a payment intent. Only the
// intent-based provider exposes client polling; everything else settles via
// webhooks.
func (s *Service) PaymentStatus(ctx context.Context, paymentIntentID string) (*PaymentStatusResult, error) {
	if err := payments.RequireEnabled(s.provider, enums.ProviderAirwallex); err != nil {
		return nil, err
	}
	if s.airwallex == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "airwallex client not configured")
	}
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentIntentId is required")
	}

	intent, err := s.airwallex.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, wrapProviderErr(err, "fetching payment intent")
	}
	minor, err := money.MinorUnits(intent.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "normalizing intent amount")
	}

	return &PaymentStatusResult{
		ID:       intent.ID,
		Status:   intent.Status,
		Amount:   minor,
		Currency: intent.Currency,
	}, nil
}
