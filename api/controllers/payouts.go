package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taskhive/taskhive-backend/api/responses"
	"github.com/taskhive/taskhive-backend/api/validators"
	payoutsvc "github.com/taskhive/taskhive-backend/internal/payouts"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/logger"
	"github.com/taskhive/taskhive-backend/pkg/metrics"
)

// CreatePayout initiates a transfer to a helper.
func CreatePayout(svc *payoutsvc.Service, paymentMetrics *metrics.PaymentMetrics, provider enums.PaymentProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		if _, err := authenticatedUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPayoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid amount %q", payload.Amount)))
			return
		}

		idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

		result, err := svc.CreatePayout(r.Context(), payoutsvc.CreatePayoutInput{
			TaskID:         payload.TaskID,
			HelperID:       payload.HelperID,
			Amount:         amount,
			Currency:       payload.Currency,
			PayoutEmail:    payload.PayoutEmail,
			IdempotencyKey: idempotencyKey,
			SimulatePayout: payload.SimulatePayout,
		})
		if err != nil {
			observePayout(paymentMetrics, provider, "error")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		observePayout(paymentMetrics, provider, "initiated")
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PayoutStatus polls the provider and reconciles the persisted payout state.
func PayoutStatus(svc *payoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		raw := strings.TrimSpace(r.URL.Query().Get("payoutId"))
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payoutId query parameter required"))
			return
		}
		payoutID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payoutId %q", raw)))
			return
		}

		result, err := svc.PayoutStatus(r.Context(), payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type createPayoutRequest struct {
	TaskID         *uuid.UUID `json:"task_id,omitempty" validate:"omitempty,uuid4"`
	HelperID       *uuid.UUID `json:"helper_id,omitempty" validate:"omitempty,uuid4"`
	Amount         string     `json:"amount" validate:"required"`
	Currency       string     `json:"currency" validate:"required,len=3"`
	PayoutEmail    string     `json:"payout_email,omitempty" validate:"omitempty,email"`
	SimulatePayout bool       `json:"simulate_payout,omitempty"`
}

func observePayout(paymentMetrics *metrics.PaymentMetrics, provider enums.PaymentProvider, outcome string) {
	if paymentMetrics == nil {
		return
	}
	paymentMetrics.IncPayout(string(provider), outcome)
}
