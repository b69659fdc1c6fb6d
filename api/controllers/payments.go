package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taskhive/taskhive-backend/api/middleware"
	"github.com/taskhive/taskhive-backend/api/responses"
	"github.com/taskhive/taskhive-backend/api/validators"
	checkoutsvc "github.com/taskhive/taskhive-backend/internal/checkout"
	"github.com/taskhive/taskhive-backend/internal/payments"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/logger"
	"github.com/taskhive/taskhive-backend/pkg/metrics"
)

// CreateCheckout opens a task-scoped charge with the active provider.
func CreateCheckout(svc *checkoutsvc.Service, paymentMetrics *metrics.PaymentMetrics, provider enums.PaymentProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		requesterID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateCheckout(r.Context(), checkoutsvc.CreateCheckoutInput{
			TaskID:      payload.TaskID,
			RequesterID: requesterID,
			ReturnURL:   payload.ReturnURL,
			CancelURL:   payload.CancelURL,
		})
		if err != nil {
			observeCheckout(paymentMetrics, provider, "error")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		observeCheckout(paymentMetrics, provider, "created")
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CreatePayment opens a standalone charge with no task behind it.
func CreatePayment(svc *checkoutsvc.Service, paymentMetrics *metrics.PaymentMetrics, provider enums.PaymentProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		if _, err := authenticatedUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid amount %q", payload.Amount)))
			return
		}

		result, err := svc.CreatePayment(r.Context(), checkoutsvc.CreatePaymentInput{
			Amount:   amount,
			Currency: payload.Currency,
		})
		if err != nil {
			observeCheckout(paymentMetrics, provider, "error")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		observeCheckout(paymentMetrics, provider, "created")
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PaymentStatus polls the provider for the state of a payment intent.
func PaymentStatus(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		intentID := strings.TrimSpace(r.URL.Query().Get("paymentIntentId"))
		if intentID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "paymentIntentId query parameter required"))
			return
		}

		result, err := svc.PaymentStatus(r.Context(), intentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ProviderInfo reports which provider this deployment charges through.
func ProviderInfo(provider enums.PaymentProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, providerInfoResponse{
			Provider:           string(provider),
			IsAirwallexEnabled: payments.IsEnabled(provider, enums.ProviderAirwallex),
			IsStripeEnabled:    payments.IsEnabled(provider, enums.ProviderStripe),
			IsPayPalEnabled:    payments.IsEnabled(provider, enums.ProviderPayPal),
			Message:            fmt.Sprintf("payments are processed via %s", provider),
		})
	}
}

type createCheckoutRequest struct {
	TaskID    uuid.UUID `json:"task_id" validate:"required,uuid4"`
	ReturnURL string    `json:"return_url,omitempty" validate:"omitempty,url"`
	CancelURL string    `json:"cancel_url,omitempty" validate:"omitempty,url"`
}

type createPaymentRequest struct {
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
}

type providerInfoResponse struct {
	Provider           string `json:"provider"`
	IsAirwallexEnabled bool   `json:"is_airwallex_enabled"`
	IsStripeEnabled    bool   `json:"is_stripe_enabled"`
	IsPayPalEnabled    bool   `json:"is_paypal_enabled"`
	Message            string `json:"message"`
}

func authenticatedUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func observeCheckout(paymentMetrics *metrics.PaymentMetrics, provider enums.PaymentProvider, outcome string) {
	if paymentMetrics == nil {
		return
	}
	paymentMetrics.IncCheckout(string(provider), outcome)
}
