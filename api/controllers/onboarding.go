package controllers

import (
	"net/http"

	"github.com/taskhive/taskhive-backend/api/responses"
	"github.com/taskhive/taskhive-backend/api/validators"
	onboardingsvc "github.com/taskhive/taskhive-backend/internal/onboarding"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/logger"
)

// StartOnboarding registers the caller's payout destination with the active
// provider.
func StartOnboarding(svc *onboardingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "onboarding service unavailable"))
			return
		}

		userID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload startOnboardingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.StartOnboarding(r.Context(), onboardingsvc.StartOnboardingInput{
			UserID:      userID,
			PayoutEmail: payload.PayoutEmail,
			BankIBAN:    payload.BankIBAN,
			ReturnURL:   payload.ReturnURL,
			RefreshURL:  payload.RefreshURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// OnboardingStatus reports whether the caller can receive payouts.
func OnboardingStatus(svc *onboardingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "onboarding service unavailable"))
			return
		}

		userID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Status(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ProvisionCustomer creates a provider-side customer object for the caller.
func ProvisionCustomer(svc *onboardingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "onboarding service unavailable"))
			return
		}

		userID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ProvisionCustomer(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// Dashboard issues a single-use provider dashboard link for the caller.
func Dashboard(svc *onboardingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "onboarding service unavailable"))
			return
		}

		userID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.DashboardAccess(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type startOnboardingRequest struct {
	PayoutEmail string `json:"payout_email,omitempty" validate:"omitempty,email"`
	BankIBAN    string `json:"bank_iban,omitempty"`
	ReturnURL   string `json:"return_url,omitempty" validate:"omitempty,url"`
	RefreshURL  string `json:"refresh_url,omitempty" validate:"omitempty,url"`
}
