package onboarding

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-backend/internal/payments"
	"github.com/taskhive/taskhive-backend/internal/profiles"
	"github.com/taskhive/taskhive-backend/pkg/airwallex"
	"github.com/taskhive/taskhive-backend/pkg/db/models"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/logger"
)

// stripeAPI is the slice of the Stripe Connect client onboarding needs.
type stripeAPI interface {
	CreateAccount(ctx context.Context, params *stripesdk.AccountParams) (*stripesdk.Account, error)
	GetAccount(ctx context.Context, id string) (*stripesdk.Account, error)
	CreateAccountLink(ctx context.Context, params *stripesdk.AccountLinkParams) (*stripesdk.AccountLink, error)
	CreateLoginLink(ctx context.Context, accountID string) (*stripesdk.LoginLink, error)
}

// airwallexAPI is the slice of the Airwallex client onboarding needs.
type airwallexAPI interface {
	CreateCustomer(ctx context.Context, params airwallex.CreateCustomerParams) (*airwallex.Customer, error)
}

// ServiceParams groups dependencies for the onboarding service.
type ServiceParams struct {
	ActiveProvider enums.PaymentProvider
	Profiles       profiles.Repository
	Stripe         stripeAPI
	Airwallex      airwallexAPI
	BaseURL        string
	Logger         *logger.Logger
}

// Service manages helper payout credentials and requester provisioning for
// the active provider.
type Service struct {
	provider  enums.PaymentProvider
	profiles  profiles.Repository
	stripe    stripeAPI
	airwallex airwallexAPI
	baseURL   string
	logg      *logger.Logger
}

// NewService builds an onboarding service.
func NewService(params ServiceParams) (*Service, error) {
	if !params.ActiveProvider.IsValid() {
		return nil, errors.New("active provider is required")
	}
	if params.Profiles == nil {
		return nil, errors.New("profiles repository is required")
	}
	return &Service{
		provider:  params.ActiveProvider,
		profiles:  params.Profiles,
		stripe:    params.Stripe,
		airwallex: params.Airwallex,
		baseURL:   strings.TrimRight(params.BaseURL, "/"),
		logg:      params.Logger,
	}, nil
}

// StartOnboardingInput carries provider-specific credential material. Only
// the field matching the active provider is read.
type StartOnboardingInput struct {
	UserID      uuid.UUID
	PayoutEmail string
	BankIBAN    string
	ReturnURL   string
	RefreshURL  string
}

// OnboardingResult is the provider-agnostic onboarding shape. OnboardingURL
// is only set for providers with a hosted onboarding flow.
type OnboardingResult struct {
	Provider      enums.PaymentProvider  `json:"provider"`
	Status        enums.OnboardingStatus `json:"status"`
	OnboardingURL string                 `json:"onboarding_url,omitempty"`
	AccountRef    string                 `json:"account_ref,omitempty"`
}

// StartOnboarding registers the helper's payout destination for the active
// provider. Stripe gets a hosted account-link flow; PayPal and Airwallex
// onboard by storing the destination directly.
func (s *Service) StartOnboarding(ctx context.Context, input StartOnboardingInput) (*OnboardingResult, error) {
	user, err := s.loadUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	switch s.provider {
	case enums.ProviderStripe:
		return s.startStripeOnboarding(ctx, user, input)
	case enums.ProviderPayPal:
		return s.savePayoutEmail(ctx, user, input.PayoutEmail)
	case enums.ProviderAirwallex:
		return s.saveBankIBAN(ctx, user, input.BankIBAN)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeConfig, fmt.Sprintf("no onboarding flow for provider %q", s.provider))
	}
}

func (s *Service) startStripeOnboarding(ctx context.Context, user *models.User, input StartOnboardingInput) (*OnboardingResult, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "stripe client not configured")
	}

	accountRef := ""
	if user.StripeAccountRef != nil {
		accountRef = strings.TrimSpace(*user.StripeAccountRef)
	}
	if accountRef == "" {
		account, err := s.stripe.CreateAccount(ctx, &stripesdk.AccountParams{
			Type:  stripesdk.String(string(stripesdk.AccountTypeExpress)),
			Email: stripesdk.String(user.Email),
			Capabilities: &stripesdk.AccountCapabilitiesParams{
				Transfers: &stripesdk.AccountCapabilitiesTransfersParams{
					Requested: stripesdk.Bool(true),
				},
			},
			Metadata: map[string]string{"user_id": user.ID.String()},
		})
		if err != nil {
			return nil, wrapProviderErr(err, "creating stripe connected account")
		}
		accountRef = account.ID
		if err := s.profiles.SetStripeAccountRef(ctx, user.ID, accountRef); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing stripe account ref")
		}
	}

	link, err := s.stripe.CreateAccountLink(ctx, &stripesdk.AccountLinkParams{
		Account:    stripesdk.String(accountRef),
		ReturnURL:  stripesdk.String(s.resolveURL(input.ReturnURL, "/onboarding/return")),
		RefreshURL: stripesdk.String(s.resolveURL(input.RefreshURL, "/onboarding/refresh")),
		Type:       stripesdk.String(string(stripesdk.AccountLinkTypeAccountOnboarding)),
	})
	if err != nil {
		return nil, wrapProviderErr(err, "creating stripe account link")
	}

	if s.logg != nil {
		logCtx := s.logg.WithProvider(ctx, string(enums.ProviderStripe))
		s.logg.Info(logCtx, fmt.Sprintf("stripe onboarding link issued for account %s", accountRef))
	}
	return &OnboardingResult{
		Provider:      enums.ProviderStripe,
		Status:        enums.OnboardingInProgress,
		OnboardingURL: link.URL,
		AccountRef:    accountRef,
	}, nil
}

func (s *Service) savePayoutEmail(ctx context.Context, user *models.User, email string) (*OnboardingResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payoutEmail is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payoutEmail is not a valid email address")
	}
	if err := s.profiles.SetPayPalPayoutEmail(ctx, user.ID, email); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing payout email")
	}
	return &OnboardingResult{
		Provider: enums.ProviderPayPal,
		Status:   enums.OnboardingComplete,
	}, nil
}

func (s *Service) saveBankIBAN(ctx context.Context, user *models.User, iban string) (*OnboardingResult, error) {
	iban = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(iban), " ", ""))
	if iban == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bankIban is required")
	}
	if len(iban) < 15 || len(iban) > 34 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bankIban length is out of range")
	}
	if err := s.profiles.SetAirwallexBankIBAN(ctx, user.ID, iban); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing bank iban")
	}
	return &OnboardingResult{
		Provider: enums.ProviderAirwallex,
		Status:   enums.OnboardingComplete,
	}, nil
}

// StatusResult reports how far the helper has progressed.
type StatusResult struct {
	Provider     enums.PaymentProvider  `json:"provider"`
	Status       enums.OnboardingStatus `json:"status"`
	MissingField string                 `json:"missing_field,omitempty"`
}

// Status answers whether the helper can receive payouts under the active
// provider. Stripe answers from the live account when a ref is stored, since
// hosted onboarding can be abandoned halfway.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*StatusResult, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{Provider: s.provider}

	if s.provider == enums.ProviderStripe && s.stripe != nil {
		if ref := derefTrimmed(user.StripeAccountRef); ref != "" {
			account, err := s.stripe.GetAccount(ctx, ref)
			if err != nil {
				return nil, wrapProviderErr(err, "fetching stripe account")
			}
			if account.PayoutsEnabled && account.DetailsSubmitted {
				result.Status = enums.OnboardingComplete
			} else {
				result.Status = enums.OnboardingInProgress
			}
			return result, nil
		}
	}

	result.Status = profiles.OnboardingStatus(user, s.provider)
	if result.Status != enums.OnboardingComplete {
		result.MissingField = missingField(s.provider)
	}
	return result, nil
}

// CustomerResult reports the provider-side customer mapping.
type CustomerResult struct {
	CustomerRef string `json:"customer_ref"`
	Created     bool   `json:"created"`
}

// ProvisionCustomer creates a provider-side customer object for the
// requester. Only the card/wallet provider keeps customer objects; the
// others return NOT_SUPPORTED so callers can branch.
func (s *Service) ProvisionCustomer(ctx context.Context, userID uuid.UUID) (*CustomerResult, error) {
	if s.provider != enums.ProviderAirwallex {
		return nil, pkgerrors.New(pkgerrors.CodeNotSupported,
			fmt.Sprintf("customer provisioning is not supported for provider %q", s.provider))
	}
	if s.airwallex == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "airwallex client not configured")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ref := derefTrimmed(user.ProviderCustomerRef); ref != "" {
		return &CustomerResult{CustomerRef: ref}, nil
	}

	customer, err := s.airwallex.CreateCustomer(ctx, airwallex.CreateCustomerParams{
		RequestID:          uuid.NewString(),
		MerchantCustomerID: user.ID.String(),
		Email:              user.Email,
	})
	if err != nil {
		return nil, wrapProviderErr(err, "creating airwallex customer")
	}
	if err := s.profiles.SetProviderCustomerRef(ctx, user.ID, customer.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing customer ref")
	}
	return &CustomerResult{CustomerRef: customer.ID, Created: true}, nil
}

// DashboardResult carries the single-use dashboard URL.
type DashboardResult struct {
	URL string `json:"url"`
}

// DashboardAccess issues a Stripe Express login link for the helper. Only
// meaningful for the connected-account provider.
func (s *Service) DashboardAccess(ctx context.Context, userID uuid.UUID) (*DashboardResult, error) {
	if err := payments.RequireEnabled(s.provider, enums.ProviderStripe); err != nil {
		return nil, err
	}
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "stripe client not configured")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	cred, err := profiles.ResolvePayoutCredential(user, enums.ProviderStripe)
	if err != nil {
		return nil, err
	}

	link, err := s.stripe.CreateLoginLink(ctx, cred.StripeAccountRef)
	if err != nil {
		return nil, wrapProviderErr(err, "creating stripe login link")
	}
	return &DashboardResult{URL: link.URL}, nil
}

func (s *Service) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	user, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	return user, nil
}

func (s *Service) resolveURL(override, path string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	return s.baseURL + path
}

func missingField(provider enums.PaymentProvider) string {
	switch provider {
	case enums.ProviderStripe:
		return "stripe_account_ref"
	case enums.ProviderAirwallex:
		return "airwallex_bank_iban"
	case enums.ProviderPayPal:
		return "paypal_payout_email"
	default:
		return ""
	}
}

func derefTrimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func wrapProviderErr(err error, msg string) error {
	if appErr := pkgerrors.As(err); appErr != nil {
		return appErr
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
