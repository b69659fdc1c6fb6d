package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	stripesdk "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-backend/internal/payments"
	"github.com/taskhive/taskhive-backend/internal/profiles"
	"github.com/taskhive/taskhive-backend/internal/tasks"
	"github.com/taskhive/taskhive-backend/pkg/airwallex"
	"github.com/taskhive/taskhive-backend/pkg/db/models"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/logger"
	"github.com/taskhive/taskhive-backend/pkg/money"
	"github.com/taskhive/taskhive-backend/pkg/paypal"
)

// airwallexAPI is the slice of the Airwallex client checkout needs.
type airwallexAPI interface {
	CreatePaymentIntent(ctx context.Context, params airwallex.CreateIntentParams) (*airwallex.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*airwallex.PaymentIntent, error)
}

// stripeAPI is the slice of the Stripe Connect client checkout needs.
type stripeAPI interface {
	CreateCheckoutSession(ctx context.Context, params *stripesdk.CheckoutSessionParams) (*stripesdk.CheckoutSession, error)
}

// paypalAPI is the slice of the PayPal client checkout needs.
type paypalAPI interface {
	CreateOrder(ctx context.Context, params paypal.CreateOrderParams) (*paypal.Order, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	ActiveProvider enums.PaymentProvider
	Tasks          tasks.Repository
	Profiles       profiles.Repository
	Fees           *payments.FeeCalculator
	Airwallex      airwallexAPI
	Stripe         stripeAPI
	PayPal         paypalAPI
	BaseURL        string
	Logger         *logger.Logger
}

// Service turns "pay for task X" into the active provider's checkout flow.
type Service struct {
	provider  enums.PaymentProvider
	tasks     tasks.Repository
	profiles  profiles.Repository
	fees      *payments.FeeCalculator
	airwallex airwallexAPI
	stripe    stripeAPI
	paypal    paypalAPI
	baseURL   string
	logg      *logger.Logger
}

// NewService builds a checkout service.
func NewService(params ServiceParams) (*Service, error) {
	if !params.ActiveProvider.IsValid() {
		return nil, errors.New("active provider is required")
	}
	if params.Tasks == nil {
		return nil, errors.New("tasks repository is required")
	}
	if params.Profiles == nil {
		return nil, errors.New("profiles repository is required")
	}
	if params.Fees == nil {
		return nil, errors.New("fee calculator is required")
	}
	return &Service{
		provider:  params.ActiveProvider,
		tasks:     params.Tasks,
		profiles:  params.Profiles,
		fees:      params.Fees,
		airwallex: params.Airwallex,
		stripe:    params.Stripe,
		paypal:    params.PayPal,
		baseURL:   params.BaseURL,
		logg:      params.Logger,
	}, nil
}

// CreateCheckoutInput carries the caller's intent to charge a task.
type CreateCheckoutInput struct {
	TaskID      uuid.UUID
	RequesterID uuid.UUID
	ReturnURL   string
	CancelURL   string
}

// CheckoutResult is the provider-agnostic checkout shape. Amount is the total
// charge in minor units. Depending on the provider's flow the client's next
// step is either a redirect or a client-side confirmation with the secret.
type CheckoutResult struct {
	ID               string             `json:"id"`
	PaymentIntentRef string             `json:"payment_intent_ref"`
	Amount           int64              `json:"amount"`
	Currency         string             `json:"currency"`
	ClientSecret     string             `json:"client_secret,omitempty"`
	RedirectURL      string             `json:"redirect_url,omitempty"`
	Breakdown        money.FeeBreakdown `json:"breakdown"`
}

// CreateCheckout validates preconditions, computes the fee breakdown, and
// opens a charge with the active provider. Preconditions run before any
// network call so an un-onboarded helper never reaches the provider.
func (s *Service) CreateCheckout(ctx context.Context, input CreateCheckoutInput) (*CheckoutResult, error) {
	task, err := s.loadChargeableTask(ctx, input.TaskID, input.RequesterID)
	if err != nil {
		return nil, err
	}

	helper, err := s.profiles.FindByID(ctx, *task.AssignedTo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "helper profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading helper profile")
	}
	cred, err := profiles.ResolvePayoutCredential(helper, s.provider)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.fees.Breakdown(ctx, task.Budget, task.Currency)
	if err != nil {
		return nil, err
	}

	switch s.provider {
	case enums.ProviderStripe:
		return s.createStripeCheckout(ctx, task, cred, breakdown, input)
	case enums.ProviderPayPal:
		return s.createPayPalCheckout(ctx, task, breakdown, input)
	case enums.ProviderAirwallex:
		return s.createAirwallexCheckout(ctx, task, breakdown, input)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeConfig, fmt.Sprintf("no checkout flow for provider %q", s.provider))
	}
}

func (s *Service) loadChargeableTask(ctx context.Context, taskID, requesterID uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading task")
	}
	if task.CreatedBy != requesterID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the task owner can pay for it")
	}
	if task.AssignedTo == nil || *task.AssignedTo == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task has no assigned helper")
	}
	if task.PaymentStatus.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "task is already paid")
	}
	if task.Budget.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task budget must be positive")
	}
	return task, nil
}

func (s *Service) createStripeCheckout(ctx context.Context, task *models.Task, cred profiles.PayoutCredential, breakdown money.FeeBreakdown, input CreateCheckoutInput) (*CheckoutResult, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "stripe client not configured")
	}
	totalMinor, err := breakdown.TotalMinorUnits()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "converting charge to minor units")
	}
	feeMinor, err := money.MinorUnits(breakdown.ServiceFee)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "converting fee to minor units")
	}

	params := &stripesdk.CheckoutSessionParams{
		Mode:       stripesdk.String(string(stripesdk.CheckoutSessionModePayment)),
		SuccessURL: stripesdk.String(s.resolveURL(input.ReturnURL, "/payments/success")),
		CancelURL:  stripesdk.String(s.resolveURL(input.CancelURL, "/payments/cancel")),
		LineItems: []*stripesdk.CheckoutSessionLineItemParams{{
			Quantity: stripesdk.Int64(1),
			PriceData: &stripesdk.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripesdk.String(breakdown.Currency),
				UnitAmount: stripesdk.Int64(totalMinor),
				ProductData: &stripesdk.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripesdk.String(task.Title),
				},
			},
		}},
		PaymentIntentData: &stripesdk.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripesdk.Int64(feeMinor),
			TransferData: &stripesdk.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripesdk.String(cred.StripeAccountRef),
			},
		},
	}
	params.Metadata = map[string]string{"task_id": task.ID.String()}

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, wrapProviderErr(err, "creating stripe checkout session")
	}

	claimed, err := s.tasks.MarkCheckoutPending(ctx, task.ID, enums.ProviderStripe, session.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording checkout session")
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "task already has a charge in flight")
	}

	return &CheckoutResult{
		ID:               session.ID,
		PaymentIntentRef: session.ID,
		Amount:           totalMinor,
		Currency:         breakdown.Currency,
		RedirectURL:      session.URL,
		Breakdown:        breakdown,
	}, nil
}

func (s *Service) createPayPalCheckout(ctx context.Context, task *models.Task, breakdown money.FeeBreakdown, input CreateCheckoutInput) (*CheckoutResult, error) {
	if s.paypal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "paypal client not configured")
	}
	totalMinor, err := breakdown.TotalMinorUnits()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "converting charge to minor units")
	}

	order, err := s.paypal.CreateOrder(ctx, paypal.CreateOrderParams{
		Amount:      breakdown.Total,
		Currency:    breakdown.Currency,
		ReferenceID: task.ID.String(),
		Description: task.Title,
		ReturnURL:   s.resolveURL(input.ReturnURL, "/payments/success"),
		CancelURL:   s.resolveURL(input.CancelURL, "/payments/cancel"),
	})
	if err != nil {
		return nil, wrapProviderErr(err, "creating paypal order")
	}

	claimed, err := s.tasks.MarkCheckoutPending(ctx, task.ID, enums.ProviderPayPal, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording paypal order")
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "task already has a charge in flight")
	}

	return &CheckoutResult{
		ID:               order.ID,
		PaymentIntentRef: order.ID,
		Amount:           totalMinor,
		Currency:         breakdown.Currency,
		RedirectURL:      order.ApproveURL(),
		Breakdown:        breakdown,
	}, nil
}

func (s *Service) createAirwallexCheckout(ctx context.Context, task *models.Task, breakdown money.FeeBreakdown, input CreateCheckoutInput) (*CheckoutResult, error) {
	if s.airwallex == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "airwallex client not configured")
	}
	totalMinor, err := breakdown.TotalMinorUnits()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "converting charge to minor units")
	}

	// One merchant order ref per attempt; the provider dedupes retried
	// requests on it. The task id inside the ref is what webhook ingestion
	// uses to find the task, since the task row is not touched here.
	orderRef := merchantOrderRef(task.ID)

	intent, err := s.airwallex.CreatePaymentIntent(ctx, airwallex.CreateIntentParams{
		RequestID:       orderRef,
		Amount:          breakdown.Total,
		Currency:        breakdown.Currency,
		MerchantOrderID: orderRef,
		ReturnURL:       s.resolveURL(input.ReturnURL, "/payments/success"),
		Metadata: map[string]string{
			"task_id": task.ID.String(),
		},
	})
	if err != nil {
		return nil, wrapProviderErr(err, "creating airwallex payment intent")
	}

	// Intent-based flow confirms asynchronously; the task stays as-is until
	// the charge webhook lands.
	var redirect string
	if intent.NextAction != nil {
		redirect = intent.NextAction.URL
	}
	if redirect == "" {
		redirect = s.resolveURL("", "/checkout/"+intent.ID)
	}

	return &CheckoutResult{
		ID:               intent.ID,
		PaymentIntentRef: intent.ID,
		Amount:           totalMinor,
		Currency:         breakdown.Currency,
		ClientSecret:     intent.ClientSecret,
		RedirectURL:      redirect,
		Breakdown:        breakdown,
	}, nil
}

func merchantOrderRef(taskID uuid.UUID) string {
	return fmt.Sprintf("payment-%s-%d", taskID, time.Now().Unix())
}

func (s *Service) resolveURL(override, path string) string {
	if override != "" {
		return override
	}
	return s.baseURL + path
}

func wrapProviderErr(err error, msg string) error {
	if appErr := pkgerrors.As(err); appErr != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
