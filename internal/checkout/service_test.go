package checkout

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	stripesdk "github.com/stripe/stripe-go/v84"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-backend/internal/payments"
	"github.com/taskhive/taskhive-backend/internal/profiles"
	"github.com/taskhive/taskhive-backend/internal/tasks"
	"github.com/taskhive/taskhive-backend/pkg/airwallex"
	"github.com/taskhive/taskhive-backend/pkg/config"
	"github.com/taskhive/taskhive-backend/pkg/db/models"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/paypal"
)

type stubTaskRepo struct {
	tasks.Repository

	task            *models.Task
	pendingCalls    int
	pendingProvider enums.PaymentProvider
	pendingRef      string
	pendingResult   bool
}

func (s *stubTaskRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	if s.task == nil || s.task.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.task
	return &copied, nil
}

func (s *stubTaskRepo) MarkCheckoutPending(_ context.Context, _ uuid.UUID, provider enums.PaymentProvider, ref string) (bool, error) {
	s.pendingCalls++
	s.pendingProvider = provider
	s.pendingRef = ref
	return s.pendingResult, nil
}

type stubProfileRepo struct {
	profiles.Repository

	user *models.User
}

func (s *stubProfileRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.user
	return &copied, nil
}

type stubAirwallex struct {
	intents   int
	lastInput airwallex.CreateIntentParams
	intent    *airwallex.PaymentIntent
	getIntent *airwallex.PaymentIntent
}

func (s *stubAirwallex) CreatePaymentIntent(_ context.Context, params airwallex.CreateIntentParams) (*airwallex.PaymentIntent, error) {
	s.intents++
	s.lastInput = params
	return s.intent, nil
}

func (s *stubAirwallex) GetPaymentIntent(_ context.Context, _ string) (*airwallex.PaymentIntent, error) {
	return s.getIntent, nil
}

type stubStripe struct {
	sessions  int
	lastInput *stripesdk.CheckoutSessionParams
	session   *stripesdk.CheckoutSession
}

func (s *stubStripe) CreateCheckoutSession(_ context.Context, params *stripesdk.CheckoutSessionParams) (*stripesdk.CheckoutSession, error) {
	s.sessions++
	s.lastInput = params
	return s.session, nil
}

type stubPayPal struct {
	orders    int
	lastInput paypal.CreateOrderParams
	order     *paypal.Order
}

func (s *stubPayPal) CreateOrder(_ context.Context, params paypal.CreateOrderParams) (*paypal.Order, error) {
	s.orders++
	s.lastInput = params
	return s.order, nil
}

func feeCalc(t *testing.T, fee string) *payments.FeeCalculator {
	t.Helper()
	return payments.NewFeeCalculator(nil, config.PaymentsConfig{ServiceFee: fee, Currency: "EUR"})
}

func assignedTask(budget string) (*models.Task, uuid.UUID, uuid.UUID) {
	requester := uuid.New()
	helper := uuid.New()
	task := &models.Task{
		ID:            uuid.New(),
		Title:         "mount shelves",
		Budget:        decimal.RequireFromString(budget),
		Currency:      "EUR",
		CreatedBy:     requester,
		AssignedTo:    &helper,
		PaymentStatus: enums.PaymentStatusNone,
	}
	return task, requester, helper
}

func TestCreateCheckoutAirwallexReturnsMinorUnitsWithoutTaskMutation(t *testing.T) {
	task, requester, helper := assignedTask("100.00")
	iban := "DE89370400440532013000"
	taskRepo := &stubTaskRepo{task: task, pendingResult: true}
	profileRepo := &stubProfileRepo{user: &models.User{ID: helper, AirwallexBankIBAN: &iban}}
	awx := &stubAirwallex{intent: &airwallex.PaymentIntent{
		ID:           "int_123",
		ClientSecret: "cs_secret",
		Currency:     "EUR",
	}}

	svc, err := NewService(ServiceParams{
		ActiveProvider: enums.ProviderAirwallex,
		Tasks:          taskRepo,
		Profiles:       profileRepo,
		Fees:           feeCalc(t, "2.00"),
		Airwallex:      awx,
		BaseURL:        "https://app.taskhive.test",
	})
	require.NoError(t, err)

	result, err := svc.CreateCheckout(context.Background(), CreateCheckoutInput{TaskID: task.ID, RequesterID: requester})
	require.NoError(t, err)

	assert.Equal(t, int64(10200), result.Amount)
	assert.NotEmpty(t, result.RedirectURL)
	assert.Equal(t, "cs_secret", result.ClientSecret)
	assert.Equal(t, 1, awx.intents)
	assert.Zero(t, taskRepo.pendingCalls, "intent flow must not touch the task")

	assert.True(t, strings.HasPrefix(awx.lastInput.MerchantOrderID, "payment-"+task.ID.String()+"-"))
	assert.Equal(t, task.ID.String(), awx.lastInput.Metadata["task_id"])
}

func TestCreateCheckoutStripeMarksPendingWithSessionRef(t *testing.T) {
	task, requester, helper := assignedTask("49.99")
	acct := "acct_42"
	taskRepo := &stubTaskRepo{task: task, pendingResult: true}
	profileRepo := &stubProfileRepo{user: &models.User{ID: helper, StripeAccountRef: &acct}}
	stripeStub := &stubStripe{session: &stripesdk.CheckoutSession{
		ID:  "cs_test_1",
		URL: "https://checkout.stripe.com/cs_test_1",
	}}

	svc, err := NewService(ServiceParams{
		ActiveProvider: enums.ProviderStripe,
		Tasks:          taskRepo,
		Profiles:       profileRepo,
		Fees:           feeCalc(t, "2.00"),
		Stripe:         stripeStub,
		BaseURL:        "https://app.taskhive.test",
	})
	require.NoError(t, err)

	result, err := svc.CreateCheckout(context.Background(), CreateCheckoutInput{TaskID: task.ID, RequesterID: requester})
	require.NoError(t, err)

	assert.Equal(t, int64(5199), result.Amount)
	assert.Equal(t, "https://checkout.stripe.com/cs_test_1", result.RedirectURL)
	assert.Equal(t, 1, taskRepo.pendingCalls)
	assert.Equal(t, enums.ProviderStripe, taskRepo.pendingProvider)
	assert.Equal(t, "cs_test_1", taskRepo.pendingRef)

	require.NotNil(t, stripeStub.lastInput)
	require.Len(t, stripeStub.lastInput.LineItems, 1)
	assert.Equal(t, int64(5199), *stripeStub.lastInput.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "acct_42", *stripeStub.lastInput.PaymentIntentData.TransferData.Destination)
}

func TestCreateCheckoutPayPalMarksPendingWithOrderRef(t *testing.T) {
	task, requester, helper := assignedTask("20.00")
	email := "helper@example.com"
	taskRepo := &stubTaskRepo{task: task, pendingResult: true}
	profileRepo := &stubProfileRepo{user: &models.User{ID: helper, PayPalPayoutEmail: &email}}
	paypalStub := &stubPayPal{order: &paypal.Order{
		ID: "ORDER-1",
		Links: []paypal.OrderLink{
			{Href: "https://paypal.com/approve/ORDER-1", Rel: "approve"},
		},
	}}

	svc, err := NewService(ServiceParams{
		ActiveProvider: enums.ProviderPayPal,
		Tasks:          taskRepo,
		Profiles:       profileRepo,
		Fees:           feeCalc(t, "2.00"),
		PayPal:         paypalStub,
		BaseURL:        "https://app.taskhive.test",
	})
	require.NoError(t, err)

	result, err := svc.CreateCheckout(context.Background(), CreateCheckoutInput{TaskID: task.ID, RequesterID: requester})
	require.NoError(t, err)

	assert.Equal(t, "https://paypal.com/approve/ORDER-1", result.RedirectURL)
	assert.Equal(t, "ORDER-1", taskRepo.pendingRef)
	assert.Equal(t, task.ID.String(), paypalStub.lastInput.ReferenceID)
	assert.True(t, paypalStub.lastInput.Amount.Equal(decimal.RequireFromString("22.00")))
}

func TestCreateCheckoutOnboardingFailureNeverReachesProvider(t *testing.T) {
	task, requester, helper := assignedTask("100.00")
	taskRepo := &stubTaskRepo{task: task, pendingResult: true}
	// helper exists but has no PayPal email
	profileRepo := &stubProfileRepo{user: &models.User{ID: helper}}
	paypalStub := &stubPayPal{}

	svc, err := NewService(ServiceParams{
		ActiveProvider: enums.ProviderPayPal,
		Tasks:          taskRepo,
		Profiles:       profileRepo,
		Fees:           feeCalc(t, "2.00"),
		PayPal:         paypalStub,
	})
	require.NoError(t, err)

	_, err = svc.CreateCheckout(context.Background(), CreateCheckoutInput{TaskID: task.ID, RequesterID: requester})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeHelperNotOnboarded, pkgerrors.As(err).Code())
	assert.Zero(t, paypalStub.orders, "onboarding failure must short-circuit before the provider call")
	assert.Zero(t, taskRepo.pendingCalls)
}

func TestCreateCheckoutPreconditions(t *testing.T) {
	task, requester, _ := assignedTask("100.00")

	tests := []struct {
		name     string
		mutate   func(task *models.Task) uuid.UUID
		wantCode pkgerrors.Code
	}{
		{
			"not the owner",
			func(*models.Task) uuid.UUID { return uuid.New() },
			pkgerrors.CodeForbidden,
		},
		{
			"no assigned helper",
			func(task *models.Task) uuid.UUID { task.AssignedTo = nil; return requester },
			pkgerrors.CodeValidation,
		},
		{
			"already paid",
			func(task *models.Task) uuid.UUID { task.PaymentStatus = enums.PaymentStatusPaid; return requester },
			pkgerrors.CodeStateConflict,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			copied := *task
			caller := tc.mutate(&copied)
			taskRepo := &stubTaskRepo{task: &copied, pendingResult: true}
			awx := &stubAirwallex{}

			svc, err := NewService(ServiceParams{
				ActiveProvider: enums.ProviderAirwallex,
				Tasks:          taskRepo,
				Profiles:       &stubProfileRepo{},
				Fees:           feeCalc(t, "2.00"),
				Airwallex:      awx,
			})
			require.NoError(t, err)

			_, err = svc.CreateCheckout(context.Background(), CreateCheckoutInput{TaskID: copied.ID, RequesterID: caller})
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, pkgerrors.As(err).Code())
			assert.Zero(t, awx.intents)
		})
	}
}

func TestCreateCheckoutLostRaceSurfacesConflict(t *testing.T) {
	task, requester, helper := assignedTask("10.00")
	acct := "acct_7"
	// another checkout claimed the task between the read and the write
	taskRepo := &stubTaskRepo{task: task, pendingResult: false}
	profileRepo := &stubProfileRepo{user: &models.User{ID: helper, StripeAccountRef: &acct}}
	stripeStub := &stubStripe{session: &stripesdk.CheckoutSession{ID: "cs_x", URL: "https://stripe.test"}}

	svc, err := NewService(ServiceParams{
		ActiveProvider: enums.ProviderStripe,
		Tasks:          taskRepo,
		Profiles:       profileRepo,
		Fees:           feeCalc(t, "2.00"),
		Stripe:         stripeStub,
	})
	require.NoError(t, err)

	_, err = svc.CreateCheckout(context.Background(), CreateCheckoutInput{TaskID: task.ID, RequesterID: requester})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestCreatePaymentRedirectsSessionProvidersToCheckout(t *testing.T) {
	for _, provider := range []enums.PaymentProvider{enums.ProviderStripe, enums.ProviderPayPal} {
		t.Run(string(provider), func(t *testing.T) {
			svc, err := NewService(ServiceParams{
				ActiveProvider: provider,
				Tasks:          &stubTaskRepo{},
				Profiles:       &stubProfileRepo{},
				Fees:           feeCalc(t, "2.00"),
			})
			require.NoError(t, err)

			_, err = svc.CreatePayment(context.Background(), CreatePaymentInput{
				Amount:   decimal.RequireFromString("15.00"),
				Currency: "EUR",
			})
			require.Error(t, err)

			appErr := pkgerrors.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, pkgerrors.CodeUseCreateCheckout, appErr.Code())
			assert.Equal(t, 501, pkgerrors.MetadataFor(appErr.Code()).HTTPStatus)
		})
	}
}

func TestCreatePaymentAirwallex(t *testing.T) {
	awx := &stubAirwallex{intent: &airwallex.PaymentIntent{ID: "int_solo", ClientSecret: "cs_solo"}}
	svc, err := NewService(ServiceParams{
		ActiveProvider: enums.ProviderAirwallex,
		Tasks:          &stubTaskRepo{},
		Profiles:       &stubProfileRepo{},
		Fees:           feeCalc(t, "2.00"),
		Airwallex:      awx,
	})
	require.NoError(t, err)

	result, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		Amount:   decimal.RequireFromString("15.00"),
		Currency: "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), result.Amount)
	assert.Equal(t, "cs_solo", result.ClientSecret)
	assert.True(t, strings.HasPrefix(awx.lastInput.MerchantOrderID, "payment-standalone-"))
}

func TestPaymentStatusGatedToAirwallex(t *testing.T) {
	svc, err := NewService(ServiceParams{
		ActiveProvider: enums.ProviderStripe,
		Tasks:          &stubTaskRepo{},
		Profiles:       &stubProfileRepo{},
		Fees:           feeCalc(t, "2.00"),
	})
	require.NoError(t, err)

	_, err = svc.PaymentStatus(context.Background(), "int_1")
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeProviderInactive, appErr.Code())

	details, ok := appErr.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "stripe", details["current_provider"])
	assert.Equal(t, "airwallex", details["requested_provider"])
}

func TestPaymentStatusNormalizesIntent(t *testing.T) {
	awx := &stubAirwallex{getIntent: &airwallex.PaymentIntent{
		ID:       "int_9",
		Status:   "SUCCEEDED",
		Amount:   decimal.RequireFromString("102.00"),
		Currency: "EUR",
	}}
	svc, err := NewService(ServiceParams{
		ActiveProvider: enums.ProviderAirwallex,
		Tasks:          &stubTaskRepo{},
		Profiles:       &stubProfileRepo{},
		Fees:           feeCalc(t, "2.00"),
		Airwallex:      awx,
	})
	require.NoError(t, err)

	status, err := svc.PaymentStatus(context.Background(), "int_9")
	require.NoError(t, err)
	assert.Equal(t, "SUCCEEDED", status.Status)
	assert.Equal(t, int64(10200), status.Amount)
	assert.Equal(t, "EUR", status.Currency)
}
