package onboarding

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripesdk "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-backend/internal/profiles"
	"github.com/taskhive/taskhive-backend/pkg/airwallex"
	"github.com/taskhive/taskhive-backend/pkg/db/models"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
)

type stubProfiles struct {
	profiles.Repository

	user *models.User

	stripeRef   string
	payoutEmail string
	bankIBAN    string
	customerRef string
}

func (s *stubProfiles) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.user
	return &copied, nil
}

func (s *stubProfiles) SetStripeAccountRef(_ context.Context, _ uuid.UUID, ref string) error {
	s.stripeRef = ref
	return nil
}

func (s *stubProfiles) SetPayPalPayoutEmail(_ context.Context, _ uuid.UUID, email string) error {
	s.payoutEmail = email
	return nil
}

func (s *stubProfiles) SetAirwallexBankIBAN(_ context.Context, _ uuid.UUID, iban string) error {
	s.bankIBAN = iban
	return nil
}

func (s *stubProfiles) SetProviderCustomerRef(_ context.Context, _ uuid.UUID, ref string) error {
	s.customerRef = ref
	return nil
}

type stubStripe struct {
	accounts     int
	links        int
	loginLinks   int
	account      *stripesdk.Account
	polled       *stripesdk.Account
	lastLinkArgs *stripesdk.AccountLinkParams
}

func (s *stubStripe) CreateAccount(_ context.Context, _ *stripesdk.AccountParams) (*stripesdk.Account, error) {
	s.accounts++
	return s.account, nil
}

func (s *stubStripe) GetAccount(_ context.Context, _ string) (*stripesdk.Account, error) {
	return s.polled, nil
}

func (s *stubStripe) CreateAccountLink(_ context.Context, params *stripesdk.AccountLinkParams) (*stripesdk.AccountLink, error) {
	s.links++
	s.lastLinkArgs = params
	return &stripesdk.AccountLink{URL: "https://connect.stripe.com/setup/s/abc"}, nil
}

func (s *stubStripe) CreateLoginLink(_ context.Context, _ string) (*stripesdk.LoginLink, error) {
	s.loginLinks++
	return &stripesdk.LoginLink{URL: "https://connect.stripe.com/express/login/xyz"}, nil
}

type stubAirwallex struct {
	customers int
	lastInput airwallex.CreateCustomerParams
	customer  *airwallex.Customer
}

func (s *stubAirwallex) CreateCustomer(_ context.Context, params airwallex.CreateCustomerParams) (*airwallex.Customer, error) {
	s.customers++
	s.lastInput = params
	return s.customer, nil
}

func newOnboardingService(t *testing.T, params ServiceParams) *Service {
	t.Helper()
	if params.Profiles == nil {
		params.Profiles = &stubProfiles{}
	}
	if params.BaseURL == "" {
		params.BaseURL = "https://app.taskhive.test"
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

func TestStartOnboardingStripeCreatesAccountAndLink(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfiles{user: &models.User{ID: userID, Email: "helper@example.com"}}
	stripeStub := &stubStripe{account: &stripesdk.Account{ID: "acct_123"}}

	svc := newOnboardingService(t, ServiceParams{
		ActiveProvider: enums.ProviderStripe,
		Profiles:       repo,
		Stripe:         stripeStub,
	})

	result, err := svc.StartOnboarding(context.Background(), StartOnboardingInput{UserID: userID})
	require.NoError(t, err)

	assert.Equal(t, enums.OnboardingInProgress, result.Status)
	assert.Equal(t, "acct_123", result.AccountRef)
	assert.Equal(t, "https://connect.stripe.com/setup/s/abc", result.OnboardingURL)
	assert.Equal(t, "acct_123", repo.stripeRef)
	assert.Equal(t, 1, stripeStub.accounts)

	require.NotNil(t, stripeStub.lastLinkArgs)
	assert.Equal(t, "https://app.taskhive.test/onboarding/return", *stripeStub.lastLinkArgs.ReturnURL)
	assert.Equal(t, "https://app.taskhive.test/onboarding/refresh", *stripeStub.lastLinkArgs.RefreshURL)
}

func TestStartOnboardingStripeReusesExistingAccount(t *testing.T) {
	userID := uuid.New()
	ref := "acct_existing"
	repo := &stubProfiles{user: &models.User{ID: userID, StripeAccountRef: &ref}}
	stripeStub := &stubStripe{}

	svc := newOnboardingService(t, ServiceParams{
		ActiveProvider: enums.ProviderStripe,
		Profiles:       repo,
		Stripe:         stripeStub,
	})

	result, err := svc.StartOnboarding(context.Background(), StartOnboardingInput{UserID: userID})
	require.NoError(t, err)

	assert.Equal(t, "acct_existing", result.AccountRef)
	assert.Zero(t, stripeStub.accounts, "an onboarded account must not be recreated")
	assert.Equal(t, 1, stripeStub.links)
}

func TestStartOnboardingPayPalStoresEmail(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfiles{user: &models.User{ID: userID}}

	svc := newOnboardingService(t, ServiceParams{
		ActiveProvider: enums.ProviderPayPal,
		Profiles:       repo,
	})

	result, err := svc.StartOnboarding(context.Background(), StartOnboardingInput{
		UserID:      userID,
		PayoutEmail: " helper@example.com ",
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OnboardingComplete, result.Status)
	assert.Equal(t, "helper@example.com", repo.payoutEmail)
}

func TestStartOnboardingPayPalRejectsBadEmail(t *testing.T) {
	userID := uuid.New()
	svc := newOnboardingService(t, ServiceParams{
		ActiveProvider: enums.ProviderPayPal,
		Profiles:       &stubProfiles{user: &models.User{ID: userID}},
	})

	for _, email := range []string{"", "not-an-email"} {
		_, err := svc.StartOnboarding(context.Background(), StartOnboardingInput{
			UserID:      userID,
			PayoutEmail: email,
		})
		require.Error(t, err, email)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	}
}

func TestStartOnboardingAirwallexNormalizesIBAN(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfiles{user: &models.User{ID: userID}}

	svc := newOnboardingService(t, ServiceParams{
		ActiveProvider: enums.ProviderAirwallex,
		Profiles:       repo,
	})

	result, err := svc.StartOnboarding(context.Background(), StartOnboardingInput{
		UserID:   userID,
		BankIBAN: "de89 3704 0044 0532 0130 00",
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OnboardingComplete, result.Status)
	assert.Equal(t, "DE89370400440532013000", repo.bankIBAN)
}

func TestStatusStripeChecksLiveAccount(t *testing.T) {
	userID := uuid.New()
	ref := "acct_123"
	repo := &stubProfiles{user: &models.User{ID: userID, StripeAccountRef: &ref}}

	cases := []struct {
		name    string
		account *stripesdk.Account
		want    enums.OnboardingStatus
	}{
		{"payouts enabled", &stripesdk.Account{ID: ref, PayoutsEnabled: true, DetailsSubmitted: true}, enums.OnboardingComplete},
		{"abandoned halfway", &stripesdk.Account{ID: ref}, enums.OnboardingInProgress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newOnboardingService(t, ServiceParams{
				ActiveProvider: enums.ProviderStripe,
				Profiles:       repo,
				Stripe:         &stubStripe{polled: tc.account},
			})
			result, err := svc.Status(context.Background(), userID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Status)
		})
	}
}

func TestStatusReportsMissingField(t *testing.T) {
	userID := uuid.New()
	svc := newOnboardingService(t, ServiceParams{
		ActiveProvider: enums.ProviderPayPal,
		Profiles:       &stubProfiles{user: &models.User{ID: userID}},
	})

	result, err := svc.Status(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, enums.OnboardingNotStarted, result.Status)
	assert.Equal(t, "paypal_payout_email", result.MissingField)
}

func TestProvisionCustomerAirwallexOnly(t *testing.T) {
	userID := uuid.New()
	svc := newOnboardingService(t, ServiceParams{
		ActiveProvider: enums.ProviderStripe,
		Profiles:       &stubProfiles{user: &models.User{ID: userID}},
		Stripe:         &stubStripe{},
	})

	_, err := svc.ProvisionCustomer(context.Background(), userID)
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotSupported, appErr.Code())
	assert.Equal(t, 501, pkgerrors.MetadataFor(appErr.Code()).HTTPStatus)
}

func TestProvisionCustomerCreatesOnce(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfiles{user: &models.User{ID: userID, Email: "requester@example.com"}}
	awx := &stubAirwallex{customer: &airwallex.Customer{ID: "cus_1"}}

	svc := newOnboardingService(t, ServiceParams{
		ActiveProvider: enums.ProviderAirwallex,
		Profiles:       repo,
		Airwallex:      awx,
	})

	result, err := svc.ProvisionCustomer(context.Background(), userID)
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, "cus_1", result.CustomerRef)
	assert.Equal(t, "cus_1", repo.customerRef)
	assert.Equal(t, userID.String(), awx.lastInput.MerchantCustomerID)

	// second call finds the stored ref and never calls the provider again
	existing := "cus_1"
	repo.user.ProviderCustomerRef = &existing
	result, err = svc.ProvisionCustomer(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, 1, awx.customers)
}

func TestDashboardAccessGatesAndRequiresAccount(t *testing.T) {
	userID := uuid.New()

	t.Run("inactive provider", func(t *testing.T) {
		svc := newOnboardingService(t, ServiceParams{
			ActiveProvider: enums.ProviderAirwallex,
			Profiles:       &stubProfiles{user: &models.User{ID: userID}},
		})
		_, err := svc.DashboardAccess(context.Background(), userID)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeProviderInactive, pkgerrors.As(err).Code())
	})

	t.Run("not onboarded", func(t *testing.T) {
		svc := newOnboardingService(t, ServiceParams{
			ActiveProvider: enums.ProviderStripe,
			Profiles:       &stubProfiles{user: &models.User{ID: userID}},
			Stripe:         &stubStripe{},
		})
		_, err := svc.DashboardAccess(context.Background(), userID)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeHelperNotOnboarded, pkgerrors.As(err).Code())
	})

	t.Run("login link issued", func(t *testing.T) {
		ref := "acct_123"
		stripeStub := &stubStripe{}
		svc := newOnboardingService(t, ServiceParams{
			ActiveProvider: enums.ProviderStripe,
			Profiles:       &stubProfiles{user: &models.User{ID: userID, StripeAccountRef: &ref}},
			Stripe:         stripeStub,
		})
		result, err := svc.DashboardAccess(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, "https://connect.stripe.com/express/login/xyz", result.URL)
		assert.Equal(t, 1, stripeStub.loginLinks)
	})
}
