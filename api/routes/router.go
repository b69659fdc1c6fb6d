package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskhive/taskhive-backend/api/controllers"
	webhookcontrollers "github.com/taskhive/taskhive-backend/api/controllers/webhooks"
	"github.com/taskhive/taskhive-backend/api/middleware"
	checkoutsvc "github.com/taskhive/taskhive-backend/internal/checkout"
	onboardingsvc "github.com/taskhive/taskhive-backend/internal/onboarding"
	payoutsvc "github.com/taskhive/taskhive-backend/internal/payouts"
	airwallexwebhook "github.com/taskhive/taskhive-backend/internal/webhooks/airwallex"
	"github.com/taskhive/taskhive-backend/internal/webhooks/events"
	paypalwebhook "github.com/taskhive/taskhive-backend/internal/webhooks/paypal"
	"github.com/taskhive/taskhive-backend/internal/webhooks/stripeconnect"
	"github.com/taskhive/taskhive-backend/pkg/config"
	"github.com/taskhive/taskhive-backend/pkg/db"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	"github.com/taskhive/taskhive-backend/pkg/logger"
	"github.com/taskhive/taskhive-backend/pkg/metrics"
	"github.com/taskhive/taskhive-backend/pkg/redis"
	"github.com/taskhive/taskhive-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	database *db.Client,
	redisClient *redis.Client,
	provider enums.PaymentProvider,
	checkoutService *checkoutsvc.Service,
	payoutService *payoutsvc.Service,
	onboardingService *onboardingsvc.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripeconnect.Service,
	stripeWebhookGuard *events.ReplayGuard,
	airwallexWebhookService *airwallexwebhook.Service,
	paypalWebhookService *paypalwebhook.Service,
	registry *prometheus.Registry,
	httpMetrics *metrics.HTTPMetrics,
	paymentMetrics *metrics.PaymentMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, database, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	// A nil concrete pointer stored in an interface is not a nil interface;
	// only assign when the dependency is actually wired. Webhook handling is
	// also gated on the active provider, so stale credentials for a switched-
	// off provider cannot mutate payment state through its endpoint.
	var airwallexSvc webhookcontrollers.AirwallexWebhookService
	if provider == enums.ProviderAirwallex && airwallexWebhookService != nil {
		airwallexSvc = airwallexWebhookService
	}
	var stripeSvc webhookcontrollers.StripeWebhookService
	var stripeSigner webhookcontrollers.StripeSigningClient
	var stripeGuard webhookcontrollers.StripeWebhookGuard
	if provider == enums.ProviderStripe {
		if stripeWebhookService != nil {
			stripeSvc = stripeWebhookService
		}
		if stripeClient != nil {
			stripeSigner = stripeClient
		}
		if stripeWebhookGuard != nil {
			stripeGuard = stripeWebhookGuard
		}
	}
	var paypalSvc webhookcontrollers.PayPalWebhookService
	if provider == enums.ProviderPayPal && paypalWebhookService != nil {
		paypalSvc = paypalWebhookService
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/airwallex", webhookcontrollers.AirwallexWebhook(airwallexSvc, paymentMetrics, logg))
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeSvc, stripeSigner, stripeGuard, paymentMetrics, logg))
		r.Post("/paypal", webhookcontrollers.PayPalWebhook(paypalSvc, paymentMetrics, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/v1/payments", func(r chi.Router) {
			r.Get("/provider", controllers.ProviderInfo(provider))
			r.Post("/create-checkout", controllers.CreateCheckout(checkoutService, paymentMetrics, provider, logg))
			r.Post("/create-payment", controllers.CreatePayment(checkoutService, paymentMetrics, provider, logg))
			r.Get("/payment-status", controllers.PaymentStatus(checkoutService, logg))
			r.Post("/create-payout", controllers.CreatePayout(payoutService, paymentMetrics, provider, logg))
			r.Get("/payout-status", controllers.PayoutStatus(payoutService, logg))
			r.Post("/onboarding", controllers.StartOnboarding(onboardingService, logg))
			r.Get("/onboarding-status", controllers.OnboardingStatus(onboardingService, logg))
			r.Post("/customer", controllers.ProvisionCustomer(onboardingService, logg))
			r.Get("/dashboard", controllers.Dashboard(onboardingService, logg))
		})
	})

	return r
}
