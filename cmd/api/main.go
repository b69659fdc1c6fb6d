package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskhive/taskhive-backend/api/routes"
	checkoutsvc "github.com/taskhive/taskhive-backend/internal/checkout"
	onboardingsvc "github.com/taskhive/taskhive-backend/internal/onboarding"
	"github.com/taskhive/taskhive-backend/internal/payments"
	payoutsvc "github.com/taskhive/taskhive-backend/internal/payouts"
	"github.com/taskhive/taskhive-backend/internal/profiles"
	"github.com/taskhive/taskhive-backend/internal/settings"
	"github.com/taskhive/taskhive-backend/internal/tasks"
	airwallexwebhook "github.com/taskhive/taskhive-backend/internal/webhooks/airwallex"
	"github.com/taskhive/taskhive-backend/internal/webhooks/events"
	paypalwebhook "github.com/taskhive/taskhive-backend/internal/webhooks/paypal"
	"github.com/taskhive/taskhive-backend/internal/webhooks/stripeconnect"
	"github.com/taskhive/taskhive-backend/pkg/airwallex"
	"github.com/taskhive/taskhive-backend/pkg/config"
	"github.com/taskhive/taskhive-backend/pkg/db"
	"github.com/taskhive/taskhive-backend/pkg/logger"
	"github.com/taskhive/taskhive-backend/pkg/metrics"
	"github.com/taskhive/taskhive-backend/pkg/migrate"
	"github.com/taskhive/taskhive-backend/pkg/outbox"
	"github.com/taskhive/taskhive-backend/pkg/paypal"
	"github.com/taskhive/taskhive-backend/pkg/redis"
	"github.com/taskhive/taskhive-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	provider, err := payments.ActiveProvider(cfg.Payments)
	if err != nil {
		logg.Error(context.Background(), "failed to resolve payment provider", err)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var airwallexClient *airwallex.Client
	if cfg.Airwallex.ClientID != "" {
		airwallexClient, err = airwallex.NewClient(context.Background(), cfg.Airwallex, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap airwallex client", err)
			os.Exit(1)
		}
	}

	var stripeClient *stripe.Client
	var stripeConnect stripe.ConnectClient
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = stripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap stripe client", err)
			os.Exit(1)
		}
		stripeConnect = stripe.NewConnectClient(stripeClient)
	}

	var paypalClient *paypal.Client
	if cfg.PayPal.ClientID != "" {
		paypalClient, err = paypal.NewClient(context.Background(), cfg.PayPal, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap paypal client", err)
			os.Exit(1)
		}
	}

	tasksRepo := tasks.NewRepository(dbClient.DB())
	profilesRepo := profiles.NewRepository(dbClient.DB())
	payoutRecords := payoutsvc.NewRepository(dbClient.DB())
	settingsRepo := settings.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	feeCalculator := payments.NewFeeCalculator(settingsRepo, cfg.Payments)

	checkoutParams := checkoutsvc.ServiceParams{
		ActiveProvider: provider,
		Tasks:          tasksRepo,
		Profiles:       profilesRepo,
		Fees:           feeCalculator,
		BaseURL:        cfg.App.BaseURL,
		Logger:         logg,
	}
	if airwallexClient != nil {
		checkoutParams.Airwallex = airwallexClient
	}
	if stripeConnect != nil {
		checkoutParams.Stripe = stripeConnect
	}
	if paypalClient != nil {
		checkoutParams.PayPal = paypalClient
	}
	checkoutService, err := checkoutsvc.NewService(checkoutParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	payoutParams := payoutsvc.ServiceParams{
		ActiveProvider: provider,
		Sandbox:        !cfg.App.IsProd(),
		Tasks:          tasksRepo,
		Profiles:       profilesRepo,
		Records:        payoutRecords,
		Tx:             dbClient,
		Logger:         logg,
	}
	if airwallexClient != nil {
		payoutParams.Airwallex = airwallexClient
	}
	if paypalClient != nil {
		payoutParams.PayPal = paypalClient
	}
	payoutService, err := payoutsvc.NewService(payoutParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	onboardingParams := onboardingsvc.ServiceParams{
		ActiveProvider: provider,
		Profiles:       profilesRepo,
		BaseURL:        cfg.App.BaseURL,
		Logger:         logg,
	}
	if stripeConnect != nil {
		onboardingParams.Stripe = stripeConnect
	}
	if airwallexClient != nil {
		onboardingParams.Airwallex = airwallexClient
	}
	onboardingService, err := onboardingsvc.NewService(onboardingParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create onboarding service", err)
		os.Exit(1)
	}

	applier, err := events.NewApplier(events.ApplierParams{
		Tasks:   tasksRepo,
		Records: payoutRecords,
		Outbox:  outboxService,
		Tx:      dbClient,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create event applier", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripeconnect.NewService(stripeconnect.ServiceParams{
		Applier: applier,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	stripeWebhookGuard, err := events.NewReplayGuard(redisClient, cfg.Payments.WebhookReplayTTL, "webhook:stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	var airwallexWebhookService *airwallexwebhook.Service
	if cfg.Airwallex.WebhookSecret != "" {
		airwallexWebhookService, err = airwallexwebhook.NewService(airwallexwebhook.ServiceParams{
			Applier:       applier,
			WebhookSecret: cfg.Airwallex.WebhookSecret,
			Logger:        logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create airwallex webhook service", err)
			os.Exit(1)
		}
	}

	var paypalWebhookService *paypalwebhook.Service
	if paypalClient != nil {
		paypalWebhookService, err = paypalwebhook.NewService(paypalwebhook.ServiceParams{
			Applier:  applier,
			Verifier: paypalClient,
			Logger:   logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create paypal webhook service", err)
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"provider": string(provider),
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, provider,
			checkoutService, payoutService, onboardingService,
			stripeClient, stripeWebhookService, stripeWebhookGuard,
			airwallexWebhookService, paypalWebhookService,
			registry, httpMetrics, paymentMetrics),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
