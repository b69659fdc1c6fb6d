package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	payoutsvc "github.com/taskhive/taskhive-backend/internal/payouts"
	"github.com/taskhive/taskhive-backend/internal/tasks"
	airwallexwebhook "github.com/taskhive/taskhive-backend/internal/webhooks/airwallex"
	"github.com/taskhive/taskhive-backend/internal/webhooks/events"
	"github.com/taskhive/taskhive-backend/pkg/config"
	"github.com/taskhive/taskhive-backend/pkg/enums"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}

	registry := prometheus.NewRegistry()
	return NewRouter(cfg, nil, nil, nil, enums.ProviderAirwallex,
		nil, nil, nil, nil, nil, nil, nil, nil,
		registry, nil, nil)
}

func TestRouterHealthLive(t *testing.T) {
	handler := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env := rec.Header().Get("X-TaskHive-Env"); env != "test" {
		t.Fatalf("expected env header, got %q", env)
	}
}

func TestRouterPaymentsRequireAuth(t *testing.T) {
	handler := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/provider", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouterWebhooksAreUnauthenticated(t *testing.T) {
	handler := newTestRouter(t)

	// No Authorization header; the route must still reach the controller,
	// which rejects the unwired service rather than the missing token.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for unwired webhook service, got %d", rec.Code)
	}
}

type noopTx struct{}

func (noopTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestRouterInactiveProviderWebhookReturns503(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}

	applier, err := events.NewApplier(events.ApplierParams{
		Tasks:   tasks.NewRepository(nil),
		Records: payoutsvc.NewRepository(nil),
		Tx:      noopTx{},
	})
	if err != nil {
		t.Fatalf("building applier: %v", err)
	}
	airwallexService, err := airwallexwebhook.NewService(airwallexwebhook.ServiceParams{
		Applier:       applier,
		WebhookSecret: "whsec_test",
	})
	if err != nil {
		t.Fatalf("building airwallex webhook service: %v", err)
	}

	// PayPal is active; the Airwallex endpoint must refuse deliveries even
	// though an Airwallex webhook service is wired.
	handler := NewRouter(cfg, nil, nil, nil, enums.ProviderPayPal,
		nil, nil, nil, nil, nil, nil, airwallexService, nil,
		prometheus.NewRegistry(), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/airwallex", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for inactive provider webhook, got %d", rec.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	handler := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
