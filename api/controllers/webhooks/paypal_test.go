package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/taskhive/taskhive-backend/internal/webhooks/events"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/paypal"
)

type fakePayPalWebhookService struct {
	calls       int
	lastHeaders paypal.WebhookHeaders
	lastBody    []byte
	result      *events.Result
	err         error
}

func (f *fakePayPalWebhookService) Ingest(ctx context.Context, headers paypal.WebhookHeaders, body []byte) (*events.Result, error) {
	f.calls++
	f.lastHeaders = headers
	f.lastBody = body
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &events.Result{}, nil
}

func TestPayPalWebhook_ForwardsHeadersAndBody(t *testing.T) {
	service := &fakePayPalWebhookService{result: &events.Result{Applied: true}}
	handler := PayPalWebhook(service, nil, nil)

	body := `{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", strings.NewReader(body))
	req.Header.Set("Paypal-Transmission-Id", "tx-1")
	req.Header.Set("Paypal-Transmission-Time", "2026-01-01T00:00:00Z")
	req.Header.Set("Paypal-Transmission-Sig", "sig")
	req.Header.Set("Paypal-Cert-Url", "https://api.paypal.com/cert")
	req.Header.Set("Paypal-Auth-Algo", "SHA256withRSA")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected one ingest call, got %d", service.calls)
	}
	if service.lastHeaders.TransmissionID != "tx-1" {
		t.Fatalf("transmission id not forwarded: %q", service.lastHeaders.TransmissionID)
	}
	if string(service.lastBody) != body {
		t.Fatalf("body not forwarded verbatim: %q", service.lastBody)
	}
}

func TestPayPalWebhook_SignatureRejection(t *testing.T) {
	service := &fakePayPalWebhookService{err: pkgerrors.New(pkgerrors.CodeSignature, "webhook signature rejected")}
	handler := PayPalWebhook(service, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPayPalWebhook_NilService(t *testing.T) {
	handler := PayPalWebhook(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
