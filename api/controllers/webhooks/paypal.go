package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/taskhive/taskhive-backend/api/responses"
	"github.com/taskhive/taskhive-backend/internal/webhooks/events"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/logger"
	"github.com/taskhive/taskhive-backend/pkg/metrics"
	"github.com/taskhive/taskhive-backend/pkg/paypal"
)

type PayPalWebhookService interface {
	Ingest(ctx context.Context, headers paypal.WebhookHeaders, body []byte) (*events.Result, error)
}

// PayPalWebhook forwards PayPal notifications to the ingest service along
// with the transmission headers it needs for verification.
func PayPalWebhook(svc PayPalWebhookService, paymentMetrics *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeProviderInactive, "paypal webhooks are not enabled"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		headers := paypal.WebhookHeadersFromRequest(r)

		result, err := svc.Ingest(ctx, headers, payload)
		if err != nil {
			outcome := "error"
			if target := pkgerrors.As(err); target != nil && target.Code() == pkgerrors.CodeSignature {
				outcome = "rejected"
			}
			observeWebhookEvent(paymentMetrics, "paypal", outcome)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		outcome := "ignored"
		if result != nil && result.Applied {
			outcome = "processed"
		}
		observeWebhookEvent(paymentMetrics, "paypal", outcome)
		responses.WriteSuccess(w, receivedResponse())
	}
}
