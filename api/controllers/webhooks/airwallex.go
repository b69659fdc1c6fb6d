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
)

type AirwallexWebhookService interface {
	Ingest(ctx context.Context, body []byte, timestamp, signature string) (*events.Result, error)
}

// AirwallexWebhook forwards signed Airwallex deliveries to the ingest
// service. Signature verification happens inside the service against the raw
// body, so the controller only moves bytes.
func AirwallexWebhook(svc AirwallexWebhookService, paymentMetrics *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeProviderInactive, "airwallex webhooks are not enabled"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		timestamp := r.Header.Get("x-timestamp")
		signature := r.Header.Get("x-signature")

		result, err := svc.Ingest(ctx, payload, timestamp, signature)
		if err != nil {
			outcome := "error"
			if target := pkgerrors.As(err); target != nil && target.Code() == pkgerrors.CodeSignature {
				outcome = "rejected"
			}
			observeWebhookEvent(paymentMetrics, "airwallex", outcome)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		outcome := "ignored"
		if result != nil && result.Applied {
			outcome = "processed"
		}
		observeWebhookEvent(paymentMetrics, "airwallex", outcome)
		responses.WriteSuccess(w, receivedResponse())
	}
}
