package airwallexwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive-backend/internal/webhooks/events"
	"github.com/taskhive/taskhive-backend/pkg/airwallex"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/logger"
)

// ServiceParams groups dependencies for the Airwallex webhook service.
type ServiceParams struct {
	Applier       *events.Applier
	WebhookSecret string
	Logger        *logger.Logger
}

// Service verifies and ingests Airwallex webhook deliveries.
type Service struct {
	applier *events.Applier
	secret  string
	logg    *logger.Logger
}

// NewService builds the Airwallex webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Applier == nil {
		return nil, errors.New("event applier is required")
	}
	if strings.TrimSpace(params.WebhookSecret) == "" {
		return nil, errors.New("webhook secret is required")
	}
	return &Service{
		applier: params.Applier,
		secret:  params.WebhookSecret,
		logg:    params.Logger,
	}, nil
}

// envelope is the outer shape of every Airwallex webhook delivery.
type envelope struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Data struct {
		Object struct {
			ID              string            `json:"id"`
			Status          string            `json:"status"`
			MerchantOrderID string            `json:"merchant_order_id"`
			Metadata        map[string]string `json:"metadata"`
			FailureReason   string            `json:"failure_reason"`
		} `json:"object"`
	} `json:"data"`
}

// Ingest verifies the HMAC signature, maps the native event onto the
// canonical category set, and applies it. Verification happens before any
// payload field is read. Unrecognized events return an empty result so the
// caller can acknowledge them.
func (s *Service) Ingest(ctx context.Context, body []byte, timestamp, signature string) (*events.Result, error) {
	if !airwallex.VerifyWebhookSignature(body, timestamp, signature, s.secret) {
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "airwallex webhook signature verification failed")
	}

	var delivery envelope
	if err := json.Unmarshal(body, &delivery); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding airwallex webhook payload")
	}

	category := mapEventName(delivery.Name)
	if category == "" {
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "event_name", delivery.Name)
			s.logg.Info(logCtx, "ignoring unrecognized airwallex event")
		}
		return &events.Result{}, nil
	}

	event := events.Event{
		Category:      category,
		Provider:      enums.ProviderAirwallex,
		EventRef:      delivery.ID,
		FailureReason: delivery.Data.Object.FailureReason,
	}
	switch category {
	case enums.EventChargeSucceeded, enums.EventChargeFailed:
		event.PaymentIntentRef = delivery.Data.Object.ID
		event.TaskID = taskIDFromDelivery(delivery)
	case enums.EventPayoutSucceeded, enums.EventPayoutFailed:
		event.PayoutRef = delivery.Data.Object.ID
	}

	return s.applier.Apply(ctx, event)
}

func mapEventName(name string) enums.PaymentEventCategory {
	switch name {
	case "payment_intent.succeeded":
		return enums.EventChargeSucceeded
	case "payment_intent.cancelled", "payment_attempt.failed":
		return enums.EventChargeFailed
	case "transfer.paid", "transfer.settled":
		return enums.EventPayoutSucceeded
	case "transfer.failed", "transfer.cancelled":
		return enums.EventPayoutFailed
	default:
		return ""
	}
}

func taskIDFromDelivery(delivery envelope) *uuid.UUID {
	if raw, ok := delivery.Data.Object.Metadata["task_id"]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			return &id
		}
	}
	return taskIDFromOrderRef(delivery.Data.Object.MerchantOrderID)
}

// taskIDFromOrderRef recovers the task id from a "payment-{taskId}-{ts}"
// merchant order ref.
func taskIDFromOrderRef(ref string) *uuid.UUID {
	rest, found := strings.CutPrefix(ref, "payment-")
	if !found {
		return nil
	}
	idx := strings.LastIndex(rest, "-")
	if idx <= 0 {
		return nil
	}
	id, err := uuid.Parse(rest[:idx])
	if err != nil {
		return nil
	}
	return &id
}
