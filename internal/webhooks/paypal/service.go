package paypalwebhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive-backend/internal/webhooks/events"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/logger"
	"github.com/taskhive/taskhive-backend/pkg/paypal"
)

// verifier is the slice of the PayPal client webhook ingestion needs. PayPal
// rotates signing certs, so verification goes through their API rather than
// a local HMAC.
type verifier interface {
	VerifyWebhookSignature(ctx context.Context, headers paypal.WebhookHeaders, body []byte) error
}

// ServiceParams groups dependencies for the PayPal webhook service.
type ServiceParams struct {
	Applier  *events.Applier
	Verifier verifier
	Logger   *logger.Logger
}

// Service verifies and ingests PayPal webhook deliveries.
type Service struct {
	applier  *events.Applier
	verifier verifier
	logg     *logger.Logger
}

// NewService builds the PayPal webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Applier == nil {
		return nil, errors.New("event applier is required")
	}
	if params.Verifier == nil {
		return nil, errors.New("signature verifier is required")
	}
	return &Service{
		applier:  params.Applier,
		verifier: params.Verifier,
		logg:     params.Logger,
	}, nil
}

// notification is the outer shape of every PayPal webhook delivery.
type notification struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

type captureResource struct {
	ID       string `json:"id"`
	CustomID string `json:"custom_id"`
	StatusDetails struct {
		Reason string `json:"reason"`
	} `json:"status_details"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type payoutBatchResource struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
}

type payoutItemResource struct {
	PayoutItemID  string `json:"payout_item_id"`
	PayoutBatchID string `json:"payout_batch_id"`
	Errors        struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Ingest verifies the delivery against PayPal's verification API, maps the
// native event onto the canonical category set, and applies it. Verification
// happens before any business field is read.
func (s *Service) Ingest(ctx context.Context, headers paypal.WebhookHeaders, body []byte) (*events.Result, error) {
	if err := s.verifier.VerifyWebhookSignature(ctx, headers, body); err != nil {
		return nil, err
	}

	var delivery notification
	if err := json.Unmarshal(body, &delivery); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding paypal webhook payload")
	}

	switch delivery.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		return s.handleCapture(ctx, delivery, enums.EventChargeSucceeded)
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		return s.handleCapture(ctx, delivery, enums.EventChargeFailed)
	case "PAYMENT.PAYOUTSBATCH.SUCCESS":
		return s.handlePayoutBatch(ctx, delivery, enums.EventPayoutSucceeded)
	case "PAYMENT.PAYOUTSBATCH.DENIED":
		return s.handlePayoutBatch(ctx, delivery, enums.EventPayoutFailed)
	case "PAYMENT.PAYOUTS-ITEM.FAILED", "PAYMENT.PAYOUTS-ITEM.BLOCKED", "PAYMENT.PAYOUTS-ITEM.RETURNED":
		return s.handlePayoutItem(ctx, delivery)
	default:
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "event_type", delivery.EventType)
			s.logg.Info(logCtx, "ignoring unrecognized paypal event")
		}
		return &events.Result{}, nil
	}
}

func (s *Service) handleCapture(ctx context.Context, delivery notification, category enums.PaymentEventCategory) (*events.Result, error) {
	var resource captureResource
	if err := json.Unmarshal(delivery.Resource, &resource); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding capture resource")
	}

	// checkout stored the order id on the task; captures reference it via
	// supplementary data
	intentRef := resource.SupplementaryData.RelatedIDs.OrderID
	if intentRef == "" {
		intentRef = resource.ID
	}
	return s.applier.Apply(ctx, events.Event{
		Category:         category,
		Provider:         enums.ProviderPayPal,
		EventRef:         delivery.ID,
		PaymentIntentRef: intentRef,
		TaskID:           taskIDFromCustomID(resource.CustomID),
		FailureReason:    resource.StatusDetails.Reason,
	})
}

func (s *Service) handlePayoutBatch(ctx context.Context, delivery notification, category enums.PaymentEventCategory) (*events.Result, error) {
	var resource payoutBatchResource
	if err := json.Unmarshal(delivery.Resource, &resource); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding payout batch resource")
	}

	failureReason := ""
	if category == enums.EventPayoutFailed {
		failureReason = resource.BatchHeader.BatchStatus
	}
	return s.applier.Apply(ctx, events.Event{
		Category:      category,
		Provider:      enums.ProviderPayPal,
		EventRef:      delivery.ID,
		PayoutRef:     resource.BatchHeader.PayoutBatchID,
		BatchRef:      resource.BatchHeader.PayoutBatchID,
		FailureReason: failureReason,
	})
}

func (s *Service) handlePayoutItem(ctx context.Context, delivery notification) (*events.Result, error) {
	var resource payoutItemResource
	if err := json.Unmarshal(delivery.Resource, &resource); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding payout item resource")
	}

	return s.applier.Apply(ctx, events.Event{
		Category:      enums.EventPayoutFailed,
		Provider:      enums.ProviderPayPal,
		EventRef:      delivery.ID,
		PayoutRef:     resource.PayoutItemID,
		BatchRef:      resource.PayoutBatchID,
		FailureReason: resource.Errors.Message,
	})
}

func taskIDFromCustomID(customID string) *uuid.UUID {
	if customID == "" {
		return nil
	}
	id, err := uuid.Parse(customID)
	if err != nil {
		return nil
	}
	return &id
}
