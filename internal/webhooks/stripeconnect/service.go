package stripeconnect

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/taskhive/taskhive-backend/internal/webhooks/events"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/logger"
)

// ServiceParams groups dependencies for the Stripe webhook service.
type ServiceParams struct {
	Applier *events.Applier
	Logger  *logger.Logger
}

// Service ingests verified Stripe Connect events. Signature verification
// happens at the HTTP boundary via webhook.ConstructEvent; by the time an
// event reaches HandleEvent it is authentic.
type Service struct {
	applier *events.Applier
	logg    *logger.Logger
}

// NewService builds the Stripe webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Applier == nil {
		return nil, errors.New("event applier is required")
	}
	return &Service{applier: params.Applier, logg: params.Logger}, nil
}

// HandleEvent maps the native Stripe event onto the canonical category set
// and applies it. Unrecognized event types return an empty result so the
// caller can acknowledge them without a state change.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (*events.Result, error) {
	if event == nil || event.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		return s.handleSession(ctx, event, enums.EventChargeSucceeded)
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed, stripe.EventTypeCheckoutSessionExpired:
		return s.handleSession(ctx, event, enums.EventChargeFailed)
	case stripe.EventTypePayoutPaid:
		return s.handlePayout(ctx, event, enums.EventPayoutSucceeded)
	case stripe.EventTypePayoutFailed:
		return s.handlePayout(ctx, event, enums.EventPayoutFailed)
	default:
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "event_type", string(event.Type))
			s.logg.Info(logCtx, "ignoring unrecognized stripe event")
		}
		return &events.Result{}, nil
	}
}

func (s *Service) handleSession(ctx context.Context, event *stripe.Event, category enums.PaymentEventCategory) (*events.Result, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding checkout session event")
	}

	return s.applier.Apply(ctx, events.Event{
		Category:         category,
		Provider:         enums.ProviderStripe,
		EventRef:         event.ID,
		PaymentIntentRef: session.ID,
		TaskID:           taskIDFromMetadata(session.Metadata),
	})
}

func (s *Service) handlePayout(ctx context.Context, event *stripe.Event, category enums.PaymentEventCategory) (*events.Result, error) {
	var payout stripe.Payout
	if err := json.Unmarshal(event.Data.Raw, &payout); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding payout event")
	}

	failureReason := ""
	if category == enums.EventPayoutFailed {
		failureReason = payout.FailureMessage
	}
	return s.applier.Apply(ctx, events.Event{
		Category:      category,
		Provider:      enums.ProviderStripe,
		EventRef:      event.ID,
		PayoutRef:     payout.ID,
		FailureReason: failureReason,
	})
}

func taskIDFromMetadata(metadata map[string]string) *uuid.UUID {
	raw, ok := metadata["task_id"]
	if !ok {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
