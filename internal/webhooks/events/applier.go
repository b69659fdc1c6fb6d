package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-backend/internal/payouts"
	"github.com/taskhive/taskhive-backend/internal/tasks"
	"github.com/taskhive/taskhive-backend/pkg/db/models"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/logger"
	"github.com/taskhive/taskhive-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Event is a verified, provider-agnostic webhook event. Adapters fill the
// reference fields they can extract; the applier locates the affected rows.
type Event struct {
	Category enums.PaymentEventCategory
	Provider enums.PaymentProvider

	// EventRef is the provider's native event id, carried for audit logging.
	EventRef string

	// Charge events: at least one of TaskID / PaymentIntentRef.
	TaskID           *uuid.UUID
	PaymentIntentRef string

	// Payout events: provider payout ref, and optionally the batch ref.
	PayoutRef string
	BatchRef  string

	FailureReason string
}

// Result reports what the event changed.
type Result struct {
	Applied  bool
	TaskID   *uuid.UUID
	PayoutID *uuid.UUID
}

// ApplierParams groups dependencies for the event applier.
type ApplierParams struct {
	Tasks   tasks.Repository
	Records payouts.Repository
	Outbox  *outbox.Service
	Tx      txRunner
	Logger  *logger.Logger
}

// Applier drives the task payment state machine from verified webhook
// events. Every write is compare-and-set, so duplicate delivery and
// concurrent ingestion of the same event are no-ops.
type Applier struct {
	tasks   tasks.Repository
	records payouts.Repository
	outbox  *outbox.Service
	tx      txRunner
	logg    *logger.Logger
}

// NewApplier builds an event applier.
func NewApplier(params ApplierParams) (*Applier, error) {
	if params.Tasks == nil {
		return nil, errors.New("tasks repository is required")
	}
	if params.Records == nil {
		return nil, errors.New("payout records repository is required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	return &Applier{
		tasks:   params.Tasks,
		records: params.Records,
		outbox:  params.Outbox,
		tx:      params.Tx,
		logg:    params.Logger,
	}, nil
}

// Apply routes the event to the matching state transition. An event whose
// reference matches nothing we persist is acknowledged without a write, so
// providers never retry-storm over rows we do not own.
func (a *Applier) Apply(ctx context.Context, event Event) (*Result, error) {
	switch event.Category {
	case enums.EventChargeSucceeded, enums.EventChargeFailed:
		return a.applyCharge(ctx, event)
	case enums.EventPayoutSucceeded, enums.EventPayoutFailed:
		return a.applyPayout(ctx, event)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unrecognized event category %q", event.Category))
	}
}

func (a *Applier) applyCharge(ctx context.Context, event Event) (*Result, error) {
	task, err := a.locateTask(ctx, event)
	if err != nil {
		return nil, err
	}
	if task == nil {
		a.logSkip(ctx, event, "no task matches charge event")
		return &Result{}, nil
	}

	result := &Result{TaskID: &task.ID}
	err = a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := a.tasks.WithTx(tx)

		// Intent-based checkouts never wrote the ref at creation time;
		// backfill it here so the task row stands on its own.
		if ref := strings.TrimSpace(event.PaymentIntentRef); ref != "" {
			if _, err := repo.SetPaymentRef(ctx, task.ID, event.Provider, ref); err != nil {
				return err
			}
		}

		var changed bool
		var err error
		if event.Category == enums.EventChargeSucceeded {
			changed, err = repo.MarkPaid(ctx, task.ID)
		} else {
			changed, err = repo.MarkChargeFailed(ctx, task.ID)
		}
		if err != nil {
			return err
		}
		result.Applied = changed
		if !changed {
			return nil
		}
		return a.emit(ctx, tx, event, outbox.AggregateTask, task.ID, map[string]any{
			"task_id":            task.ID.String(),
			"payment_intent_ref": event.PaymentIntentRef,
			"failure_reason":     event.FailureReason,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "applying charge event")
	}

	a.logApplied(ctx, event, result)
	return result, nil
}

func (a *Applier) applyPayout(ctx context.Context, event Event) (*Result, error) {
	record, err := a.locateRecord(ctx, event)
	if err != nil {
		return nil, err
	}
	if record == nil {
		a.logSkip(ctx, event, "no payout record matches payout event")
		return &Result{}, nil
	}

	target := enums.PayoutStatusSucceeded
	var failureReason *string
	if event.Category == enums.EventPayoutFailed {
		target = enums.PayoutStatusFailed
		if reason := strings.TrimSpace(event.FailureReason); reason != "" {
			failureReason = &reason
		}
	}

	result := &Result{PayoutID: &record.ID, TaskID: record.TaskID}
	err = a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := a.records.WithTx(tx).SetStatus(ctx, record.ID, target, failureReason)
		if err != nil {
			return err
		}
		result.Applied = changed
		if !changed {
			return nil
		}
		if record.TaskID != nil {
			if _, err := a.tasks.WithTx(tx).SetPayoutStatus(ctx, *record.TaskID, target); err != nil {
				return err
			}
		}
		return a.emit(ctx, tx, event, outbox.AggregatePayout, record.ID, map[string]any{
			"payout_id":      record.ID.String(),
			"status":         string(target),
			"failure_reason": event.FailureReason,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "applying payout event")
	}

	a.logApplied(ctx, event, result)
	return result, nil
}

func (a *Applier) locateTask(ctx context.Context, event Event) (*models.Task, error) {
	if event.TaskID != nil && *event.TaskID != uuid.Nil {
		task, err := a.tasks.FindByID(ctx, *event.TaskID)
		if err == nil {
			return task, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading task by id")
		}
	}
	if ref := strings.TrimSpace(event.PaymentIntentRef); ref != "" {
		task, err := a.tasks.FindByPaymentIntentRef(ctx, ref)
		if err == nil {
			return task, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading task by intent ref")
		}
	}
	return nil, nil
}

func (a *Applier) locateRecord(ctx context.Context, event Event) (*models.PayoutRecord, error) {
	if ref := strings.TrimSpace(event.PayoutRef); ref != "" {
		record, err := a.records.FindByProviderRef(ctx, ref)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payout record by provider ref")
		}
		if record != nil {
			return record, nil
		}
	}
	if ref := strings.TrimSpace(event.BatchRef); ref != "" {
		record, err := a.records.FindByBatchRef(ctx, ref)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payout record by batch ref")
		}
		if record != nil {
			return record, nil
		}
	}
	return nil, nil
}

func (a *Applier) emit(ctx context.Context, tx *gorm.DB, event Event, aggregateType string, aggregateID uuid.UUID, data map[string]any) error {
	if a.outbox == nil {
		return nil
	}
	return a.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event.Category,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Provider:      event.Provider,
		Data:          data,
	})
}

func (a *Applier) logApplied(ctx context.Context, event Event, result *Result) {
	if a.logg == nil {
		return
	}
	fields := map[string]any{
		"category":  string(event.Category),
		"event_ref": event.EventRef,
		"applied":   result.Applied,
	}
	if result.TaskID != nil {
		fields["task_id"] = result.TaskID.String()
	}
	if result.PayoutID != nil {
		fields["payout_id"] = result.PayoutID.String()
	}
	logCtx := a.logg.WithProvider(a.logg.WithFields(ctx, fields), string(event.Provider))
	a.logg.Info(logCtx, "webhook event processed")
}

func (a *Applier) logSkip(ctx context.Context, event Event, msg string) {
	if a.logg == nil {
		return
	}
	logCtx := a.logg.WithFields(ctx, map[string]any{
		"category":  string(event.Category),
		"event_ref": event.EventRef,
	})
	a.logg.Warn(logCtx, msg)
}
