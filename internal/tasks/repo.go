package tasks

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-backend/pkg/db/models"
	"github.com/taskhive/taskhive-backend/pkg/enums"
)

// Repository exposes the payment-relevant task operations. All the status
// writes are compare-and-set: they carry their precondition in the WHERE
// clause and report whether a row actually changed, so replayed webhooks and
// concurrent checkouts settle on one winner without row locks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	FindByPaymentIntentRef(ctx context.Context, ref string) (*models.Task, error)
	FindByPayoutID(ctx context.Context, payoutID uuid.UUID) (*models.Task, error)

	MarkCheckoutPending(ctx context.Context, taskID uuid.UUID, provider enums.PaymentProvider, intentRef string) (bool, error)
	SetPaymentRef(ctx context.Context, taskID uuid.UUID, provider enums.PaymentProvider, intentRef string) (bool, error)
	MarkPaid(ctx context.Context, taskID uuid.UUID) (bool, error)
	MarkChargeFailed(ctx context.Context, taskID uuid.UUID) (bool, error)
	MarkRefunded(ctx context.Context, taskID uuid.UUID) (bool, error)
	SetPayoutRef(ctx context.Context, taskID, payoutID uuid.UUID, status enums.PayoutStatus) (bool, error)
	SetPayoutStatus(ctx context.Context, taskID uuid.UUID, status enums.PayoutStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a tasks repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *repository) FindByPaymentIntentRef(ctx context.Context, ref string) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).Where("payment_intent_ref = ?", ref).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *repository) FindByPayoutID(ctx context.Context, payoutID uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).Where("payout_id = ?", payoutID).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// MarkCheckoutPending claims the task for a new checkout attempt. Only tasks
// that have never been charged or whose last charge failed are eligible.
func (r *repository) MarkCheckoutPending(ctx context.Context, taskID uuid.UUID, provider enums.PaymentProvider, intentRef string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Where("payment_status IN ?", []enums.PaymentStatus{enums.PaymentStatusNone, enums.PaymentStatusFailed}).
		Updates(map[string]any{
			"payment_status":     enums.PaymentStatusPending,
			"payment_provider":   provider,
			"payment_intent_ref": intentRef,
		})
	return result.RowsAffected > 0, result.Error
}

// SetPaymentRef backfills the provider and intent reference on a task whose
// charge was created without claiming the row, so later polling and
// reconciliation can match on the ref instead of metadata round-trips. A task
// that already carries a ref keeps it.
func (r *repository) SetPaymentRef(ctx context.Context, taskID uuid.UUID, provider enums.PaymentProvider, intentRef string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Where("payment_intent_ref IS NULL OR payment_intent_ref = ''").
		Updates(map[string]any{
			"payment_provider":   provider,
			"payment_intent_ref": intentRef,
		})
	return result.RowsAffected > 0, result.Error
}

// MarkPaid settles the charge. Safe under webhook replay: a task already paid
// or refunded is left alone.
func (r *repository) MarkPaid(ctx context.Context, taskID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Where("payment_status NOT IN ?", []enums.PaymentStatus{enums.PaymentStatusPaid, enums.PaymentStatusRefunded}).
		Update("payment_status", enums.PaymentStatusPaid)
	return result.RowsAffected > 0, result.Error
}

// MarkChargeFailed records a failed charge attempt. Only a pending charge can
// fail; a settled task ignores late failure events.
func (r *repository) MarkChargeFailed(ctx context.Context, taskID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Where("payment_status = ?", enums.PaymentStatusPending).
		Update("payment_status", enums.PaymentStatusFailed)
	return result.RowsAffected > 0, result.Error
}

// MarkRefunded moves a paid task to refunded.
func (r *repository) MarkRefunded(ctx context.Context, taskID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Where("payment_status = ?", enums.PaymentStatusPaid).
		Update("payment_status", enums.PaymentStatusRefunded)
	return result.RowsAffected > 0, result.Error
}

// SetPayoutRef links a freshly created payout record to the task. Only paid
// tasks without a live payout are eligible.
func (r *repository) SetPayoutRef(ctx context.Context, taskID, payoutID uuid.UUID, status enums.PayoutStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Where("payment_status = ?", enums.PaymentStatusPaid).
		Where("payout_status IN ?", []enums.PayoutStatus{enums.PayoutStatusNone, enums.PayoutStatusFailed}).
		Updates(map[string]any{
			"payout_id":     payoutID,
			"payout_status": status,
		})
	return result.RowsAffected > 0, result.Error
}

// SetPayoutStatus advances the payout leg. Terminal payout states win; a
// replayed event that would regress or repeat a terminal state changes
// nothing.
func (r *repository) SetPayoutStatus(ctx context.Context, taskID uuid.UUID, status enums.PayoutStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Where("payout_status NOT IN ?", []enums.PayoutStatus{enums.PayoutStatusSucceeded, enums.PayoutStatusFailed, status}).
		Update("payout_status", status)
	return result.RowsAffected > 0, result.Error
}
