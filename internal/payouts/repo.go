package payouts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-backend/pkg/db/models"
	"github.com/taskhive/taskhive-backend/pkg/enums"
)

// Repository persists payout audit rows. Status writes are compare-and-set so
// the webhook path and the polling reconciler can race safely.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, record *models.PayoutRecord) (*models.PayoutRecord, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRecord, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.PayoutRecord, error)
	FindByProviderRef(ctx context.Context, ref string) (*models.PayoutRecord, error)
	FindByBatchRef(ctx context.Context, batchRef string) (*models.PayoutRecord, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.PayoutStatus, failureReason *string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.PayoutRecord) (*models.PayoutRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRecord, error) {
	var record models.PayoutRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByIdempotencyKey returns nil, nil when no record carries the key.
func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.PayoutRecord, error) {
	if key == "" {
		return nil, nil
	}
	var record models.PayoutRecord
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByProviderRef(ctx context.Context, ref string) (*models.PayoutRecord, error) {
	var record models.PayoutRecord
	err := r.db.WithContext(ctx).Where("provider_payout_ref = ?", ref).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByBatchRef(ctx context.Context, batchRef string) (*models.PayoutRecord, error) {
	var record models.PayoutRecord
	err := r.db.WithContext(ctx).Where("batch_ref = ?", batchRef).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// SetStatus advances a payout record. Terminal states stick; repeating the
// current status is a no-op so duplicate webhook delivery changes nothing.
func (r *repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.PayoutStatus, failureReason *string) (bool, error) {
	updates := map[string]any{"status": status}
	if failureReason != nil {
		updates["failure_reason"] = *failureReason
	}
	result := r.db.WithContext(ctx).Model(&models.PayoutRecord{}).
		Where("id = ?", id).
		Where("status NOT IN ?", []enums.PayoutStatus{enums.PayoutStatusSucceeded, enums.PayoutStatusFailed, status}).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}
