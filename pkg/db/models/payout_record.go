package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taskhive/taskhive-backend/pkg/enums"
)

// PayoutRecord is the audit row for every payout initiation. Rows are created
// once and updated by webhook ingestion or status polling, never deleted.
type PayoutRecord struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TaskID           *uuid.UUID            `gorm:"column:task_id;type:uuid;index"`
	HelperID         uuid.UUID             `gorm:"column:helper_id;type:uuid;not null;index"`
	Amount           decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency         string                `gorm:"column:currency;not null"`
	Status           enums.PayoutStatus    `gorm:"column:status;not null;default:'pending'"`
	Provider         enums.PaymentProvider `gorm:"column:provider;not null"`
	ProviderPayoutRef string               `gorm:"column:provider_payout_ref;index"`
	BatchRef         *string               `gorm:"column:batch_ref"`
	IdempotencyKey   *string               `gorm:"column:idempotency_key;uniqueIndex:idx_payout_records_idempotency_key"`
	FailureReason    *string               `gorm:"column:failure_reason"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
