package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taskhive/taskhive-backend/pkg/enums"
)

// Task carries the payment-relevant slice of a marketplace task. Listing
// content, bidding and messaging live outside this service; the payment core
// only reads ownership/assignment and owns the payment columns.
type Task struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title      string          `gorm:"column:title;not null"`
	Budget     decimal.Decimal `gorm:"column:budget;type:numeric(12,2);not null"`
	Currency   string          `gorm:"column:currency;not null;default:'EUR'"`
	CreatedBy  uuid.UUID       `gorm:"column:created_by;type:uuid;not null;index"`
	AssignedTo *uuid.UUID      `gorm:"column:assigned_to;type:uuid;index"`

	PaymentStatus    enums.PaymentStatus    `gorm:"column:payment_status;not null;default:'none'"`
	PaymentProvider  *enums.PaymentProvider `gorm:"column:payment_provider"`
	PaymentIntentRef *string                `gorm:"column:payment_intent_ref;index"`
	PayoutID         *uuid.UUID             `gorm:"column:payout_id;type:uuid"`
	PayoutStatus     enums.PayoutStatus     `gorm:"column:payout_status;not null;default:'none'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
