package models

import (
	"time"

	"github.com/google/uuid"
)

// User carries the payment-credential slice of a platform profile. At most one
// of the three payout credentials matters at a time, determined by the active
// provider.
type User struct {
	ID    uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email string    `gorm:"column:email;not null;uniqueIndex"`
	Name  string    `gorm:"column:name"`

	StripeAccountRef   *string `gorm:"column:stripe_account_ref"`
	AirwallexBankIBAN  *string `gorm:"column:airwallex_bank_iban"`
	PayPalPayoutEmail  *string `gorm:"column:paypal_payout_email"`
	ProviderCustomerRef *string `gorm:"column:provider_customer_ref"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
