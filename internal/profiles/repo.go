package profiles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-backend/pkg/db/models"
)

// Repository reads and updates the payment-credential slice of user profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetStripeAccountRef(ctx context.Context, userID uuid.UUID, accountRef string) error
	SetAirwallexBankIBAN(ctx context.Context, userID uuid.UUID, iban string) error
	SetPayPalPayoutEmail(ctx context.Context, userID uuid.UUID, email string) error
	SetProviderCustomerRef(ctx context.Context, userID uuid.UUID, customerRef string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a profiles repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) SetStripeAccountRef(ctx context.Context, userID uuid.UUID, accountRef string) error {
	return r.updateColumn(ctx, userID, "stripe_account_ref", accountRef)
}

func (r *repository) SetAirwallexBankIBAN(ctx context.Context, userID uuid.UUID, iban string) error {
	return r.updateColumn(ctx, userID, "airwallex_bank_iban", iban)
}

func (r *repository) SetPayPalPayoutEmail(ctx context.Context, userID uuid.UUID, email string) error {
	return r.updateColumn(ctx, userID, "paypal_payout_email", email)
}

func (r *repository) SetProviderCustomerRef(ctx context.Context, userID uuid.UUID, customerRef string) error {
	return r.updateColumn(ctx, userID, "provider_customer_ref", customerRef)
}

func (r *repository) updateColumn(ctx context.Context, userID uuid.UUID, column, value string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
