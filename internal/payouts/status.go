package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-backend/internal/payments"
	"github.com/taskhive/taskhive-backend/pkg/db/models"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
)

// PayoutStatusResult is the normalized poll shape.
type PayoutStatusResult struct {
	PayoutID    uuid.UUID          `json:"payout_id"`
	Status      enums.PayoutStatus `json:"status"`
	BatchStatus string             `json:"batch_status,omitempty"`
	Amount      string             `json:"amount"`
	Currency    string             `json:"currency"`
}

// PayoutStatus polls the provider for the payout's current state and
// reconciles the persisted record and task if they drifted. The reconcile
// writes use the same compare-and-set discipline as webhook ingestion, so the
// two paths can run concurrently without fighting.
func (s *Service) PayoutStatus(ctx context.Context, payoutID uuid.UUID) (*PayoutStatusResult, error) {
	record, err := s.records.FindByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payout record")
	}
	if err := payments.RequireEnabled(s.provider, record.Provider); err != nil {
		return nil, err
	}

	result := &PayoutStatusResult{
		PayoutID: record.ID,
		Status:   record.Status,
		Amount:   record.Amount.StringFixed(2),
		Currency: record.Currency,
	}
	if record.Status.IsTerminal() {
		return result, nil
	}

	polled, batchStatus, err := s.pollProvider(ctx, record)
	if err != nil {
		return nil, err
	}
	result.BatchStatus = batchStatus

	if polled == record.Status {
		return result, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.records.WithTx(tx).SetStatus(ctx, record.ID, polled, nil); err != nil {
			return err
		}
		if record.TaskID != nil {
			if _, err := s.tasks.WithTx(tx).SetPayoutStatus(ctx, *record.TaskID, polled); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconciling payout status")
	}

	result.Status = polled
	return result, nil
}

func (s *Service) pollProvider(ctx context.Context, record *models.PayoutRecord) (enums.PayoutStatus, string, error) {
	switch record.Provider {
	case enums.ProviderPayPal:
		if s.paypal == nil {
			return "", "", pkgerrors.New(pkgerrors.CodeConfig, "paypal client not configured")
		}
		ref := derefStr(record.BatchRef)
		if ref == "" {
			ref = record.ProviderPayoutRef
		}
		batch, err := s.paypal.GetPayoutBatch(ctx, ref)
		if err != nil {
			return "", "", wrapProviderErr(err, "polling paypal payout batch")
		}
		return mapPayPalBatchStatus(batch.Status, record.Status), batch.Status, nil

	case enums.ProviderAirwallex:
		if s.airwallex == nil {
			return "", "", pkgerrors.New(pkgerrors.CodeConfig, "airwallex client not configured")
		}
		transfer, err := s.airwallex.GetTransfer(ctx, record.ProviderPayoutRef)
		if err != nil {
			return "", "", wrapProviderErr(err, "polling airwallex transfer")
		}
		return mapAirwallexTransferStatus(transfer.Status, record.Status), transfer.Status, nil

	default:
		return "", "", pkgerrors.New(pkgerrors.CodeNotSupported, fmt.Sprintf("no payout polling for provider %q", record.Provider))
	}
}

func mapPayPalBatchStatus(batchStatus string, current enums.PayoutStatus) enums.PayoutStatus {
	switch strings.ToUpper(batchStatus) {
	case "SUCCESS":
		return enums.PayoutStatusSucceeded
	case "DENIED", "CANCELED", "FAILED", "RETURNED", "BLOCKED":
		return enums.PayoutStatusFailed
	case "PENDING", "PROCESSING":
		return enums.PayoutStatusProcessing
	default:
		return current
	}
}

func mapAirwallexTransferStatus(transferStatus string, current enums.PayoutStatus) enums.PayoutStatus {
	switch strings.ToUpper(transferStatus) {
	case "PAID", "SETTLED", "CONCLUDED":
		return enums.PayoutStatusSucceeded
	case "FAILED", "CANCELLED", "REJECTED":
		return enums.PayoutStatusFailed
	case "NEW", "PROCESSING", "IN_REVIEW":
		return enums.PayoutStatusProcessing
	default:
		return current
	}
}
