package paypal

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
)

// PayoutBatch mirrors the batch_header PayPal returns for a payouts batch.
type PayoutBatch struct {
	BatchID string
	Status  string
}

type CreatePayoutParams struct {
	// SenderBatchID deduplicates the batch on PayPal's side; reusing the
	// same id returns the original batch instead of paying twice.
	SenderBatchID string
	ReceiverEmail string
	Amount        decimal.Decimal
	Currency      string
	Note          string
}

type payoutAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type payoutItem struct {
	RecipientType string       `json:"recipient_type"`
	Amount        payoutAmount `json:"amount"`
	Receiver      string       `json:"receiver"`
	Note          string       `json:"note,omitempty"`
	SenderItemID  string       `json:"sender_item_id,omitempty"`
}

type createPayoutRequest struct {
	SenderBatchHeader struct {
		SenderBatchID string `json:"sender_batch_id"`
		EmailSubject  string `json:"email_subject,omitempty"`
	} `json:"sender_batch_header"`
	Items []payoutItem `json:"items"`
}

type payoutBatchResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
}

// CreatePayoutBatch sends a single-item payout addressed by email.
func (c *Client) CreatePayoutBatch(ctx context.Context, params CreatePayoutParams) (*PayoutBatch, error) {
	if params.SenderBatchID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender batch id is required")
	}
	if params.ReceiverEmail == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receiver email is required")
	}
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}
	if params.Currency == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout currency is required")
	}

	var req createPayoutRequest
	req.SenderBatchHeader.SenderBatchID = params.SenderBatchID
	req.SenderBatchHeader.EmailSubject = "You have a payout"
	req.Items = []payoutItem{{
		RecipientType: "EMAIL",
		Amount: payoutAmount{
			Value:    params.Amount.StringFixed(2),
			Currency: params.Currency,
		},
		Receiver:     params.ReceiverEmail,
		Note:         params.Note,
		SenderItemID: params.SenderBatchID,
	}}

	var resp payoutBatchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/payments/payouts", req, &resp); err != nil {
		return nil, err
	}
	return &PayoutBatch{
		BatchID: resp.BatchHeader.PayoutBatchID,
		Status:  resp.BatchHeader.BatchStatus,
	}, nil
}

// GetPayoutBatch fetches the current state of a payouts batch.
func (c *Client) GetPayoutBatch(ctx context.Context, batchID string) (*PayoutBatch, error) {
	if batchID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id is required")
	}
	var resp payoutBatchResponse
	path := fmt.Sprintf("/v1/payments/payouts/%s", batchID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &PayoutBatch{
		BatchID: resp.BatchHeader.PayoutBatchID,
		Status:  resp.BatchHeader.BatchStatus,
	}, nil
}
