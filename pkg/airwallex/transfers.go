package airwallex

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// Transfer is the normalized view of an Airwallex payout transfer.
type Transfer struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// CreateTransferParams shapes a bank payout. RequestID is the idempotency
// token; reusing it returns the original transfer.
type CreateTransferParams struct {
	RequestID   string          `json:"request_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Beneficiary Beneficiary     `json:"beneficiary"`
	Reference   string          `json:"reference,omitempty"`
}

// Beneficiary identifies the payout destination bank account.
type Beneficiary struct {
	Name string `json:"name"`
	IBAN string `json:"iban"`
}

// CreateTransfer initiates a payout to the helper's bank account.
func (c *Client) CreateTransfer(ctx context.Context, params CreateTransferParams) (*Transfer, error) {
	var transfer Transfer
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/transfers/create", params, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// GetTransfer fetches the current transfer state.
func (c *Client) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	var transfer Transfer
	path := "/api/v1/transfers/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}
