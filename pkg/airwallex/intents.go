package airwallex

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// PaymentIntent is the normalized view of an Airwallex payment intent.
type PaymentIntent struct {
	ID              string          `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	ClientSecret    string          `json:"client_secret"`
	MerchantOrderID string          `json:"merchant_order_id"`
	NextAction      *NextAction     `json:"next_action,omitempty"`
}

// NextAction carries the redirect the payer must follow, when the intent
// requires one.
type NextAction struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// CreateIntentParams shapes a payment intent creation call. RequestID doubles
// as the idempotency token: Airwallex replays the original response for a
// reused request id instead of creating a second intent.
type CreateIntentParams struct {
	RequestID       string            `json:"request_id"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	MerchantOrderID string            `json:"merchant_order_id"`
	ReturnURL       string            `json:"return_url,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CreatePaymentIntent registers an intent to charge the payer.
func (c *Client) CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*PaymentIntent, error) {
	var intent PaymentIntent
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/pa/payment_intents/create", params, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// GetPaymentIntent fetches the current intent state.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	var intent PaymentIntent
	path := "/api/v1/pa/payment_intents/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}
