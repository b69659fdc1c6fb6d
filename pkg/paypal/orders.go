package paypal

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
)

// Order is the subset of a PayPal order this service reads.
type Order struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	Links       []OrderLink `json:"links"`
	ReferenceID string      `json:"-"`
}

type OrderLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// ApproveURL returns the buyer approval link, or "" if the order has none.
func (o Order) ApproveURL() string {
	for _, link := range o.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}

type CreateOrderParams struct {
	Amount      decimal.Decimal
	Currency    string
	ReferenceID string
	Description string
	ReturnURL   string
	CancelURL   string
}

type orderAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string      `json:"reference_id,omitempty"`
	Description string      `json:"description,omitempty"`
	Amount      orderAmount `json:"amount"`
}

type createOrderRequest struct {
	Intent             string         `json:"intent"`
	PurchaseUnits      []purchaseUnit `json:"purchase_units"`
	ApplicationContext map[string]any `json:"application_context,omitempty"`
}

// CreateOrder opens a CAPTURE order the buyer approves through the returned
// link. Capture happens on PayPal's side once approved; the outcome arrives by
// webhook.
func (c *Client) CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error) {
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	if params.Currency == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order currency is required")
	}

	req := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: params.ReferenceID,
			Description: params.Description,
			Amount: orderAmount{
				CurrencyCode: params.Currency,
				Value:        params.Amount.StringFixed(2),
			},
		}},
	}
	appCtx := map[string]any{}
	if params.ReturnURL != "" {
		appCtx["return_url"] = params.ReturnURL
	}
	if params.CancelURL != "" {
		appCtx["cancel_url"] = params.CancelURL
	}
	if len(appCtx) > 0 {
		req.ApplicationContext = appCtx
	}

	var order Order
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder fetches the current state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	var order Order
	path := fmt.Sprintf("/v2/checkout/orders/%s", orderID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}
