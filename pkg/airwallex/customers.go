package airwallex

import (
	"context"
	"net/http"
	"net/url"
)

// Customer is the normalized view of an Airwallex customer object.
type Customer struct {
	ID                 string `json:"id"`
	MerchantCustomerID string `json:"merchant_customer_id"`
	Email              string `json:"email"`
}

// CreateCustomerParams shapes a customer creation call. RequestID is the
// idempotency token; MerchantCustomerID is our side of the mapping.
type CreateCustomerParams struct {
	RequestID          string `json:"request_id"`
	MerchantCustomerID string `json:"merchant_customer_id"`
	Email              string `json:"email,omitempty"`
	FirstName          string `json:"first_name,omitempty"`
	LastName           string `json:"last_name,omitempty"`
}

// CreateCustomer registers a payer with Airwallex so saved payment methods
// can be attached to them later.
func (c *Client) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	var customer Customer
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/pa/customers/create", params, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomer fetches a customer by Airwallex id.
func (c *Client) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var customer Customer
	path := "/api/v1/pa/customers/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}
