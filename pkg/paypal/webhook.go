package paypal

import (
	"context"
	"encoding/json"
	"net/http"

	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
)

// WebhookHeaders carries the transmission headers PayPal attaches to every
// webhook delivery. All of them are required for verification.
type WebhookHeaders struct {
	TransmissionID   string
	TransmissionTime string
	TransmissionSig  string
	CertURL          string
	AuthAlgo         string
}

// WebhookHeadersFromRequest pulls the PayPal transmission headers off an
// incoming request.
func WebhookHeadersFromRequest(r *http.Request) WebhookHeaders {
	return WebhookHeaders{
		TransmissionID:   r.Header.Get("Paypal-Transmission-Id"),
		TransmissionTime: r.Header.Get("Paypal-Transmission-Time"),
		TransmissionSig:  r.Header.Get("Paypal-Transmission-Sig"),
		CertURL:          r.Header.Get("Paypal-Cert-Url"),
		AuthAlgo:         r.Header.Get("Paypal-Auth-Algo"),
	}
}

func (h WebhookHeaders) complete() bool {
	return h.TransmissionID != "" &&
		h.TransmissionTime != "" &&
		h.TransmissionSig != "" &&
		h.CertURL != "" &&
		h.AuthAlgo != ""
}

type verifyWebhookRequest struct {
	TransmissionID   string          `json:"transmission_id"`
	TransmissionTime string          `json:"transmission_time"`
	TransmissionSig  string          `json:"transmission_sig"`
	CertURL          string          `json:"cert_url"`
	AuthAlgo         string          `json:"auth_algo"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyWebhookResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyWebhookSignature asks PayPal to verify an event delivery. PayPal signs
// webhooks with rotating certificates, so verification goes through their API
// rather than a local HMAC check.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers WebhookHeaders, body []byte) error {
	if !headers.complete() {
		return pkgerrors.New(pkgerrors.CodeSignature, "missing paypal transmission headers")
	}
	if len(body) == 0 {
		return pkgerrors.New(pkgerrors.CodeSignature, "empty webhook body")
	}
	if !json.Valid(body) {
		return pkgerrors.New(pkgerrors.CodeSignature, "webhook body is not valid json")
	}

	req := verifyWebhookRequest{
		TransmissionID:   headers.TransmissionID,
		TransmissionTime: headers.TransmissionTime,
		TransmissionSig:  headers.TransmissionSig,
		CertURL:          headers.CertURL,
		AuthAlgo:         headers.AuthAlgo,
		WebhookID:        c.webhookID,
		WebhookEvent:     json.RawMessage(body),
	}

	var resp verifyWebhookResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", req, &resp); err != nil {
		return err
	}
	if resp.VerificationStatus != "SUCCESS" {
		return pkgerrors.New(pkgerrors.CodeSignature, "paypal webhook signature rejected")
	}
	return nil
}
