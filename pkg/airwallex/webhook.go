package airwallex

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyWebhookSignature checks the HMAC-SHA256 signature Airwallex sends with
// every webhook: hex(hmac_sha256(secret, timestamp + body)). Verification must
// happen before any field of the payload is trusted.
func VerifyWebhookSignature(payload []byte, timestamp, signature, secret string) bool {
	if timestamp == "" || signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
