package shopify

import (
	"bytes"
	"io"
	"net/http"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// WebhookVerifier checks the X-Shopify-Hmac-Sha256 signature of webhook deliveries
type WebhookVerifier struct {
	app goshopify.App
}

// NewWebhookVerifier creates a verifier for the app's webhook signing secret
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{app: goshopify.App{ApiSecret: secret}}
}

// Verify reports whether payload carries a valid signature. The request body is replaced with payload.
func (v *WebhookVerifier) Verify(r *http.Request, payload []byte) bool {
	if v.app.ApiSecret == "" {
		return false
	}
	r.Body = io.NopCloser(bytes.NewReader(payload))
	ok := v.app.VerifyWebhookRequest(r)
	r.Body = io.NopCloser(bytes.NewReader(payload))
	return ok
}
