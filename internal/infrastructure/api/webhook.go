package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxWebhookBody = 5 << 20

// webhookHandler handles Shopify webhook requests
func webhookHandler(
	verifier WebhookVerifier,
	archive ports.WebhookEventRepository,
	dispatcher WebhookDispatcher,
	logger zerolog.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// Get webhook topic from header
		topic := r.Header.Get("X-Shopify-Topic")
		if topic == "" {
			logger.Warn().Msg("Missing X-Shopify-Topic header")
			http.Error(w, "Missing X-Shopify-Topic header", http.StatusBadRequest)
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read webhook payload")
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if verifier == nil || !verifier.Verify(r, payload) {
			logger.Warn().Str("topic", topic).Msg("Webhook signature verification failed")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}

		event := &domain.WebhookEvent{
			ID:         uuid.NewString(),
			Topic:      topic,
			Shop:       webhookShop(r, payload),
			WebhookID:  r.Header.Get("X-Shopify-Webhook-Id"),
			Payload:    payload,
			Verified:   true,
			ReceivedAt: time.Now().UTC(),
		}

		if archive != nil {
			if err := archive.LogWebhook(ctx, event); err != nil {
				logger.Error().Err(err).Str("topic", topic).Msg("Failed to archive webhook event")
				// Continue processing even if archiving fails
			}
		}

		if err := dispatcher.Dispatch(ctx, event); err != nil {
			logger.Error().
				Err(err).
				Str("topic", topic).
				Str("shop", event.Shop).
				Msg("Failed to dispatch webhook event")

			// Return 500 to trigger Shopify retry
			http.Error(w, "Failed to process webhook event", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"received": "true",
		})
	}
}

// webhookShop reads the shop domain from the payload, falling back to X-Shopify-Shop-Domain
func webhookShop(r *http.Request, payload []byte) string {
	var body struct {
		Domain     string `json:"domain"`
		ShopDomain string `json:"shop_domain"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Domain != "" {
			return body.Domain
		}
		if body.ShopDomain != "" {
			return body.ShopDomain
		}
	}
	return r.Header.Get("X-Shopify-Shop-Domain")
}
