package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	"github.com/rs/zerolog"
)

// CustomerRedactHandler clears a customer's email from synced orders on customers/redact
type CustomerRedactHandler struct {
	connections ports.ConnectionRepository
	orders      ports.OrderRepository
	logger      zerolog.Logger
}

// NewCustomerRedactHandler creates a new customer redaction handler
func NewCustomerRedactHandler(connections ports.ConnectionRepository, orders ports.OrderRepository, logger zerolog.Logger) *CustomerRedactHandler {
	return &CustomerRedactHandler{
		connections: connections,
		orders:      orders,
		logger:      logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *CustomerRedactHandler) CanHandle(topic string) bool {
	return topic == "customers/redact"
}

// Handle processes a customer redaction request
func (h *CustomerRedactHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload struct {
		ShopDomain string `json:"shop_domain"`
		Customer   struct {
			ID    uint64 `json:"id"`
			Email string `json:"email"`
		} `json:"customer"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse customer redact webhook payload: %w", err)
	}
	if payload.Customer.Email == "" {
		h.logger.Warn().Str("shop", event.Shop).Uint64("customerId", payload.Customer.ID).Msg("Customer redact request without email")
		return nil
	}

	shop := event.Shop
	if shop == "" {
		shop = payload.ShopDomain
	}
	conn, err := shopConnection(ctx, h.connections, shop)
	if err != nil {
		return err
	}
	if conn == nil {
		return nil
	}

	redacted, err := h.orders.RedactCustomer(ctx, conn.ID, payload.Customer.Email)
	if err != nil {
		return err
	}

	h.logger.Info().
		Str("shop", shop).
		Uint64("customerId", payload.Customer.ID).
		Int64("ordersRedacted", redacted).
		Msg("Customer data redacted")
	return nil
}
