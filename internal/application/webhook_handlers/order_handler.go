package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"archie-core-shopify-sync/internal/application"
	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

const topicOrdersDelete = "orders/delete"

// OrderHandler keeps synced orders current between sync runs
type OrderHandler struct {
	connections ports.ConnectionRepository
	orders      ports.OrderRepository
	logger      zerolog.Logger
}

// NewOrderHandler creates a new order webhook handler
func NewOrderHandler(connections ports.ConnectionRepository, orders ports.OrderRepository, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		connections: connections,
		orders:      orders,
		logger:      logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *OrderHandler) CanHandle(topic string) bool {
	return strings.HasPrefix(topic, "orders/")
}

// Handle upserts the order for the connection that owns the shop.
// orders/delete is acknowledged without touching stored rows; orders leave only with their connection.
func (h *OrderHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	if event.Topic == topicOrdersDelete {
		h.logger.Info().Str("topic", event.Topic).Str("shop", event.Shop).Msg("Ignoring order deletion webhook")
		return nil
	}

	var order goshopify.Order
	if err := json.Unmarshal(event.Payload, &order); err != nil {
		return fmt.Errorf("failed to parse order webhook payload: %w", err)
	}
	if order.Id == 0 {
		return domain.NewValidationError("id", "order webhook payload has no id")
	}

	conn, err := shopConnection(ctx, h.connections, event.Shop)
	if err != nil {
		return err
	}
	if conn == nil {
		h.logger.Debug().Str("topic", event.Topic).Str("shop", event.Shop).Msg("Ignoring order webhook for unconnected shop")
		return nil
	}

	if err := h.orders.UpsertOrders(ctx, []*domain.Order{application.MapOrder(conn.ID, order)}); err != nil {
		return err
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Uint64("orderId", order.Id).
		Msg("Order updated from webhook")
	return nil
}

func shopConnection(ctx context.Context, connections ports.ConnectionRepository, shop string) (*domain.Connection, error) {
	endpoint := domain.NormalizeStoreEndpoint(shop)
	if endpoint == "" {
		return nil, domain.NewValidationError("shop", "webhook has no shop domain")
	}
	return connections.GetActiveConnectionByEndpoint(ctx, endpoint)
}
