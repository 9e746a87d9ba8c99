package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"archie-core-shopify-sync/internal/application"
	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// ProductHandler handles product webhook events
type ProductHandler struct {
	connections ports.ConnectionRepository
	products    ports.ProductRepository
	logger      zerolog.Logger
}

// NewProductHandler creates a new product webhook handler
func NewProductHandler(connections ports.ConnectionRepository, products ports.ProductRepository, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		connections: connections,
		products:    products,
		logger:      logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *ProductHandler) CanHandle(topic string) bool {
	return topic == "products/create" ||
		topic == "products/update" ||
		topic == "products/delete"
}

// Handle processes a product webhook event
func (h *ProductHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var product goshopify.Product
	if err := json.Unmarshal(event.Payload, &product); err != nil {
		return fmt.Errorf("failed to parse product webhook payload: %w", err)
	}
	if product.Id == 0 {
		return domain.NewValidationError("id", "product webhook payload has no id")
	}

	conn, err := shopConnection(ctx, h.connections, event.Shop)
	if err != nil {
		return err
	}
	if conn == nil {
		return nil
	}

	switch event.Topic {
	case "products/delete":
		err = h.products.DeleteProduct(ctx, conn.ID, strconv.FormatUint(product.Id, 10))
	default:
		err = h.products.UpsertProducts(ctx, []*domain.Product{application.MapProduct(conn.ID, product)})
	}
	if err != nil {
		return err
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Uint64("productId", product.Id).
		Msg("Product updated from webhook")
	return nil
}
