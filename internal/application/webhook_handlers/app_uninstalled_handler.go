package webhook_handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"archie-core-shopify-sync/internal/domain"

	"github.com/rs/zerolog"
)

// UninstallInitiator is recorded on the cleanup entry written for app/uninstalled
const UninstallInitiator = "webhook:app/uninstalled"

// ShopDisconnector tears down the connection for a store domain
type ShopDisconnector interface {
	DisconnectShop(ctx context.Context, shop, initiatedBy string) (*domain.SyncLogEntry, error)
}

// AppUninstalledHandler handles app uninstalled webhook events
type AppUninstalledHandler struct {
	disconnector ShopDisconnector
	logger       zerolog.Logger
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(disconnector ShopDisconnector, logger zerolog.Logger) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		disconnector: disconnector,
		logger:       logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == "app/uninstalled"
}

// Handle removes the shop's connection and all of its synced data
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var shopData struct {
		Domain          string `json:"domain"`
		MyshopifyDomain string `json:"myshopify_domain"`
	}
	if err := json.Unmarshal(event.Payload, &shopData); err != nil {
		return fmt.Errorf("failed to parse app uninstalled webhook payload: %w", err)
	}

	shopDomain := event.Shop
	if shopDomain == "" {
		shopDomain = shopData.MyshopifyDomain
	}
	if shopDomain == "" {
		shopDomain = shopData.Domain
	}

	entry, err := h.disconnector.DisconnectShop(ctx, shopDomain, UninstallInitiator)
	if errors.Is(err, domain.ErrNoConnection) {
		h.logger.Info().Str("shop", shopDomain).Msg("App uninstalled for a shop with no active connection")
		return nil
	}
	if err != nil {
		return err
	}

	h.logger.Info().
		Str("shop", shopDomain).
		Str("logId", entry.ID).
		Int("itemsRemoved", entry.ItemsProcessed).
		Msg("App uninstalled - cleanup completed")
	return nil
}
