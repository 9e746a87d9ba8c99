package application

import (
	"context"
	"errors"
	"fmt"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	"github.com/rs/zerolog"
)

// WebhookDispatcher routes verified webhook events to every handler that accepts the topic
type WebhookDispatcher struct {
	handlers []ports.WebhookHandler
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a new webhook dispatcher
func NewWebhookDispatcher(logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{logger: logger}
}

// RegisterHandler adds a handler. Handlers run in registration order.
func (d *WebhookDispatcher) RegisterHandler(handler ports.WebhookHandler) {
	d.handlers = append(d.handlers, handler)
}

// Dispatch runs all matching handlers and joins their errors. Unhandled topics are not an error.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) error {
	var errs []error
	handled := 0
	for _, handler := range d.handlers {
		if !handler.CanHandle(event.Topic) {
			continue
		}
		handled++
		if err := handler.Handle(ctx, event); err != nil {
			d.logger.Error().
				Err(err).
				Str("topic", event.Topic).
				Str("shop", event.Shop).
				Msg("Webhook handler failed")
			errs = append(errs, err)
		}
	}

	if handled == 0 {
		d.logger.Debug().Str("topic", event.Topic).Str("shop", event.Shop).Msg("No handler registered for webhook topic")
		return nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to handle webhook %s: %w", event.Topic, errors.Join(errs...))
	}
	return nil
}
