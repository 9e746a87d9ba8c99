package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"archie-core-shopify-sync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type prefixHandler struct {
	prefix string
	err    error
	seen   []string
}

func (h *prefixHandler) CanHandle(topic string) bool {
	return strings.HasPrefix(topic, h.prefix)
}

func (h *prefixHandler) Handle(_ context.Context, event *domain.WebhookEvent) error {
	h.seen = append(h.seen, event.Topic)
	return h.err
}

func TestWebhookDispatcher(t *testing.T) {
	orders := &prefixHandler{prefix: "orders/"}
	all := &prefixHandler{prefix: ""}
	failing := &prefixHandler{prefix: "products/", err: errors.New("boom")}

	d := NewWebhookDispatcher(zerolog.Nop())
	d.RegisterHandler(orders)
	d.RegisterHandler(all)
	d.RegisterHandler(failing)

	ctx := context.Background()
	assert.NoError(t, d.Dispatch(ctx, &domain.WebhookEvent{Topic: "orders/create"}))
	assert.Equal(t, []string{"orders/create"}, orders.seen)
	assert.Equal(t, []string{"orders/create"}, all.seen)

	err := d.Dispatch(ctx, &domain.WebhookEvent{Topic: "products/update"})
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, []string{"orders/create", "products/update"}, all.seen)

	empty := NewWebhookDispatcher(zerolog.Nop())
	assert.NoError(t, empty.Dispatch(ctx, &domain.WebhookEvent{Topic: "shop/update"}))
}
