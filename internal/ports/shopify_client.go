package ports

import (
	"context"
	"time"

	"archie-core-shopify-sync/internal/domain"

	shopify "github.com/bold-commerce/go-shopify/v4"
)

// OrdersPageRequest selects one page of orders. Cursor and UpdatedSince are never combined.
type OrdersPageRequest struct {
	Cursor       string
	UpdatedSince *time.Time
}

// OrdersPage is one page of orders plus the continuation cursor, empty when exhausted
type OrdersPage struct {
	Orders     []shopify.Order
	NextCursor string
}

// StoreClient talks to the Shopify Admin REST API
type StoreClient interface {
	VerifyCredentials(ctx context.Context, creds domain.StoreCredentials) (*shopify.Shop, error)
	FetchOrdersPage(ctx context.Context, creds domain.StoreCredentials, req OrdersPageRequest) (*OrdersPage, error)
	FetchAllProducts(ctx context.Context, creds domain.StoreCredentials) ([]shopify.Product, error)
}
