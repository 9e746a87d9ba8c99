package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderTotals is the revenue and count over all of a connection's orders
type OrderTotals struct {
	Count   int64
	Revenue decimal.Decimal
}

// DashboardSummary is the headline card set
type DashboardSummary struct {
	Revenue           decimal.Decimal `json:"revenue"`
	OrderCount        int64           `json:"order_count"`
	ProductCount      int64           `json:"product_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	Currency          string          `json:"currency"`
	LastSyncAt        *time.Time      `json:"last_sync_at,omitempty"`
}

// DailySales is one point of the sales trend, Date formatted YYYY-MM-DD in UTC
type DailySales struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

// StatusCount is the number of orders in one fulfillment status
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// TopProduct aggregates sold line items for one product
type TopProduct struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}
