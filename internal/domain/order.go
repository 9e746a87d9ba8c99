package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultCurrency          = "USD"
	DefaultFulfillmentStatus = "unfulfilled"
)

// Order is a store order persisted for one connection
type Order struct {
	ID                string          `json:"id"`
	ConnectionID      string          `json:"connection_id"`
	ExternalID        string          `json:"external_id"`
	Name              string          `json:"name,omitempty"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	Currency          string          `json:"currency"`
	CustomerEmail     string          `json:"customer_email,omitempty"`
	FinancialStatus   string          `json:"financial_status,omitempty"`
	FulfillmentStatus string          `json:"fulfillment_status"`
	LineItems         json.RawMessage `json:"line_items"`
	ExternalCreatedAt *time.Time      `json:"external_created_at,omitempty"`
	ExternalUpdatedAt *time.Time      `json:"external_updated_at,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// OrderLine is the subset of a persisted line item used by analytics
type OrderLine struct {
	ProductID uint64          `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Lines decodes the stored line items, ignoring malformed payloads
func (o *Order) Lines() []OrderLine {
	var lines []OrderLine
	if len(o.LineItems) == 0 {
		return lines
	}
	if err := json.Unmarshal(o.LineItems, &lines); err != nil {
		return nil
	}
	return lines
}

// OrderFilter narrows order reads
type OrderFilter struct {
	FinancialStatus   string
	FulfillmentStatus string
	Since             *time.Time
	Until             *time.Time
	Limit             int
	Offset            int
}

// Product is a store product persisted for one connection
type Product struct {
	ID                string          `json:"id"`
	ConnectionID      string          `json:"connection_id"`
	ExternalID        string          `json:"external_id"`
	Title             string          `json:"title"`
	Price             decimal.Decimal `json:"price"`
	InventoryCount    int             `json:"inventory_count"`
	Images            json.RawMessage `json:"images"`
	Variants          json.RawMessage `json:"variants"`
	ExternalCreatedAt *time.Time      `json:"external_created_at,omitempty"`
	ExternalUpdatedAt *time.Time      `json:"external_updated_at,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ProductFilter narrows product reads
type ProductFilter struct {
	Search string
	Limit  int
	Offset int
}
