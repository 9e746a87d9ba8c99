package application

import (
	"encoding/json"
	"strconv"

	"archie-core-shopify-sync/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/shopspring/decimal"
)

var emptyJSONArray = json.RawMessage("[]")

// MapOrder converts a Shopify order into the persisted row shape, applying field defaults
func MapOrder(connectionID string, o goshopify.Order) *domain.Order {
	order := &domain.Order{
		ConnectionID:      connectionID,
		ExternalID:        strconv.FormatUint(o.Id, 10),
		Name:              o.Name,
		TotalPrice:        decimalOrZero(o.TotalPrice),
		Currency:          o.Currency,
		CustomerEmail:     o.Email,
		FinancialStatus:   string(o.FinancialStatus),
		FulfillmentStatus: string(o.FulfillmentStatus),
		LineItems:         marshalArray(o.LineItems),
		ExternalCreatedAt: o.CreatedAt,
		ExternalUpdatedAt: o.UpdatedAt,
	}
	if order.Currency == "" {
		order.Currency = domain.DefaultCurrency
	}
	if order.CustomerEmail == "" && o.Customer != nil {
		order.CustomerEmail = o.Customer.Email
	}
	if order.FulfillmentStatus == "" {
		order.FulfillmentStatus = domain.DefaultFulfillmentStatus
	}
	return order
}

// MapProduct converts a Shopify product. Price is the first variant's, inventory the sum over variants.
func MapProduct(connectionID string, p goshopify.Product) *domain.Product {
	product := &domain.Product{
		ConnectionID:      connectionID,
		ExternalID:        strconv.FormatUint(p.Id, 10),
		Title:             p.Title,
		Price:             decimal.Zero,
		Images:            marshalArray(p.Images),
		Variants:          marshalArray(p.Variants),
		ExternalCreatedAt: p.CreatedAt,
		ExternalUpdatedAt: p.UpdatedAt,
	}
	if len(p.Variants) > 0 {
		product.Price = decimalOrZero(p.Variants[0].Price)
	}
	for _, v := range p.Variants {
		product.InventoryCount += v.InventoryQuantity
	}
	return product
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func marshalArray[T any](items []T) json.RawMessage {
	if len(items) == 0 {
		return emptyJSONArray
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return emptyJSONArray
	}
	return raw
}
