package entity

import (
	"encoding/json"
	"time"

	"archie-core-shopify-sync/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OrderEntity is the orders table row
type OrderEntity struct {
	ID                string          `gorm:"primaryKey;type:varchar(36)"`
	ConnectionID      string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_orders_connection_external,priority:1"`
	ExternalID        string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_orders_connection_external,priority:2"`
	Name              string          `gorm:"type:varchar(64)"`
	TotalPrice        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency          string          `gorm:"type:varchar(8);not null"`
	CustomerEmail     string          `gorm:"type:varchar(255);index"`
	FinancialStatus   string          `gorm:"type:varchar(32)"`
	FulfillmentStatus string          `gorm:"type:varchar(32);not null"`
	LineItems         datatypes.JSON
	ExternalCreatedAt *time.Time `gorm:"index"`
	ExternalUpdatedAt *time.Time
	UpdatedAt         time.Time
}

func (OrderEntity) TableName() string {
	return "orders"
}

// ToDomain converts the row to a domain entity
func (e *OrderEntity) ToDomain() *domain.Order {
	return &domain.Order{
		ID:                e.ID,
		ConnectionID:      e.ConnectionID,
		ExternalID:        e.ExternalID,
		Name:              e.Name,
		TotalPrice:        e.TotalPrice,
		Currency:          e.Currency,
		CustomerEmail:     e.CustomerEmail,
		FinancialStatus:   e.FinancialStatus,
		FulfillmentStatus: e.FulfillmentStatus,
		LineItems:         json.RawMessage(e.LineItems),
		ExternalCreatedAt: e.ExternalCreatedAt,
		ExternalUpdatedAt: e.ExternalUpdatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

// OrderEntityFromDomain converts a domain entity to a row
func OrderEntityFromDomain(o *domain.Order) *OrderEntity {
	return &OrderEntity{
		ID:                o.ID,
		ConnectionID:      o.ConnectionID,
		ExternalID:        o.ExternalID,
		Name:              o.Name,
		TotalPrice:        o.TotalPrice,
		Currency:          o.Currency,
		CustomerEmail:     o.CustomerEmail,
		FinancialStatus:   o.FinancialStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		LineItems:         jsonOrEmptyArray(o.LineItems),
		ExternalCreatedAt: o.ExternalCreatedAt,
		ExternalUpdatedAt: o.ExternalUpdatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func jsonOrEmptyArray(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}
