package entity

import (
	"encoding/json"
	"time"

	"archie-core-shopify-sync/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ProductEntity is the products table row
type ProductEntity struct {
	ID                string          `gorm:"primaryKey;type:varchar(36)"`
	ConnectionID      string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_products_connection_external,priority:1"`
	ExternalID        string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_products_connection_external,priority:2"`
	Title             string          `gorm:"type:varchar(512)"`
	Price             decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	InventoryCount    int             `gorm:"not null;default:0"`
	Images            datatypes.JSON
	Variants          datatypes.JSON
	ExternalCreatedAt *time.Time
	ExternalUpdatedAt *time.Time
	UpdatedAt         time.Time
}

func (ProductEntity) TableName() string {
	return "products"
}

// ToDomain converts the row to a domain entity
func (e *ProductEntity) ToDomain() *domain.Product {
	return &domain.Product{
		ID:                e.ID,
		ConnectionID:      e.ConnectionID,
		ExternalID:        e.ExternalID,
		Title:             e.Title,
		Price:             e.Price,
		InventoryCount:    e.InventoryCount,
		Images:            json.RawMessage(e.Images),
		Variants:          json.RawMessage(e.Variants),
		ExternalCreatedAt: e.ExternalCreatedAt,
		ExternalUpdatedAt: e.ExternalUpdatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

// ProductEntityFromDomain converts a domain entity to a row
func ProductEntityFromDomain(p *domain.Product) *ProductEntity {
	return &ProductEntity{
		ID:                p.ID,
		ConnectionID:      p.ConnectionID,
		ExternalID:        p.ExternalID,
		Title:             p.Title,
		Price:             p.Price,
		InventoryCount:    p.InventoryCount,
		Images:            jsonOrEmptyArray(p.Images),
		Variants:          jsonOrEmptyArray(p.Variants),
		ExternalCreatedAt: p.ExternalCreatedAt,
		ExternalUpdatedAt: p.ExternalUpdatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}
