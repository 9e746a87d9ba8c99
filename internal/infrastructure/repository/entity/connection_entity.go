package entity

import (
	"time"

	"archie-core-shopify-sync/internal/domain"
)

// ConnectionEntity is the connections table row
type ConnectionEntity struct {
	ID                   string `gorm:"primaryKey;type:varchar(36)"`
	OwnerID              string `gorm:"type:varchar(128);not null;uniqueIndex:idx_connections_owner"`
	StoreEndpoint        string `gorm:"type:varchar(255);not null;index"`
	ShopName             string `gorm:"type:varchar(255)"`
	EncryptedAccessToken string `gorm:"type:text;not null"`
	EncryptedAPIKey      string `gorm:"type:text"`
	EncryptedAPISecret   string `gorm:"type:text"`
	IsActive             bool   `gorm:"not null;index"`
	ConnectedAt          time.Time
	LastSyncAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (ConnectionEntity) TableName() string {
	return "connections"
}

// ToDomain converts the row to a domain entity
func (e *ConnectionEntity) ToDomain() *domain.Connection {
	return &domain.Connection{
		ID:                   e.ID,
		OwnerID:              e.OwnerID,
		StoreEndpoint:        e.StoreEndpoint,
		ShopName:             e.ShopName,
		EncryptedAccessToken: e.EncryptedAccessToken,
		EncryptedAPIKey:      e.EncryptedAPIKey,
		EncryptedAPISecret:   e.EncryptedAPISecret,
		IsActive:             e.IsActive,
		ConnectedAt:          e.ConnectedAt,
		LastSyncAt:           e.LastSyncAt,
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
}

// ConnectionEntityFromDomain converts a domain entity to a row
func ConnectionEntityFromDomain(c *domain.Connection) *ConnectionEntity {
	return &ConnectionEntity{
		ID:                   c.ID,
		OwnerID:              c.OwnerID,
		StoreEndpoint:        c.StoreEndpoint,
		ShopName:             c.ShopName,
		EncryptedAccessToken: c.EncryptedAccessToken,
		EncryptedAPIKey:      c.EncryptedAPIKey,
		EncryptedAPISecret:   c.EncryptedAPISecret,
		IsActive:             c.IsActive,
		ConnectedAt:          c.ConnectedAt,
		LastSyncAt:           c.LastSyncAt,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}
