package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"archie-core-shopify-sync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDatabase("sqlite://:memory:", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedConnection(t *testing.T, db *gorm.DB, ownerID string) *domain.Connection {
	t.Helper()
	repo := NewGormConnectionRepository(db)
	conn, err := repo.UpsertConnection(context.Background(), &domain.Connection{
		OwnerID:              ownerID,
		StoreEndpoint:        ownerID + ".myshopify.com",
		ShopName:             "Shop " + ownerID,
		EncryptedAccessToken: "sealed",
	})
	require.NoError(t, err)
	return conn
}

func testOrder(connectionID string, externalID int, total string, created time.Time) *domain.Order {
	lines, _ := json.Marshal([]domain.OrderLine{{ProductID: 1, Title: "Mug", Quantity: 2, Price: decimal.RequireFromString("5.00")}})
	return &domain.Order{
		ConnectionID:      connectionID,
		ExternalID:        fmt.Sprintf("%d", externalID),
		Name:              fmt.Sprintf("#%d", externalID),
		TotalPrice:        decimal.RequireFromString(total),
		Currency:          "USD",
		CustomerEmail:     "buyer@example.com",
		FinancialStatus:   "paid",
		FulfillmentStatus: domain.DefaultFulfillmentStatus,
		LineItems:         lines,
		ExternalCreatedAt: &created,
		ExternalUpdatedAt: &created,
	}
}

func testProduct(connectionID string, externalID int, title string) *domain.Product {
	return &domain.Product{
		ConnectionID:   connectionID,
		ExternalID:     fmt.Sprintf("%d", externalID),
		Title:          title,
		Price:          decimal.RequireFromString("19.99"),
		InventoryCount: 3,
	}
}
