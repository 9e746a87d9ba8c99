package repository

import (
	"context"
	"testing"

	"archie-core-shopify-sync/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepository_UpsertSearchAndDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()
	conn := seedConnection(t, db, "owner-1")

	require.NoError(t, repo.UpsertProducts(ctx, []*domain.Product{
		testProduct(conn.ID, 1, "Coffee Mug"),
		testProduct(conn.ID, 2, "T-Shirt"),
	}))

	renamed := testProduct(conn.ID, 1, "Tea Mug")
	renamed.Price = decimal.RequireFromString("7.25")
	renamed.InventoryCount = 0
	require.NoError(t, repo.UpsertProducts(ctx, []*domain.Product{renamed}))

	count, err := repo.CountProducts(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	found, err := repo.ListProducts(ctx, conn.ID, domain.ProductFilter{Search: "mug"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Tea Mug", found[0].Title)
	assert.True(t, found[0].Price.Equal(decimal.RequireFromString("7.25")))
	assert.Equal(t, 0, found[0].InventoryCount)
	assert.JSONEq(t, "[]", string(found[0].Images))

	require.NoError(t, repo.DeleteProduct(ctx, conn.ID, "2"))
	count, err = repo.CountProducts(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
