package repository

import (
	"context"
	"strings"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/infrastructure/repository/entity"
	"archie-core-shopify-sync/internal/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements ProductRepository
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new product repository
func NewGormProductRepository(db *gorm.DB) ports.ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) UpsertProducts(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]*entity.ProductEntity, 0, len(products))
	seen := make(map[[2]string]int, len(products))
	for _, product := range products {
		row := entity.ProductEntityFromDomain(product)
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.UpdatedAt = now
		key := [2]string{row.ConnectionID, row.ExternalID}
		if i, dup := seen[key]; dup {
			rows[i] = row
			continue
		}
		seen[key] = len(rows)
		rows = append(rows, row)
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "connection_id"}, {Name: "external_id"}},
		UpdateAll: true,
	}).CreateInBatches(rows, upsertBatchSize).Error
	if err != nil {
		return domain.NewPersistenceError("upsert products", err)
	}
	return nil
}

func (r *GormProductRepository) ListProducts(ctx context.Context, connectionID string, filter domain.ProductFilter) ([]*domain.Product, error) {
	query := r.db.WithContext(ctx).Where("connection_id = ?", connectionID)
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var rows []entity.ProductEntity
	err := query.
		Order("title ASC").
		Limit(pageSize(filter.Limit)).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewPersistenceError("list products", err)
	}

	products := make([]*domain.Product, 0, len(rows))
	for i := range rows {
		products = append(products, rows[i].ToDomain())
	}
	return products, nil
}

func (r *GormProductRepository) CountProducts(ctx context.Context, connectionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ProductEntity{}).Where("connection_id = ?", connectionID).Count(&count).Error
	if err != nil {
		return 0, domain.NewPersistenceError("count products", err)
	}
	return count, nil
}

func (r *GormProductRepository) DeleteProduct(ctx context.Context, connectionID string, externalID string) error {
	err := r.db.WithContext(ctx).
		Where("connection_id = ? AND external_id = ?", connectionID, externalID).
		Delete(&entity.ProductEntity{}).Error
	if err != nil {
		return domain.NewPersistenceError("delete product", err)
	}
	return nil
}
