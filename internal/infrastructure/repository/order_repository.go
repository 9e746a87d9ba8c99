package repository

import (
	"context"
	"strings"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/infrastructure/repository/entity"
	"archie-core-shopify-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	upsertBatchSize = 100
	scanBatchSize   = 500
	defaultPageSize = 50
	maxPageSize     = 250
)

// GormOrderRepository implements OrderRepository
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new order repository
func NewGormOrderRepository(db *gorm.DB) ports.OrderRepository {
	return &GormOrderRepository{db: db}
}

// UpsertOrders overwrites every column of an existing (connection_id, external_id) row
func (r *GormOrderRepository) UpsertOrders(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]*entity.OrderEntity, 0, len(orders))
	seen := make(map[[2]string]int, len(orders))
	for _, order := range orders {
		row := entity.OrderEntityFromDomain(order)
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.UpdatedAt = now
		// Postgres rejects an ON CONFLICT statement that touches the same row twice
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
		return domain.NewPersistenceError("upsert orders", err)
	}
	return nil
}

func (r *GormOrderRepository) ListOrders(ctx context.Context, connectionID string, filter domain.OrderFilter) ([]*domain.Order, error) {
	query := r.db.WithContext(ctx).Where("connection_id = ?", connectionID)
	if filter.FinancialStatus != "" {
		query = query.Where("financial_status = ?", filter.FinancialStatus)
	}
	if filter.FulfillmentStatus != "" {
		query = query.Where("fulfillment_status = ?", filter.FulfillmentStatus)
	}
	if filter.Since != nil {
		query = query.Where("external_created_at >= ?", filter.Since.UTC())
	}
	if filter.Until != nil {
		query = query.Where("external_created_at < ?", filter.Until.UTC())
	}

	var rows []entity.OrderEntity
	err := query.
		Order("external_created_at DESC").
		Order("external_id DESC").
		Limit(pageSize(filter.Limit)).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewPersistenceError("list orders", err)
	}

	orders := make([]*domain.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].ToDomain())
	}
	return orders, nil
}

func (r *GormOrderRepository) CountOrders(ctx context.Context, connectionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.OrderEntity{}).Where("connection_id = ?", connectionID).Count(&count).Error
	if err != nil {
		return 0, domain.NewPersistenceError("count orders", err)
	}
	return count, nil
}

func (r *GormOrderRepository) Totals(ctx context.Context, connectionID string) (*domain.OrderTotals, error) {
	var row struct {
		Count   int64
		Revenue decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&entity.OrderEntity{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total_price), 0) AS revenue").
		Where("connection_id = ?", connectionID).
		Scan(&row).Error
	if err != nil {
		return nil, domain.NewPersistenceError("sum orders", err)
	}
	return &domain.OrderTotals{Count: row.Count, Revenue: row.Revenue}, nil
}

func (r *GormOrderRepository) CountByFulfillmentStatus(ctx context.Context, connectionID string) ([]domain.StatusCount, error) {
	var counts []domain.StatusCount
	err := r.db.WithContext(ctx).
		Model(&entity.OrderEntity{}).
		Select("fulfillment_status AS status, COUNT(*) AS count").
		Where("connection_id = ?", connectionID).
		Group("fulfillment_status").
		Order("count DESC").
		Order("fulfillment_status").
		Scan(&counts).Error
	if err != nil {
		return nil, domain.NewPersistenceError("count order statuses", err)
	}
	return counts, nil
}

func (r *GormOrderRepository) EachOrder(ctx context.Context, connectionID string, since *time.Time, fn func(*domain.Order) error) error {
	query := r.db.WithContext(ctx).Where("connection_id = ?", connectionID)
	if since != nil {
		query = query.Where("external_created_at >= ?", since.UTC())
	}

	var fnErr error
	var rows []entity.OrderEntity
	res := query.FindInBatches(&rows, scanBatchSize, func(tx *gorm.DB, batch int) error {
		for i := range rows {
			if err := fn(rows[i].ToDomain()); err != nil {
				fnErr = err
				return err
			}
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	if res.Error != nil {
		return domain.NewPersistenceError("scan orders", res.Error)
	}
	return nil
}

// RedactCustomer blanks the customer email on every matching order
func (r *GormOrderRepository) RedactCustomer(ctx context.Context, connectionID string, email string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.OrderEntity{}).
		Where("connection_id = ? AND LOWER(customer_email) = ?", connectionID, strings.ToLower(email)).
		Updates(map[string]interface{}{"customer_email": "", "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, domain.NewPersistenceError("redact customer", res.Error)
	}
	return res.RowsAffected, nil
}

func pageSize(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
