package repository

import (
	"context"
	"errors"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/infrastructure/repository/entity"
	"archie-core-shopify-sync/internal/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormConnectionRepository implements ConnectionRepository on the relational store
type GormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new connection repository
func NewGormConnectionRepository(db *gorm.DB) ports.ConnectionRepository {
	return &GormConnectionRepository{db: db}
}

func (r *GormConnectionRepository) GetActiveConnection(ctx context.Context, ownerID string) (*domain.Connection, error) {
	return r.findActive(ctx, "owner_id = ?", ownerID)
}

func (r *GormConnectionRepository) GetActiveConnectionByEndpoint(ctx context.Context, endpoint string) (*domain.Connection, error) {
	return r.findActive(ctx, "store_endpoint = ?", endpoint)
}

func (r *GormConnectionRepository) findActive(ctx context.Context, query string, arg string) (*domain.Connection, error) {
	var row entity.ConnectionEntity
	err := r.db.WithContext(ctx).
		Where(query, arg).
		Where("is_active = ?", true).
		Order("connected_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewPersistenceError("get connection", err)
	}
	return row.ToDomain(), nil
}

// UpsertConnection keeps one row per owner. Replacing a connection reactivates it.
// Pointing the owner at a different store purges the previous store's orders, products and
// sync history in the same transaction.
func (r *GormConnectionRepository) UpsertConnection(ctx context.Context, connection *domain.Connection) (*domain.Connection, error) {
	now := time.Now().UTC()
	row := entity.ConnectionEntityFromDomain(connection)
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.IsActive = true
	row.ConnectedAt = now
	row.LastSyncAt = &now
	row.UpdatedAt = now
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entity.ConnectionEntity
		err := tx.Where("owner_id = ?", row.OwnerID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case existing.StoreEndpoint != row.StoreEndpoint:
			if _, err := purgeConnectionData(tx, existing.ID); err != nil {
				return err
			}
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"store_endpoint",
				"shop_name",
				"encrypted_access_token",
				"encrypted_api_key",
				"encrypted_api_secret",
				"is_active",
				"connected_at",
				"last_sync_at",
				"updated_at",
			}),
		}).Create(row).Error
	})
	if err != nil {
		return nil, domain.NewPersistenceError("save connection", err)
	}

	saved, err := r.GetActiveConnection(ctx, connection.OwnerID)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, domain.NewPersistenceError("save connection", errors.New("connection not visible after upsert"))
	}
	return saved, nil
}

func (r *GormConnectionRepository) RecordLastSync(ctx context.Context, connectionID string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&entity.ConnectionEntity{}).
		Where("id = ?", connectionID).
		Updates(map[string]interface{}{
			"last_sync_at": at.UTC(),
			"updated_at":   time.Now().UTC(),
		}).Error
	if err != nil {
		return domain.NewPersistenceError("record last sync", err)
	}
	return nil
}

// DeactivateAndCleanup flips the active flag and deletes the connection's orders, products and
// sync history in one transaction, then records the cleanup as a terminal entry.
func (r *GormConnectionRepository) DeactivateAndCleanup(ctx context.Context, connectionID string, initiatedBy string) (*domain.SyncLogEntry, error) {
	now := time.Now().UTC()
	cleanup := &entity.SyncLogEntity{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		Kind:         domain.SyncKind(domain.ResourceConnection, domain.SyncModeCleanup),
		Status:       string(domain.SyncStatusSuccess),
		StartedAt:    now,
		CompletedAt:  &now,
		InitiatedBy:  initiatedBy,
		UpdatedAt:    now,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.ConnectionEntity{}).
			Where("id = ?", connectionID).
			Updates(map[string]interface{}{"is_active": false, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNoConnection
		}

		removed, err := purgeConnectionData(tx, connectionID)
		if err != nil {
			return err
		}
		cleanup.ItemsProcessed = int(removed)
		return tx.Create(cleanup).Error
	})
	if errors.Is(err, domain.ErrNoConnection) {
		return nil, err
	}
	if err != nil {
		return nil, domain.NewPersistenceError("clean up connection", err)
	}
	return cleanup.ToDomain(), nil
}

// purgeConnectionData deletes every row synced for a connection and returns the number of
// orders and products removed
func purgeConnectionData(tx *gorm.DB, connectionID string) (int64, error) {
	orders := tx.Where("connection_id = ?", connectionID).Delete(&entity.OrderEntity{})
	if orders.Error != nil {
		return 0, orders.Error
	}
	products := tx.Where("connection_id = ?", connectionID).Delete(&entity.ProductEntity{})
	if products.Error != nil {
		return 0, products.Error
	}
	if err := tx.Where("connection_id = ?", connectionID).Delete(&entity.SyncLogEntity{}).Error; err != nil {
		return 0, err
	}
	return orders.RowsAffected + products.RowsAffected, nil
}

func (r *GormConnectionRepository) ListActiveOwnerIDs(ctx context.Context) ([]string, error) {
	var ownerIDs []string
	err := r.db.WithContext(ctx).
		Model(&entity.ConnectionEntity{}).
		Where("is_active = ?", true).
		Order("owner_id").
		Pluck("owner_id", &ownerIDs).Error
	if err != nil {
		return nil, domain.NewPersistenceError("list active owners", err)
	}
	return ownerIDs, nil
}
