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
)

// GormSyncLogRepository implements SyncLogRepository. Every mutation is conditional on the
// entry still being in progress, so terminal entries never change.
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new sync log repository
func NewGormSyncLogRepository(db *gorm.DB) ports.SyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

func (r *GormSyncLogRepository) Create(ctx context.Context, entry *domain.SyncLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = domain.SyncStatusInProgress
	}
	row := entity.SyncLogEntityFromDomain(entry)
	row.UpdatedAt = time.Now().UTC()
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return domain.NewPersistenceError("create sync log", err)
	}
	return nil
}

func (r *GormSyncLogRepository) Get(ctx context.Context, id string) (*domain.SyncLogEntry, error) {
	var row entity.SyncLogEntity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewPersistenceError("get sync log", err)
	}
	return row.ToDomain(), nil
}

func (r *GormSyncLogRepository) Advance(ctx context.Context, id string, delta int, nextCursor string) (*domain.SyncLogEntry, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"items_processed": gorm.Expr("items_processed + ?", delta),
		"cursor":          nextCursor,
		"updated_at":      now,
	}
	if nextCursor == "" {
		updates["status"] = string(domain.SyncStatusSuccess)
		updates["completed_at"] = now
	}

	if err := r.updateInProgress(ctx, id, updates); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *GormSyncLogRepository) Fail(ctx context.Context, id string, message string) error {
	now := time.Now().UTC()
	return r.updateInProgress(ctx, id, map[string]interface{}{
		"status":        string(domain.SyncStatusError),
		"error_message": message,
		"completed_at":  now,
		"updated_at":    now,
	})
}

func (r *GormSyncLogRepository) updateInProgress(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&entity.SyncLogEntity{}).
		Where("id = ? AND status = ?", id, string(domain.SyncStatusInProgress)).
		Updates(updates)
	if res.Error != nil {
		return domain.NewPersistenceError("update sync log", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	existing, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrSyncLogNotFound
	}
	return domain.ErrSyncRunClosed
}

func (r *GormSyncLogRepository) OverrideInProgress(ctx context.Context, connectionID string, resource domain.SyncResource, exceptID string) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&entity.SyncLogEntity{}).
		Where("connection_id = ? AND kind LIKE ? AND status = ? AND id <> ?",
			connectionID, string(resource)+":%", string(domain.SyncStatusInProgress), exceptID).
		Updates(map[string]interface{}{
			"status":       string(domain.SyncStatusOverridden),
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return 0, domain.NewPersistenceError("override sync logs", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormSyncLogRepository) Latest(ctx context.Context, connectionID string, resource domain.SyncResource) (*domain.SyncLogEntry, error) {
	var row entity.SyncLogEntity
	err := r.db.WithContext(ctx).
		Where("connection_id = ? AND kind LIKE ?", connectionID, string(resource)+":%").
		Order("started_at DESC").
		Order("updated_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewPersistenceError("get latest sync log", err)
	}
	return row.ToDomain(), nil
}

func (r *GormSyncLogRepository) List(ctx context.Context, connectionID string, limit int) ([]*domain.SyncLogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []entity.SyncLogEntity
	err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewPersistenceError("list sync logs", err)
	}

	entries := make([]*domain.SyncLogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].ToDomain())
	}
	return entries, nil
}
