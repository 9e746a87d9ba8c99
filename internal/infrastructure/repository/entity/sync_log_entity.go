package entity

import (
	"time"

	"archie-core-shopify-sync/internal/domain"
)

// SyncLogEntity is the sync_logs table row
type SyncLogEntity struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)"`
	ConnectionID   string    `gorm:"type:varchar(36);not null;index:idx_sync_logs_connection_started,priority:1"`
	Kind           string    `gorm:"type:varchar(64);not null"`
	Status         string    `gorm:"type:varchar(16);not null;index"`
	ItemsProcessed int       `gorm:"not null;default:0"`
	Cursor         string    `gorm:"type:text"`
	ErrorMessage   string    `gorm:"type:text"`
	StartedAt      time.Time `gorm:"not null;index:idx_sync_logs_connection_started,priority:2"`
	CompletedAt    *time.Time
	InitiatedBy    string `gorm:"type:varchar(128)"`
	UpdatedAt      time.Time
}

func (SyncLogEntity) TableName() string {
	return "sync_logs"
}

// ToDomain converts the row to a domain entity
func (e *SyncLogEntity) ToDomain() *domain.SyncLogEntry {
	return &domain.SyncLogEntry{
		ID:             e.ID,
		ConnectionID:   e.ConnectionID,
		Kind:           e.Kind,
		Status:         domain.SyncStatus(e.Status),
		ItemsProcessed: e.ItemsProcessed,
		Cursor:         e.Cursor,
		ErrorMessage:   e.ErrorMessage,
		StartedAt:      e.StartedAt,
		CompletedAt:    e.CompletedAt,
		InitiatedBy:    e.InitiatedBy,
	}
}

// SyncLogEntityFromDomain converts a domain entity to a row
func SyncLogEntityFromDomain(s *domain.SyncLogEntry) *SyncLogEntity {
	return &SyncLogEntity{
		ID:             s.ID,
		ConnectionID:   s.ConnectionID,
		Kind:           s.Kind,
		Status:         string(s.Status),
		ItemsProcessed: s.ItemsProcessed,
		Cursor:         s.Cursor,
		ErrorMessage:   s.ErrorMessage,
		StartedAt:      s.StartedAt,
		CompletedAt:    s.CompletedAt,
		InitiatedBy:    s.InitiatedBy,
	}
}
