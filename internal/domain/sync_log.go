package domain

import (
	"fmt"
	"strings"
	"time"
)

// SyncStatus is the lifecycle state of a sync log entry
type SyncStatus string

const (
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusError      SyncStatus = "error"
	SyncStatusOverridden SyncStatus = "overridden"
)

// IsTerminal reports whether the status can no longer change
func (s SyncStatus) IsTerminal() bool {
	return s != SyncStatusInProgress
}

// SyncResource names what a sync run moves
type SyncResource string

const (
	ResourceOrders     SyncResource = "orders"
	ResourceProducts   SyncResource = "products"
	ResourceConnection SyncResource = "connection"
)

// SyncMode governs the initial filter of a run
type SyncMode string

const (
	// SyncModeManual requests the full remote history
	SyncModeManual SyncMode = "manual"
	// SyncModeAuto requests records updated since the last successful sync
	SyncModeAuto SyncMode = "auto"
	// SyncModeCleanup marks connection teardown entries
	SyncModeCleanup SyncMode = "cleanup"
)

// ParseSyncMode accepts manual or auto, defaulting to manual when empty
func ParseSyncMode(raw string) (SyncMode, error) {
	switch SyncMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SyncModeManual:
		return SyncModeManual, nil
	case SyncModeAuto:
		return SyncModeAuto, nil
	default:
		return "", NewValidationError("mode", fmt.Sprintf("unsupported sync mode %q", raw))
	}
}

// SyncKind is "<resource>:<mode>", e.g. orders:auto
func SyncKind(resource SyncResource, mode SyncMode) string {
	return string(resource) + ":" + string(mode)
}

// SplitSyncKind returns the resource and mode encoded in kind
func SplitSyncKind(kind string) (SyncResource, SyncMode) {
	resource, mode, _ := strings.Cut(kind, ":")
	return SyncResource(resource), SyncMode(mode)
}

// SyncLogEntry is the durable record of one sync run
type SyncLogEntry struct {
	ID             string     `json:"id"`
	ConnectionID   string     `json:"connection_id"`
	Kind           string     `json:"kind"`
	Status         SyncStatus `json:"status"`
	ItemsProcessed int        `json:"items_processed"`
	Cursor         string     `json:"cursor,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	InitiatedBy    string     `json:"initiated_by,omitempty"`
}

// Resource returns the resource half of the entry kind
func (e *SyncLogEntry) Resource() SyncResource {
	resource, _ := SplitSyncKind(e.Kind)
	return resource
}

// Mode returns the mode half of the entry kind
func (e *SyncLogEntry) Mode() SyncMode {
	_, mode := SplitSyncKind(e.Kind)
	return mode
}

// SyncPageResult is what one engine invocation returns to its caller
type SyncPageResult struct {
	Processed      int    `json:"processed"`
	TotalProcessed int    `json:"total_processed"`
	NextCursor     string `json:"next_cursor,omitempty"`
	LogID          string `json:"log_id"`
	Completed      bool   `json:"completed"`
}

// SyncStatusReport summarizes the latest orders sync for an owner
type SyncStatusReport struct {
	Connected      bool       `json:"connected"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	LastMode       SyncMode   `json:"last_mode,omitempty"`
	LastStatus     SyncStatus `json:"last_status,omitempty"`
	LastItemCount  int        `json:"last_item_count"`
	StoredOrders   int64      `json:"stored_orders"`
	NextAutoSyncAt *time.Time `json:"next_auto_sync_at,omitempty"`
}
