package domain

import "time"

// SyncEvent is published after each engine page outcome
type SyncEvent struct {
	OwnerID        string     `json:"owner_id"`
	ConnectionID   string     `json:"connection_id"`
	LogID          string     `json:"log_id,omitempty"`
	Kind           string     `json:"kind"`
	Status         SyncStatus `json:"status"`
	Processed      int        `json:"processed"`
	TotalProcessed int        `json:"total_processed"`
	Error          string     `json:"error,omitempty"`
	At             time.Time  `json:"at"`
}
