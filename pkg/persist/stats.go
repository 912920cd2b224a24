package persist

import "time"

// SyncStatus summarizes the outcome of the most recent bulk sync.
type SyncStatus string

const (
	SyncStatusIdle      SyncStatus = "idle"
	SyncStatusSucceeded SyncStatus = "succeeded"
	SyncStatusFailed    SyncStatus = "failed"
)

// Stats is the typed diagnostics record returned by Coordinator.Stats. It is
// consumed by telemetry and the stats endpoint; it is never persisted.
type Stats struct {
	Initialized      bool       `json:"initialized"`
	Mode             Mode       `json:"mode"`
	Authenticated    bool       `json:"authenticated"`
	Syncing          bool       `json:"syncing"`
	LastSyncTime     time.Time  `json:"last_sync_time"`
	LastSyncStatus   SyncStatus `json:"last_sync_status"`
	PendingSyncTasks int        `json:"pending_sync_tasks"`
	Config           Config     `json:"config"`
}
