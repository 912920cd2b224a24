package persist

import "time"

// Config is the typed configuration of the persistence core. All knobs have
// working defaults from DefaultConfig; a zero Config disables background
// sync entirely.
type Config struct {
	// EnableBackgroundSync turns on the fire-and-forget replication queue.
	// When false, writes touch exactly one store and replication happens
	// only through ForceSyncAll or migration.
	EnableBackgroundSync bool `json:"enable_background_sync"`

	// SyncQueueSize bounds the replication queue. Tasks enqueued beyond the
	// bound are dropped with a logged warning, keeping the write path
	// non-blocking.
	SyncQueueSize int `json:"sync_queue_size"`

	// SyncRetryLimit is the number of attempts per queued task before the
	// failure is logged as terminal.
	SyncRetryLimit int `json:"sync_retry_limit"`

	// SyncRetryDelay is the pause between attempts of a failed task.
	SyncRetryDelay time.Duration `json:"sync_retry_delay"`

	// SnapshotDir, when non-empty, is where ClearAllData writes a CBOR
	// safety snapshot before wiping the active store.
	SnapshotDir string `json:"snapshot_dir,omitempty"`
}

// DefaultConfig returns the configuration used when the caller has no
// opinion: background sync on, a moderate queue, three attempts per task.
func DefaultConfig() Config {
	return Config{
		EnableBackgroundSync: true,
		SyncQueueSize:        256,
		SyncRetryLimit:       3,
		SyncRetryDelay:       2 * time.Second,
	}
}
