package persist

import "time"

// Command represents a discrete application operation with its specific
// configuration. Parsing, validation and execution are separated: Parse
// builds a Command and an AppConfig from the argument list, and Main routes
// the Command to the matching method on [App].
//
// Current implementations:
//   - [RunCommand]: HTTP server startup and operation
//   - [SyncCommand]: synchronous full push of local data to the cloud
//   - [MigrateCommand]: guest-data migration into the cloud account
//   - [ExportCommand]: snapshot the on-device store to a file
//   - [ImportCommand]: restore a snapshot file into the on-device store
type Command interface {
	// Name returns the command identifier used for routing. It matches the
	// CLI sub-command name.
	Name() string
}

// RunCommand starts the HTTP server that exposes the persistence API. All
// configuration comes from AppConfig; run-specific options can be added
// here as needed.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }

// SyncCommand pushes local data to the cloud store and waits for the
// result. Unlike the background replication that follows individual writes,
// this is a synchronous pass: it fails when the cloud store is unreachable
// or when any record could not be written.
type SyncCommand struct {
	// Window, when positive, limits the pass to records modified within
	// that duration. Zero pushes everything.
	Window time.Duration
}

func (c *SyncCommand) Name() string { return "sync" }

// MigrateCommand moves guest data from the on-device store into the cloud
// account using the selected strategy.
type MigrateCommand struct {
	// Strategy selects how guest data meets existing cloud data:
	//   - "migrate_all": push everything, cloud copies are overwritten
	//   - "intelligent_merge": push only lists the cloud does not have yet
	//   - "cloud_only": keep the cloud as is, local data stays local
	//   - "ask_user": fail with a pending-decision error so the caller can
	//     prompt and retry with a concrete strategy
	Strategy string
}

func (c *MigrateCommand) Name() string { return "migrate" }

// ExportCommand writes a CBOR snapshot of the on-device store to a file.
// The snapshot file is versioned and can be restored with ImportCommand.
type ExportCommand struct {
	// Path is the snapshot file to create. An existing file is truncated.
	Path string
}

func (c *ExportCommand) Name() string { return "export" }

// ImportCommand restores a snapshot file into the on-device store. Records
// already present are overwritten with the snapshot's version.
type ImportCommand struct {
	// Path is the snapshot file to read.
	Path string
}

func (c *ImportCommand) Name() string { return "import" }

// StatsCommand prints the coordinator state as JSON and exits.
type StatsCommand struct{}

func (c *StatsCommand) Name() string { return "stats" }
