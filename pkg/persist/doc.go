// Package persist is the persistence coordination core for a lists-and-items
// productivity application. It routes reads and writes between an on-device
// SQLite store and a cloud PostgreSQL store according to the current routing
// mode, replicates writes to the other side in the background, resolves
// conflicting copies by last-writer-wins on update time, and moves data
// between the stores when the session identity changes.
//
// The entry points are [Coordinator] for embedding the engine in an
// application and [Main] for the command-line interface, which wraps the
// coordinator in an HTTP API (see [App.Run]).
//
// # Modes
//
// The routing mode is derived from the identity state:
//
//   - local-first (guest default): operations hit the device store; writes
//     of authenticated sessions are pushed to the cloud in the background
//   - cloud-first (authenticated default): operations hit the cloud store
//     with device fallback on read errors; writes are mirrored down
//   - local-only: the cloud is never touched
//   - hybrid: reserved, currently routes like cloud-first
//
// # Basic Usage
//
//	# Guest operation on a local SQLite file
//	listkeeper run
//
//	# Authenticated operation against a cloud database
//	listkeeper -authenticated -cloud-dsn "postgres://..." run
//
//	# Push all local data to the cloud and wait
//	listkeeper -cloud-dsn "postgres://..." sync
//
//	# Move guest data into the cloud account
//	listkeeper -cloud-dsn "postgres://..." -strategy intelligent_merge migrate
//
//	# Snapshot the device store
//	listkeeper export backup.lks
//	listkeeper import backup.lks
package persist
