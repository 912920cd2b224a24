// Package store defines the persistence port shared by the on-device and
// cloud backends, the error sentinels adapters translate engine failures
// into, and a read-only wrapper used during migration switchover.
//
// Adapters live in subpackages: memory (tests and ephemeral use) and
// gormstore (SQLite on device, Postgres in the cloud).
package store
