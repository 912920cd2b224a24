// Package models defines the entities handled by the persistence core: lists
// and the items that belong to them, with typed UUID identifiers that
// marshal consistently across JSON APIs, CBOR snapshots, and SQL storage.
package models
