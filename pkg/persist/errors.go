package persist

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by every operation invoked before Initialize.
var ErrNotInitialized = errors.New("persistence coordinator not initialized")

// ErrAlreadyInitialized is returned by Initialize when called twice without a
// matching Dispose.
var ErrAlreadyInitialized = errors.New("persistence coordinator already initialized")

// ErrSyncInProgress is returned by ForceSyncAll when a bulk sync is already
// running.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrMigrationDecisionRequired is returned by the ask-user migration
// strategy: the transition is pending until the caller supplies a concrete
// strategy. It is an explicit state, not an alias for another strategy.
var ErrMigrationDecisionRequired = errors.New("migration strategy decision required")

// ErrConcurrentModification is reserved for an update target changed
// underneath the writer. The last-writer-wins merge avoids raising it in the
// current reconciliation paths, but adapters may.
var ErrConcurrentModification = errors.New("record was concurrently modified")

// ValidationError reports a structurally malformed entity. Writes carrying
// one are never retried.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Reason)
}

// NotFoundAnywhereError reports that a persistence check found the record in
// neither store. Absence from exactly one store is the expected state
// mid-sync and is only logged.
type NotFoundAnywhereError struct {
	Entity string
	ID     string
}

func (e *NotFoundAnywhereError) Error() string {
	return fmt.Sprintf("%s %s not found in local or cloud store", e.Entity, e.ID)
}
