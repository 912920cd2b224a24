package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/listkeeper/listkeeper/pkg/logger"
	"github.com/listkeeper/listkeeper/pkg/store"
	"github.com/listkeeper/listkeeper/pkg/store/gormstore"
	"github.com/listkeeper/listkeeper/pkg/store/memory"
)

// AppConfig holds the process-level configuration: where the two stores
// live, the starting identity, and the server binding. The embedded Config
// tunes the coordinator itself.
type AppConfig struct {
	// LocalPath is the SQLite database file for the on-device store.
	// ":memory:" gives an ephemeral store, useful in tests.
	LocalPath string

	// CloudDSN is the PostgreSQL connection string for the cloud store.
	// When empty the cloud side runs on an in-memory store and a warning
	// is logged; data written there does not survive the process.
	CloudDSN string

	// Authenticated selects the starting identity and therefore the
	// starting routing mode.
	Authenticated bool

	// ServerPort is the HTTP listen port for the run command.
	ServerPort string

	// Sync tunes the coordinator and its background replication.
	Sync Config
}

// App wires the stores, the coordinator and the logger together for the
// lifetime of the process.
type App struct {
	coord      *Coordinator
	config     *AppConfig
	log        logger.Logger
	localStore store.Store
	cloudStore store.Store
}

// New opens both stores and builds the coordinator. The coordinator is not
// initialized yet; callers run Initialize before dispatching a command so
// tests can build an App around in-memory stores first.
func New(config *AppConfig) (*App, error) {
	log := logger.New(os.Stderr)

	localStore, err := gormstore.OpenSQLite(config.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store at %s: %w", config.LocalPath, err)
	}

	var cloudStore store.Store
	if config.CloudDSN != "" {
		cloudStore, err = gormstore.OpenPostgres(config.CloudDSN)
		if err != nil {
			localStore.Close()
			return nil, fmt.Errorf("failed to connect to cloud store: %w", err)
		}
	} else {
		log.Warn("no cloud DSN configured, using volatile in-memory cloud store", nil)
		cloudStore = memory.New()
	}

	return &App{
		coord:      NewCoordinator(localStore, cloudStore, config.Sync, log),
		config:     config,
		log:        log,
		localStore: localStore,
		cloudStore: cloudStore,
	}, nil
}

// Initialize brings the coordinator up in the configured identity.
func (a *App) Initialize(ctx context.Context) error {
	return a.coord.Initialize(ctx, a.config.Authenticated)
}

// Close disposes the coordinator and closes both stores.
func (a *App) Close() error {
	a.coord.Dispose()
	err := a.localStore.Close()
	if cerr := a.cloudStore.Close(); err == nil {
		err = cerr
	}
	return err
}

// Coordinator exposes the persistence façade, useful for tests.
func (a *App) Coordinator() *Coordinator { return a.coord }

// Sync runs a synchronous push of local data to the cloud store: the full
// collection, or only the recently modified window when one is given.
func (a *App) Sync(ctx context.Context, cmd *SyncCommand) error {
	if cmd.Window > 0 {
		return a.coord.SyncRecentChanges(ctx, time.Now().UTC().Add(-cmd.Window))
	}
	return a.coord.ForceSyncAll(ctx)
}

// Migrate runs the selected guest-data migration strategy.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	strategy, err := ParseStrategy(cmd.Strategy)
	if err != nil {
		return err
	}
	return a.coord.MigrateData(ctx, strategy)
}

// Export writes a snapshot of the on-device store to the given file.
func (a *App) Export(ctx context.Context, cmd *ExportCommand) error {
	f, err := os.Create(cmd.Path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()
	if err := a.coord.ExportSnapshot(ctx, f); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	a.log.Info("snapshot exported", logger.Fields{"path": cmd.Path})
	return nil
}

// Import restores a snapshot file into the on-device store.
func (a *App) Import(ctx context.Context, cmd *ImportCommand) error {
	f, err := os.Open(cmd.Path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()
	if err := a.coord.ImportSnapshot(ctx, f); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	a.log.Info("snapshot imported", logger.Fields{"path": cmd.Path})
	return nil
}

// PrintStats writes the coordinator state to stdout as indented JSON.
func (a *App) PrintStats(cmd *StatsCommand) error {
	out, err := json.MarshalIndent(a.coord.Stats(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// getEnv returns the environment variable value, or the default when the
// variable is unset or empty.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
