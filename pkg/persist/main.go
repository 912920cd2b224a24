package persist

import (
	"context"
	"fmt"
)

// Main is the entry point for the listkeeper application. It parses the
// argument list, builds the App, initializes the coordinator and dispatches
// the command. It can be called directly from tests without building the
// binary; the context cancels the run command's server for graceful
// shutdown.
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	if err := app.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}

	switch c := cmd.(type) {
	case *RunCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case *SyncCommand:
		if err := app.Sync(ctx, c); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
	case *MigrateCommand:
		if err := app.Migrate(ctx, c); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case *ExportCommand:
		if err := app.Export(ctx, c); err != nil {
			return err
		}
	case *ImportCommand:
		if err := app.Import(ctx, c); err != nil {
			return err
		}
	case *StatsCommand:
		if err := app.PrintStats(c); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}

	return nil
}
