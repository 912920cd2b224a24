package persist

import (
	"flag"
	"fmt"
	"time"
)

// Parse parses command line arguments and returns the command to execute
// and the application configuration. Flags come before the sub-command;
// export and import take the snapshot file as a positional argument after
// the sub-command.
func Parse(args []string) (Command, *AppConfig, error) {
	flagSet := flag.NewFlagSet("listkeeper", flag.ContinueOnError)

	var (
		localPath     = flagSet.String("local-path", getEnv("LISTKEEPER_LOCAL_PATH", "listkeeper.db"), "SQLite file for the on-device store (\":memory:\" for ephemeral)")
		cloudDSN      = flagSet.String("cloud-dsn", getEnv("LISTKEEPER_CLOUD_DSN", ""), "PostgreSQL DSN for the cloud store (empty: volatile in-memory cloud)")
		authenticated = flagSet.Bool("authenticated", false, "Start in the authenticated cloud-first mode")
		port          = flagSet.String("port", "8080", "Server port")
		noSync        = flagSet.Bool("no-sync", false, "Disable background replication")
		queueSize     = flagSet.Int("sync-queue-size", DefaultConfig().SyncQueueSize, "Background replication queue capacity")
		retryLimit    = flagSet.Int("sync-retry-limit", DefaultConfig().SyncRetryLimit, "Attempts per replication task before giving up")
		retryDelay    = flagSet.Duration("sync-retry-delay", DefaultConfig().SyncRetryDelay, "Pause between replication attempts")
		snapshotDir   = flagSet.String("snapshot-dir", "", "Directory for safety snapshots taken before destructive operations")
		syncWindow    = flagSet.Duration("since", 0, "Limit the sync command to records modified within this window (0 syncs everything)")
		strategy      = flagSet.String("strategy", string(StrategyMigrateAll), "Migration strategy: migrate_all, intelligent_merge, cloud_only, ask_user")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remainingArgs := flagSet.Args()
	if len(remainingArgs) == 0 {
		return nil, nil, fmt.Errorf(`subcommand required

Usage: listkeeper [flags] <command>

Commands:
  run       Start the ListKeeper server
  sync      Push all local data to the cloud store and wait
  migrate   Move guest data into the cloud account
  export    Write a snapshot of the on-device store to a file
  import    Restore a snapshot file into the on-device store
  stats     Print the coordinator state as JSON

Examples:
  # Guest operation on a local SQLite file
  listkeeper run
  listkeeper -local-path ~/.listkeeper/local.db run

  # Authenticated operation against a cloud database
  listkeeper -authenticated -cloud-dsn "postgres://..." run

  # Replication control
  listkeeper -no-sync run                            # No background replication
  listkeeper -sync-retry-limit 5 run

  # Data movement
  listkeeper -cloud-dsn "postgres://..." sync
  listkeeper -cloud-dsn "postgres://..." -since 1h sync     # Recent changes only
  listkeeper -authenticated -cloud-dsn "postgres://..." -strategy intelligent_merge migrate
  listkeeper export backup.lks
  listkeeper import backup.lks`)
	}

	config := &AppConfig{
		LocalPath:     *localPath,
		CloudDSN:      *cloudDSN,
		Authenticated: *authenticated,
		ServerPort:    *port,
		Sync: Config{
			EnableBackgroundSync: !*noSync,
			SyncQueueSize:        *queueSize,
			SyncRetryLimit:       *retryLimit,
			SyncRetryDelay:       *retryDelay,
			SnapshotDir:          *snapshotDir,
		},
	}

	var cmd Command
	switch remainingArgs[0] {
	case "run":
		cmd = &RunCommand{}
	case "sync":
		cmd = &SyncCommand{Window: *syncWindow}
	case "migrate":
		if _, err := ParseStrategy(*strategy); err != nil {
			return nil, nil, err
		}
		// Migration is only meaningful for an authenticated session.
		config.Authenticated = true
		cmd = &MigrateCommand{Strategy: *strategy}
	case "export":
		if len(remainingArgs) < 2 {
			return nil, nil, fmt.Errorf("export requires a snapshot file path")
		}
		cmd = &ExportCommand{Path: remainingArgs[1]}
	case "import":
		if len(remainingArgs) < 2 {
			return nil, nil, fmt.Errorf("import requires a snapshot file path")
		}
		cmd = &ImportCommand{Path: remainingArgs[1]}
	case "stats":
		cmd = &StatsCommand{}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: run, sync, migrate, export, import, stats", remainingArgs[0])
	}

	if config.Sync.SyncRetryDelay <= 0 {
		config.Sync.SyncRetryDelay = time.Second
	}

	return cmd, config, nil
}
