package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"dida/internal/config"
	"dida/internal/engine"
	"dida/internal/logging"
	"dida/internal/storage"
	"dida/internal/ui"
	"dida/internal/view"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Optional; variables already in the environment win.
	_ = godotenv.Load()
	logging.SetDebug(os.Getenv("DEBUG") == "true")

	flags := flag.NewFlagSet("dida", flag.ContinueOnError)
	configPath := flags.String("config", "", "config file (default $DIDA_CONFIG or ~/.config/dida/config.toml)")
	dbPath := flags.String("db", "", "database file, overrides db_path")
	importPath := flags.String("import", "", "seed the legacy slot from an exported JSON file before loading")
	groupBy := flags.String("group-by", "", "initial list grouping: priority or date")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if *configPath == "" {
		*configPath = config.ResolvePath(os.Getenv)
	}
	cfg, err := config.LoadOrCreate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *groupBy != "" {
		if _, ok := view.ParseGroupBy(*groupBy); !ok {
			fmt.Fprintf(os.Stderr, "unknown --group-by %q\n", *groupBy)
			return 2
		}
		cfg.DefaultGroupBy = *groupBy
	}

	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		return 1
	}
	defer logFile.Close()
	logging.SetOutput(logFile)

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return 1
	}
	defer store.Close()

	ctx := context.Background()
	if *importPath != "" {
		blob, err := storage.ReadLegacyFile(*importPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read import: %v\n", err)
			return 1
		}
		if err := store.WriteLegacy(ctx, blob); err != nil {
			fmt.Fprintf(os.Stderr, "failed to stage import: %v\n", err)
			return 1
		}
	}
	if n, err := store.MigrateLegacy(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to import legacy tasks: %v\n", err)
		return 1
	} else if n > 0 {
		logging.Info("main", "imported %d legacy tasks", n)
	}

	failures := make(chan engine.Failure, 16)
	eng := engine.New(store, engine.Options{
		Retry:     cfg.RetryPolicy(),
		Retention: cfg.RetentionPeriod(),
		GroupBy:   cfg.GroupBy(),
		OnPersistError: func(f engine.Failure) {
			select {
			case failures <- f:
			default:
			}
		},
	})
	if err := eng.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load tasks: %v\n", err)
		return 1
	}
	eng.CleanupCompletedTasks()

	runErr := ui.Run(eng, cfg, failures)

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := eng.Close(closeCtx); err != nil {
		logging.Warn("main", "pending writes abandoned: %v", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error running program: %v\n", runErr)
		return 1
	}
	return 0
}
