package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ridgedb/ridgedb/internal/config"
	"github.com/ridgedb/ridgedb/internal/daemon"
	"github.com/ridgedb/ridgedb/internal/kv"
	"github.com/ridgedb/ridgedb/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "ridgedb",
	Short: "A document store CLI",
	Long: `ridgedb is a small document-database storage engine: documents keyed by
a generated _id, unique and range-queryable secondary indexes, and a
streaming find/update/delete surface. This build has no HTTP or wire
listener (see NON-GOALS in the project's design notes); every subcommand
opens the configured backend directly.`,
}

// global flags
var (
	cfgPath    string
	pretty     bool
	yamlOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a ridgedb.toml config file (defaults embedded if unset)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "render output with color/formatting instead of plain tables")
	rootCmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "render structured output (stats, index list) as YAML instead of a table")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config if given, else the built-in defaults; either
// way RIDGEDB_-prefixed environment variables are overlaid.
func loadConfig() (*config.ServerConfig, error) {
	return config.Load(cfgPath)
}

// openStore opens the configured backend and wraps it in a store.Store,
// returning a closer the caller must invoke once done.
func openStore(ctx context.Context) (*store.Store, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	var backend kv.Store
	backend, err = daemon.OpenBackend(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening backend: %w", err)
	}
	st := store.New(backend, loggerFor(cfg), store.WithMaxDocumentBytes(cfg.MaxDocumentBytes))
	return st, backend.Close, nil
}
