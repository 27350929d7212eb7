package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ridgedb/ridgedb/internal/daemon"
)

var (
	servePidFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ridgedb daemon in the foreground",
	Long: `Boots the configured KV backend and keeps it open for the life of the
process. No HTTP or wire-protocol listener is started — that front end is
out of scope for this build — so "serve" mainly exists to hold a
file-backed or networked backend open (e.g. sqlite, dolt) under a
supervisor, and to host the config hot-reload watcher.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePidFile, "pid-file", "", "write the daemon PID to this path while running")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	d, err := daemon.New(context.Background(), cfg, daemon.Options{
		ConfigPath: cfgPath,
		PidFile:    servePidFile,
	})
	if err != nil {
		return err
	}
	return d.Run()
}
