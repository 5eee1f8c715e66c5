package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	configFile string
	cfg        *Config
	logger     *slog.Logger
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "Sync documents between record types through queued sync jobs",
	Long: `docsync propagates changes from source documents to target documents.

Each sync runs as a persisted job on a background worker pool. Jobs are
typed: a sync job type names the controller that resolves and updates
targets, the queue jobs run on, and how failures are retried.

Configuration is read from --config (yaml, toml or json), a .env file in
the working directory, and DOCSYNC_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = loadConfig(cmd, configFile)
		if err != nil {
			return err
		}
		logger, logCloser = newLogger(cfg.Log)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	pf.String("store", "", "store driver: memory, sqlite, postgres, redis or mongo")
	pf.String("store-dsn", "", "store connection string")
	pf.String("queue", "", "queue driver: memory or redis")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("log-file", "", "write logs to a rotated file instead of stderr")
	pf.String("audit-file", "", "append sync job audit events to a rotated JSON lines file")

	rootCmd.AddGroup(
		&cobra.Group{ID: "run", Title: "Running:"},
		&cobra.Group{ID: "ops", Title: "Operating:"},
	)
	rootCmd.AddCommand(serveCmd, migrateCmd, typesCmd, enqueueCmd, cancelCmd, jobsCmd)
}
