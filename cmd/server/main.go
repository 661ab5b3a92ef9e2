/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the distribution ledger. Configuration comes from
  the environment (and .env) via config.Load; flags override it.

COMMANDS:
  serve            Start the HTTP API (default when no command is given)
  migrate          Create missing tables and exit
  closing toggle   Lock or unlock a warehouse month

STARTUP SEQUENCE (serve):
  1. Load configuration, apply flag overrides
  2. Open the SQLite store (migrates on open)
  3. Connect to Redis when REDIS_ADDRESS is set, else in-process locks
  4. Build handler and router
  5. Start the projection audit scheduler
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Wait for pending order notifications
  4. Stop the audit scheduler
  5. Close Redis and the database

EXAMPLES:
  ./server serve --port=3000 --db=":memory:"
  ./server migrate --db=./data/ledger.db
  ./server closing toggle --warehouse=W1 --period=2024-01 --actor=ops

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/distribution-ledger/config"
)

var (
	cfg    config.Config
	logger *logrus.Logger

	flagPort     int
	flagDB       string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Wholesale order, inventory and balance ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = flagPort
		}
		if cmd.Flags().Changed("db") {
			cfg.DBPath = flagDB
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = flagLogLevel
		}
		logger = config.NewLogger(cfg.LogLevel)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 8080, "HTTP server port")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "ledger.db", `SQLite database path (":memory:" allowed)`)
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "logrus level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.WithError(err).Error("command failed")
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
