package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/config"
	"github.com/tccredit/portal/backend/internal/logging"
)

var (
	envFile string

	cfg       *config.Config
	flushLogs = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "portal-api",
	Short: "TC Credit member portal backend",
	Long: `Serves the member portal API: chat with automated replies and live-agent
escalation, realtime delivery over WebSocket and SSE, consultations,
applications, documents and credit progress.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envErr := godotenv.Load(envFile)
		if envErr != nil && !(errors.Is(envErr, fs.ErrNotExist) && !cmd.Flags().Changed("env-file")) {
			return fmt.Errorf("failed to load %s: %w", envFile, envErr)
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		flushLogs, err = logging.Init(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		if envErr != nil {
			logging.L().Info("no env file found, using process environment", zap.String("path", envFile))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flushLogs()
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the PostgreSQL schema and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flushLogs()
		os.Exit(1)
	}
}
