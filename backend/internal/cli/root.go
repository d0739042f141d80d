// Package cli is the taskd command line: serve the API or manage the schema.
package cli

import (
	"fmt"
	"os"

	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

// rootOptions is filled by the root command before any subcommand runs.
type rootOptions struct {
	envFile  string
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
}

func (rt *rootOptions) load(cmd *cobra.Command, args []string) error {
	if rt.envFile != "" {
		if err := os.Setenv("ENV_FILE", rt.envFile); err != nil {
			return err
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if rt.logLevel != "" {
		cfg.Log.Level = rt.logLevel
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	rt.cfg = cfg
	rt.logger = logger
	return nil
}

func NewRootCommand() *cobra.Command {
	rt := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "taskd",
		Short: "Task tracker API with due date history",
		Long: `taskd serves the task tracker HTTP API backed by PostgreSQL.

Configuration is read from the environment, after loading an optional
.env file (see --env-file).`,
		Version:           Version,
		PersistentPreRunE: rt.load,
		RunE:              rt.runServe, // Default action is serve
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().StringVar(&rt.envFile, "env-file", "", "Path to an env file (default .env, or $ENV_FILE)")
	rootCmd.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "Override LOG_LEVEL")

	rootCmd.AddCommand(serveCmd(rt))
	rootCmd.AddCommand(migrateCmd(rt))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
