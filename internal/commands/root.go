package commands

import (
	"fmt"
	"os"

	"TodoAPI/internal/config"
	"TodoAPI/internal/logging"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "todo-api",
	Short: "Multi-user todo backend",
	Long: `todo-api serves the todo HTTP API backed by Postgres, with an optional
Redis cache and token denylist. Configuration is read from the environment.`,
	SilenceUsage: true,
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadEnv reads the configuration and builds the process logger from it.
func loadEnv() (config.Config, *log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config: %w", err)
	}
	if cfg.App.Version == "dev" && version != "dev" {
		cfg.App.Version = version
	}
	logger, err := logging.New(os.Stderr, cfg.Log)
	if err != nil {
		return config.Config{}, nil, err
	}
	log.SetDefault(logger)
	return cfg, logger, nil
}
