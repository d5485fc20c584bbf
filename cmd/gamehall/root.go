package main

import (
	"fmt"
	"log/slog"
	"os"

	"gamehall/config"
	"gamehall/internal/logging"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
	useEnv     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gamehall",
	Short: "Gamehall - rental session console for a gaming center",
	Long: `Gamehall tracks play sessions on a fixed pool of consoles, bills them by
the minute and keeps working from a local cache while the central backend
is unreachable.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to serve when no subcommand is provided
		return runServe(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "Path to configuration file (.json, .yaml or .yml)")
	rootCmd.PersistentFlags().BoolVar(&useEnv, "env", false, "Load configuration from GAMEHALL_* environment variables")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if useEnv {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLogger(logging.LoggerConfig{
		Format: cfg.Logging.Format,
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})
}
