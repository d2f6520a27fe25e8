// Package cmd implements listingctl, the operator CLI for the listing functions.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/listingflow/internal/config"
	"github.com/Lllllllleong/listingflow/internal/logging"
)

const (
	roleLoader   = "loader"
	roleExporter = "exporter"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "listingctl",
	Short: "Listing pipeline CLI",
	Long: `listingctl drives the listing loader and exporter outside Cloud Functions.

Replay a notification batch against the real stores, dry-run a transform
on a local document, or check a deployment's configuration.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default: $"+config.ConfigFileEnv+")")
}

// loadConfig reads settings the same way the deployed functions do, with
// --config taking precedence over the environment's file path.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		if err := os.Setenv(config.ConfigFileEnv, cfgFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(cfg.LogLevel, cfg.LogFormat))
	return cfg, nil
}

func validateRole(cfg *config.Config, role string) error {
	switch role {
	case roleLoader:
		return cfg.ValidateLoader()
	case roleExporter:
		return cfg.ValidateExporter()
	default:
		return fmt.Errorf("unknown role %q: must be %s or %s", role, roleLoader, roleExporter)
	}
}
