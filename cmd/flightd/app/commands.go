// Package app provides the command line interface of the flight data server.
package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flightops/flight-data-server/internal/config"
	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/versions"
)

// EnvPrefix prefixes every environment variable the CLI reads, e.g. FLIGHTD_DEBUG
const EnvPrefix = "FLIGHTD"

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:               "flightd",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Flight data server",
		Long: `flightd stores flights and their event times, derives phase durations
from them, and synchronizes records with external providers.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize(v.GetBool("debug") || strings.EqualFold(v.GetString("log-level"), "debug"))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (info or debug)")
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	for _, name := range []string{"debug", "log-level", "config"} {
		if err := v.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			logger.Fatalf("Failed to bind %s flag: %v", name, err)
		}
	}

	rootCmd.AddCommand(
		newServeCmd(v),
		newMigrateCmd(v),
		newSyncCmd(v),
		newSchedulesCmd(v),
		newRegistryCmd(v),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig reads the file named by --config, or returns the default
// configuration when none is given.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	path := v.GetString("config")
	if path == "" {
		logger.Debug("No configuration file given, using defaults")
		return config.Default(), nil
	}
	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Infof("Loaded configuration from %s (server: %s, storage: %s)",
		path, cfg.GetServerName(), cfg.GetStorageType())
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
