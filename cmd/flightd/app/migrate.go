package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flightops/flight-data-server/database"
	"github.com/flightops/flight-data-server/internal/config"
	"github.com/flightops/flight-data-server/internal/logger"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for managing schema versions. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate down (0 = all)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending database migrations",
			Long: `Apply all pending database migrations to bring the schema up to date.
This command reads the database connection parameters from the config file
and applies all migrations that haven't been run yet.`,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd, v, true)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert database migrations",
			Long: `Revert applied database migrations. Without --num-steps every migration
is reverted and all data is lost.`,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd, v, false)
			},
		},
	)
	return cmd
}

func databaseConfig(v *viper.Viper) (*config.DatabaseConfig, error) {
	if v.GetString("config") == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	return cfg.Database, nil
}

// confirm asks on the command's input unless --yes was given
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return false, fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return true, nil
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s Continue? (yes/no): ", prompt)
	var response string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}
	return response == "yes" || response == "y", nil
}

func runMigrate(cmd *cobra.Command, v *viper.Viper, up bool) error {
	dbCfg, err := databaseConfig(v)
	if err != nil {
		return err
	}
	connString, err := dbCfg.GetConnectionString()
	if err != nil {
		return fmt.Errorf("failed to get connection string: %w", err)
	}

	target := fmt.Sprintf("%s@%s:%d/%s", dbCfg.User, dbCfg.Host, dbCfg.Port, dbCfg.Database)
	if !up {
		steps, err := cmd.Flags().GetUint("num-steps")
		if err != nil {
			return fmt.Errorf("failed to get num-steps flag: %w", err)
		}
		ok, err := confirm(cmd, fmt.Sprintf("About to revert %s migrations on %s.", stepsLabel(steps), target))
		if err != nil || !ok {
			if err == nil {
				logger.Info("Migration cancelled by user")
			}
			return err
		}
		logger.Infof("Reverting database migrations...")
		return database.MigrateDown(connString, int(steps))
	}

	ok, err := confirm(cmd, "About to apply migrations to database "+target+".")
	if err != nil || !ok {
		if err == nil {
			logger.Info("Migration cancelled by user")
		}
		return err
	}
	logger.Infof("Applying database migrations...")
	return database.MigrateUp(connString)
}

func stepsLabel(steps uint) string {
	if steps == 0 {
		return "all"
	}
	return fmt.Sprintf("%d", steps)
}
