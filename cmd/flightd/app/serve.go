package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	flightapp "github.com/flightops/flight-data-server/internal/app"
	"github.com/flightops/flight-data-server/internal/logger"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the REST API server.

The configuration file (--config) selects the store, the phase policy, and
the reference data, providers and schedules created at startup. Without one
the server keeps everything in memory.

See examples/ directory for sample configurations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	cmd.Flags().String("address", ":8080", "Address to listen on")
	cmd.Flags().Duration("request-timeout", 30*time.Second, "Maximum duration of one request")
	cmd.Flags().Duration("shutdown-timeout", defaultGracefulTimeout, "Maximum duration of the graceful shutdown")
	for _, name := range []string{"address", "request-timeout", "shutdown-timeout"} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			logger.Fatalf("Failed to bind %s flag: %v", name, err)
		}
	}
	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	app, err := flightapp.NewFlightApp(ctx,
		flightapp.WithConfig(cfg),
		flightapp.WithAddress(v.GetString("address")),
		flightapp.WithRequestTimeout(v.GetDuration("request-timeout")),
	)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	return app.Run(ctx, v.GetDuration("shutdown-timeout"))
}
