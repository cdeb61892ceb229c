package app

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	flightapp "github.com/flightops/flight-data-server/internal/app"
	"github.com/flightops/flight-data-server/internal/logger"
)

// withComponents opens the configured store, seeds it and hands the
// components to fn. Everything is closed before returning.
func withComponents(
	ctx context.Context,
	v *viper.Viper,
	fn func(ctx context.Context, c *flightapp.Components) error,
) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	c, err := flightapp.BuildComponents(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build components: %w", err)
	}
	defer func() {
		if err := c.Close(context.Background()); err != nil {
			logger.Warnf("Failed to close components: %v", err)
		}
	}()

	if err := flightapp.Seed(ctx, c, cfg); err != nil {
		return fmt.Errorf("failed to seed store: %w", err)
	}
	return fn(ctx, c)
}
