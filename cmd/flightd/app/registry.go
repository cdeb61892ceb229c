package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	flightapp "github.com/flightops/flight-data-server/internal/app"
	"github.com/flightops/flight-data-server/internal/models"
)

func newRegistryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the external id registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	lookup := &cobra.Command{
		Use:   "lookup",
		Short: "Print the local id mapped to a provider's external id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			providerID, err := flags.GetInt64("provider")
			if err != nil {
				return err
			}
			model, err := flags.GetString("model")
			if err != nil {
				return err
			}
			externalID, err := flags.GetString("external-id")
			if err != nil {
				return err
			}
			if providerID <= 0 || model == "" || externalID == "" {
				return fmt.Errorf("--provider, --model and --external-id are required")
			}

			return withComponents(cmd.Context(), v, func(ctx context.Context, c *flightapp.Components) error {
				localID, found, err := c.Registry.GetLocalID(ctx, providerID, model, externalID)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("%s %q of provider %d: %w", model, externalID, providerID, models.ErrNotFound)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), localID)
				return err
			})
		},
	}
	lookup.Flags().Int64("provider", 0, "Provider id")
	lookup.Flags().String("model", "", "Model name, e.g. flight.aircraft")
	lookup.Flags().String("external-id", "", "Id of the record at the provider")
	cmd.AddCommand(lookup)
	return cmd
}
