package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	flightapp "github.com/flightops/flight-data-server/internal/app"
	"github.com/flightops/flight-data-server/internal/logger"
)

func newSyncCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run provider synchronization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	run := &cobra.Command{
		Use:   "run [schedule-id...]",
		Short: "Run sync schedules once",
		Long: `Run the given schedules once, in order. With --due every active schedule
whose next run has passed is run instead.

A failing provider does not stop the other schedules; its failure is stored
as a provider message. Configuration errors are reported at the end.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := cmd.Flags().GetBool("due")
			if err != nil {
				return err
			}
			if due == (len(args) > 0) {
				return fmt.Errorf("pass either schedule ids or --due")
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withComponents(cmd.Context(), v, func(ctx context.Context, c *flightapp.Components) error {
				if due {
					n, err := c.Dispatcher.RunDue(ctx, time.Now().UTC())
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Ran %d due schedule(s)\n", n)
					return err
				}
				if err := c.Dispatcher.RunSchedules(ctx, ids); err != nil {
					return err
				}
				logger.Infof("Ran %d schedule(s)", len(ids))
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Ran %d schedule(s)\n", len(ids))
				return nil
			})
		},
	}
	run.Flags().Bool("due", false, "Run every schedule that is due")
	cmd.AddCommand(run)
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid schedule id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
