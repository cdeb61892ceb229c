package app

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	flightapp "github.com/flightops/flight-data-server/internal/app"
	"github.com/flightops/flight-data-server/internal/sync"
)

func newSchedulesCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Inspect sync schedules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List sync schedules with their next run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			providerID, err := cmd.Flags().GetInt64("provider-id")
			if err != nil {
				return err
			}
			return withComponents(cmd.Context(), v, func(ctx context.Context, c *flightapp.Components) error {
				schedules, err := c.Dispatcher.ListSchedules(ctx, providerID)
				if err != nil {
					return fmt.Errorf("failed to list schedules: %w", err)
				}
				return renderSchedules(cmd.OutOrStdout(), schedules)
			})
		},
	}
	list.Flags().Int64("provider-id", 0, "Only list schedules of this provider")
	cmd.AddCommand(list)
	return cmd
}

func renderSchedules(w io.Writer, schedules []sync.ScheduleView) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Schedule", "Model", "Active", "Interval", "Last Success", "Next Run")
	for _, s := range schedules {
		lastSuccess := "never"
		if s.LastSuccess != nil {
			lastSuccess = s.LastSuccess.UTC().Format("2006-01-02 15:04:05")
		}
		row := []string{
			strconv.FormatInt(s.ID, 10),
			s.DisplayName,
			s.Model,
			strconv.FormatBool(s.Active),
			fmt.Sprintf("%d %s", s.IntervalNumber, s.IntervalType),
			lastSuccess,
			s.NextRun,
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to render schedule %d: %w", s.ID, err)
		}
	}
	return table.Render()
}
