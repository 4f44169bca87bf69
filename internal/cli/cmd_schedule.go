package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cuidar/medstock/internal/app"
)

func newScheduleCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Dosing schedules",
	}
	cmd.AddCommand(
		newScheduleAddCommand(deps),
		newScheduleListCommand(deps),
		newScheduleEditCommand(deps),
		newScheduleToggleCommand(deps),
		newScheduleRemoveCommand(deps),
	)
	return cmd
}

func newScheduleAddCommand(deps commandDeps) *cobra.Command {
	var (
		at       string
		days     []string
		inactive bool
		notes    string
	)

	cmd := &cobra.Command{
		Use:     "add <medication-id>",
		Short:   "Add a dosing time for a medication",
		Example: "  medstock schedule add 1 --time 08:00 --days Seg,Qua,Sex",
		Args:    exactlyOneID("medication"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("medication", args[0])
			if err != nil {
				return err
			}
			req := app.CreateScheduleRequest{
				MedicationID: id,
				Time:         at,
				Weekdays:     days,
				Inactive:     inactive,
				Notes:        notes,
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				schedule, err := svc.Schedules.Create(ctx, req)
				if err != nil {
					return err
				}
				return emit(deps, toScheduleView(*schedule), func(w io.Writer) error {
					return writeScheduleLine(w, paletteFor(deps), *schedule)
				})
			})
		},
	}
	cmd.Flags().StringVar(&at, "time", "", "Time of day (HH:MM)")
	cmd.Flags().StringSliceVar(&days, "days", nil, "Weekdays, e.g. Seg,Ter,Qua (repeatable)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the schedule switched off")
	cmd.Flags().StringVar(&notes, "notes", "", "Instructions, e.g. em jejum")
	return cmd
}

func newScheduleListCommand(deps commandDeps) *cobra.Command {
	var (
		medicationID int64
		activeOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List schedules ordered by time",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				schedules, err := svc.Schedules.List(ctx, medicationID, activeOnly)
				if err != nil {
					return err
				}
				p := paletteFor(deps)
				return emit(deps, toScheduleViews(schedules), func(w io.Writer) error {
					for _, schedule := range schedules {
						if err := writeScheduleLine(w, p, schedule); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().Int64Var(&medicationID, "med", 0, "Only schedules of this medication id")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active schedules")
	return cmd
}

func newScheduleEditCommand(deps commandDeps) *cobra.Command {
	var (
		at    string
		days  []string
		notes string
	)

	cmd := &cobra.Command{
		Use:   "edit <schedule-id>",
		Short: "Change a schedule's time, days or notes",
		Args:  exactlyOneID("schedule"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("schedule", args[0])
			if err != nil {
				return err
			}
			req := app.UpdateScheduleRequest{
				ID:    id,
				Time:  changedString(cmd, "time", at),
				Notes: changedString(cmd, "notes", notes),
			}
			if cmd.Flags().Changed("days") {
				req.Weekdays = &days
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				schedule, err := svc.Schedules.Update(ctx, req)
				if err != nil {
					return err
				}
				return emit(deps, toScheduleView(*schedule), func(w io.Writer) error {
					return writeScheduleLine(w, paletteFor(deps), *schedule)
				})
			})
		},
	}
	cmd.Flags().StringVar(&at, "time", "", "Updated time of day (HH:MM)")
	cmd.Flags().StringSliceVar(&days, "days", nil, "Updated weekdays")
	cmd.Flags().StringVar(&notes, "notes", "", "Updated instructions")
	return cmd
}

func newScheduleToggleCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <schedule-id>",
		Short: "Switch a schedule on or off",
		Args:  exactlyOneID("schedule"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("schedule", args[0])
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				schedule, err := svc.Schedules.Toggle(ctx, id)
				if err != nil {
					return err
				}
				return emit(deps, toScheduleView(*schedule), func(w io.Writer) error {
					return writeScheduleLine(w, paletteFor(deps), *schedule)
				})
			})
		},
	}
}

func newScheduleRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <schedule-id>",
		Short: "Delete a schedule",
		Args:  exactlyOneID("schedule"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("schedule", args[0])
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				if err := svc.Schedules.Delete(ctx, id); err != nil {
					return err
				}
				return emit(deps, map[string]any{"deleted": id}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "schedule removed: %d\n", id)
					return err
				})
			})
		},
	}
}
