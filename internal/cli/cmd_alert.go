package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cuidar/medstock/internal/alerts"
	"github.com/cuidar/medstock/internal/app"
	"github.com/cuidar/medstock/internal/storage"
)

func newAlertCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Low-stock and expiry alerts",
	}
	cmd.AddCommand(
		newAlertListCommand(deps),
		newAlertReconcileCommand(deps),
		newAlertRaiseCommand(deps),
		newAlertReadCommand(deps),
		newAlertReadAllCommand(deps),
	)
	return cmd
}

func newAlertListCommand(deps commandDeps) *cobra.Command {
	var (
		unread       bool
		medicationID int64
		kind         string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List alerts, newest first",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				list, err := svc.Alerts.List(ctx, storage.AlertFilter{
					UnreadOnly:   unread,
					MedicationID: medicationID,
					Kind:         storage.AlertKind(kind),
					Limit:        limit,
				})
				if err != nil {
					return err
				}
				p := paletteFor(deps)
				return emit(deps, toAlertViews(list), func(w io.Writer) error {
					for _, alert := range list {
						if err := writeAlertLine(w, p, alert); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "Only unread alerts")
	cmd.Flags().Int64Var(&medicationID, "med", 0, "Only alerts of this medication id")
	cmd.Flags().StringVar(&kind, "kind", "", "Only this kind (low-stock or expiry-approaching)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of alerts (0 for all)")
	return cmd
}

func newAlertReconcileCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Evaluate stock against the alert rules and raise new alerts",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				result, err := svc.Alerts.Reconcile(ctx)
				if err != nil {
					return err
				}
				return emit(deps, result, func(w io.Writer) error {
					return writeReconcileSummary(w, result)
				})
			})
		},
	}
}

func newAlertRaiseCommand(deps commandDeps) *cobra.Command {
	var (
		medicationID int64
		kind         string
		message      string
		unique       bool
	)

	cmd := &cobra.Command{
		Use:   "raise",
		Short: "Record an alert by hand",
		Example: "  medstock alert raise --kind lembrete --message \"Renovar receita\" --med 3\n" +
			"  medstock alert raise --kind lembrete --message \"Comprar seringas\" --unique",
		Args: noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := app.RaiseAlertRequest{Kind: kind, Message: message, Unique: unique}
			if cmd.Flags().Changed("med") {
				id := medicationID
				req.MedicationID = &id
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				alert, created, err := svc.Alerts.Raise(ctx, req)
				if err != nil {
					return err
				}
				payload := map[string]any{"created": created}
				if created {
					payload["alert"] = toAlertView(*alert)
				}
				return emit(deps, payload, func(w io.Writer) error {
					if !created {
						_, err := fmt.Fprintln(w, "unread alert already pending; nothing raised")
						return err
					}
					_, err := fmt.Fprintf(w, "alert raised: %d\n", alert.ID)
					return err
				})
			})
		},
	}
	cmd.Flags().Int64Var(&medicationID, "med", 0, "Medication id the alert refers to")
	cmd.Flags().StringVar(&kind, "kind", "", "Alert kind")
	cmd.Flags().StringVar(&message, "message", "", "Alert message")
	cmd.Flags().BoolVar(&unique, "unique", false, "Skip when an unread alert of this kind is pending")
	return cmd
}

func newAlertReadCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "read <alert-id>",
		Short: "Mark an alert as read",
		Args:  exactlyOneID("alert"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("alert", args[0])
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				if err := svc.Alerts.MarkRead(ctx, id); err != nil {
					return err
				}
				return emit(deps, map[string]any{"read": id}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "alert marked read: %d\n", id)
					return err
				})
			})
		},
	}
}

func newAlertReadAllCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every unread alert as read",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				count, err := svc.Alerts.MarkAllRead(ctx)
				if err != nil {
					return err
				}
				return emit(deps, map[string]any{"marked": count}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "alerts marked read: %d\n", count)
					return err
				})
			})
		},
	}
}

func writeReconcileSummary(w io.Writer, result alerts.Result) error {
	_, err := fmt.Fprintf(w, "evaluated=%d matched=%d created=%d\n", result.Evaluated, result.Matched, len(result.Created))
	return err
}
