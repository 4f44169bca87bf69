package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuidar/medstock/internal/app"
	"github.com/cuidar/medstock/internal/storage"
)

func newStockCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Stock levels and adjustments",
	}
	cmd.AddCommand(
		newStockListCommand(deps),
		newStockShowCommand(deps),
		newStockAdjustCommand(deps, storage.MovementIn),
		newStockAdjustCommand(deps, storage.MovementOut),
		newStockSetCommand(deps),
	)
	return cmd
}

func newStockListCommand(deps commandDeps) *cobra.Command {
	var (
		all     bool
		lowOnly bool
	)

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List stock records",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				records, err := svc.Stock.List(ctx, all)
				if err != nil {
					return err
				}
				if lowOnly {
					filtered := records[:0]
					for _, record := range records {
						if record.Quantity <= record.Minimum {
							filtered = append(filtered, record)
						}
					}
					records = filtered
				}
				p := paletteFor(deps)
				return emit(deps, toStockViews(records), func(w io.Writer) error {
					for _, record := range records {
						if err := writeStockLine(w, p, record); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include stock of removed medications")
	cmd.Flags().BoolVar(&lowOnly, "low", false, "Only records at or below their minimum")
	return cmd
}

func newStockShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <medication-id>",
		Short: "Show the stock record of a medication",
		Args:  exactlyOneID("medication"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("medication", args[0])
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				record, err := svc.Stock.Get(ctx, id)
				if err != nil {
					return err
				}
				return printStockRecord(deps, *record)
			})
		},
	}
}

func newStockAdjustCommand(deps commandDeps, kind storage.MovementKind) *cobra.Command {
	var (
		quantity int
		actor    string
		reason   string
		date     string
		expiry   string
		lot      string
	)

	use, short := "in <medication-id>", "Receive units into stock"
	if kind == storage.MovementOut {
		use, short = "out <medication-id>", "Dispense units from stock"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  exactlyOneID("medication"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("medication", args[0])
			if err != nil {
				return err
			}
			if quantity <= 0 {
				return usageErrorf("%s requires --qty greater than zero", cmd.CommandPath())
			}
			req := app.StockMovementRequest{
				MedicationID: id,
				Quantity:     quantity,
				Actor:        actor,
				Reason:       reason,
			}
			movedAt, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}
			if movedAt != nil {
				req.Date = *movedAt
			}
			if kind == storage.MovementIn {
				if req.ExpiryDate, err = parseDateFlag("expiry", expiry); err != nil {
					return err
				}
				req.Lot = lot
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				var record *storage.StockRecord
				if kind == storage.MovementIn {
					record, err = svc.Stock.Receive(ctx, req)
				} else {
					record, err = svc.Stock.Dispense(ctx, req)
				}
				if err != nil {
					return err
				}
				return printStockRecord(deps, *record)
			})
		},
	}
	cmd.Flags().IntVar(&quantity, "qty", 0, "Number of units")
	cmd.Flags().StringVar(&actor, "actor", "", "Who moved the units")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the units moved")
	cmd.Flags().StringVar(&date, "date", "", "Movement date (YYYY-MM-DD, default now)")
	if kind == storage.MovementIn {
		cmd.Flags().StringVar(&expiry, "expiry", "", "Expiry date of the received batch (YYYY-MM-DD)")
		cmd.Flags().StringVar(&lot, "lot", "", "Lot number of the received batch")
	}
	return cmd
}

func newStockSetCommand(deps commandDeps) *cobra.Command {
	var (
		quantity int
		minimum  int
		maximum  int
		expiry   string
		lot      string
	)

	cmd := &cobra.Command{
		Use:   "set <medication-id>",
		Short: "Overwrite stock fields without recording a movement",
		Args:  exactlyOneID("medication"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("medication", args[0])
			if err != nil {
				return err
			}
			req := app.SetStockRequest{
				MedicationID: id,
				Quantity:     changedInt(cmd, "qty", quantity),
				Minimum:      changedInt(cmd, "min", minimum),
				Maximum:      changedInt(cmd, "max", maximum),
				Lot:          changedString(cmd, "lot", lot),
			}
			if req.ExpiryDate, err = parseDateFlag("expiry", expiry); err != nil {
				return err
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				record, err := svc.Stock.Set(ctx, req)
				if err != nil {
					return err
				}
				return printStockRecord(deps, *record)
			})
		},
	}
	cmd.Flags().IntVar(&quantity, "qty", 0, "Quantity on hand")
	cmd.Flags().IntVar(&minimum, "min", 0, "Low-stock threshold")
	cmd.Flags().IntVar(&maximum, "max", 0, "Stock ceiling")
	cmd.Flags().StringVar(&expiry, "expiry", "", "Expiry date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&lot, "lot", "", "Lot number")
	return cmd
}

func newMovementCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "movement",
		Short: "Stock movement history",
	}
	cmd.AddCommand(newMovementListCommand(deps))
	return cmd
}

func newMovementListCommand(deps commandDeps) *cobra.Command {
	var (
		medicationID int64
		kind         string
		since        string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List stock movements, newest first",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sinceDate, err := parseDateFlag("since", since)
			if err != nil {
				return err
			}
			req := app.ListMovementsRequest{
				MedicationID: medicationID,
				Kind:         storage.MovementKind(kind),
				Since:        sinceDate,
				Limit:        limit,
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				movements, err := svc.Stock.Movements(ctx, req)
				if err != nil {
					return err
				}
				return emit(deps, toMovementViews(movements), func(w io.Writer) error {
					for _, m := range movements {
						if _, err := fmt.Fprintf(w, "%d %s %s %s %d actor=%s reason=%s\n",
							m.ID, m.Date.Local().Format(time.DateTime), m.MedicationName, m.Kind, m.Quantity,
							valueOrDash(m.Actor), valueOrDash(m.Reason)); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().Int64Var(&medicationID, "med", 0, "Only movements of this medication id")
	cmd.Flags().StringVar(&kind, "kind", "", "Only this kind (entrada or saida)")
	cmd.Flags().StringVar(&since, "since", "", "Only movements on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of movements")
	return cmd
}

func printStockRecord(deps commandDeps, record storage.StockRecord) error {
	p := paletteFor(deps)
	return emit(deps, toStockView(record), func(w io.Writer) error {
		return writeStockLine(w, p, record)
	})
}
