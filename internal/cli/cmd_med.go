package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cuidar/medstock/internal/app"
	"github.com/cuidar/medstock/internal/storage"
)

func newMedicationCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "med",
		Aliases: []string{"medication"},
		Short:   "Medication management",
	}
	cmd.AddCommand(
		newMedicationAddCommand(deps),
		newMedicationListCommand(deps),
		newMedicationShowCommand(deps),
		newMedicationOverviewCommand(deps),
		newMedicationEditCommand(deps),
		newMedicationRemoveCommand(deps),
		newMedicationRestoreCommand(deps),
	)
	return cmd
}

func newMedicationAddCommand(deps commandDeps) *cobra.Command {
	var (
		name         string
		dosage       string
		description  string
		manufacturer string
		category     string
		price        string
		quantity     int
		minimum      int
		maximum      int
		expiry       string
		lot          string
		actor        string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a medication and its initial stock",
		Example: "  medstock med add --name Losartana --dosage 50mg --quantity 30 --min 10 --expiry 2027-01-31\n" +
			"  medstock --json med add --name Dipirona --dosage 500mg --price 12.90",
		Args: noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedPrice, err := parsePriceFlag(price)
			if err != nil {
				return err
			}
			expiryDate, err := parseDateFlag("expiry", expiry)
			if err != nil {
				return err
			}

			req := app.CreateMedicationRequest{
				Name:            name,
				Dosage:          dosage,
				Description:     description,
				Manufacturer:    manufacturer,
				Category:        category,
				Price:           parsedPrice,
				InitialQuantity: quantity,
				Minimum:         changedInt(cmd, "min", minimum),
				Maximum:         changedInt(cmd, "max", maximum),
				ExpiryDate:      expiryDate,
				Lot:             lot,
				Actor:           actor,
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				detail, err := svc.Medications.Create(ctx, req)
				if err != nil {
					return err
				}
				return printMedicationDetail(deps, *detail)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Medication name")
	cmd.Flags().StringVar(&dosage, "dosage", "", "Dosage, e.g. 500mg")
	cmd.Flags().StringVar(&description, "description", "", "Free-form description")
	cmd.Flags().StringVar(&manufacturer, "manufacturer", "", "Manufacturer")
	cmd.Flags().StringVar(&category, "category", "", "Category")
	cmd.Flags().StringVar(&price, "price", "", "Unit price")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "Initial quantity on hand")
	cmd.Flags().IntVar(&minimum, "min", 0, "Low-stock threshold")
	cmd.Flags().IntVar(&maximum, "max", 0, "Stock ceiling")
	cmd.Flags().StringVar(&expiry, "expiry", "", "Expiry date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&lot, "lot", "", "Lot number")
	cmd.Flags().StringVar(&actor, "actor", "", "Who registered the initial stock")
	return cmd
}

func newMedicationListCommand(deps commandDeps) *cobra.Command {
	var (
		all      bool
		category string
		search   string
	)

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List medications",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				list, err := svc.Medications.List(ctx, app.ListMedicationsRequest{
					IncludeInactive: all,
					Category:        category,
					Search:          search,
				})
				if err != nil {
					return err
				}
				p := paletteFor(deps)
				return emit(deps, toMedicationViews(list), func(w io.Writer) error {
					for _, m := range list {
						state := boolToState(m.Active, "", " "+p.muted.Render("(inactive)"))
						if _, err := fmt.Fprintf(w, "%d %s %s price=%s%s\n", m.ID, p.title.Render(m.Name), m.Dosage, m.Price.StringFixed(2), state); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include removed medications")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive search on name/description")
	return cmd
}

func newMedicationShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a medication with its stock and schedules",
		Args:  exactlyOneID("medication"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("medication", args[0])
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				detail, err := svc.Medications.Get(ctx, id)
				if err != nil {
					return err
				}
				return printMedicationDetail(deps, *detail)
			})
		},
	}
}

func newMedicationOverviewCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Every active medication with its stock and active schedules",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				details, err := svc.Medications.Overview(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					views := make([]medicationDetailView, 0, len(details))
					for _, detail := range details {
						views = append(views, toMedicationDetailView(detail))
					}
					return printJSON(deps.out, views)
				}
				for _, detail := range details {
					if err := printMedicationDetail(deps, detail); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newMedicationEditCommand(deps commandDeps) *cobra.Command {
	var (
		name         string
		dosage       string
		description  string
		manufacturer string
		category     string
		price        string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit medication fields",
		Args:  exactlyOneID("medication"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("medication", args[0])
			if err != nil {
				return err
			}
			req := app.UpdateMedicationRequest{
				ID:           id,
				Name:         changedString(cmd, "name", name),
				Dosage:       changedString(cmd, "dosage", dosage),
				Description:  changedString(cmd, "description", description),
				Manufacturer: changedString(cmd, "manufacturer", manufacturer),
				Category:     changedString(cmd, "category", category),
			}
			if cmd.Flags().Changed("price") {
				parsed, err := parsePriceFlag(price)
				if err != nil {
					return err
				}
				req.Price = &parsed
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				if _, err := svc.Medications.Update(ctx, req); err != nil {
					return err
				}
				detail, err := svc.Medications.Get(ctx, id)
				if err != nil {
					return err
				}
				return printMedicationDetail(deps, *detail)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Updated name")
	cmd.Flags().StringVar(&dosage, "dosage", "", "Updated dosage")
	cmd.Flags().StringVar(&description, "description", "", "Updated description")
	cmd.Flags().StringVar(&manufacturer, "manufacturer", "", "Updated manufacturer")
	cmd.Flags().StringVar(&category, "category", "", "Updated category")
	cmd.Flags().StringVar(&price, "price", "", "Updated unit price")
	return cmd
}

func newMedicationRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a medication (kept in history, hidden from listings)",
		Args:  exactlyOneID("medication"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("medication", args[0])
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				if err := svc.Medications.Delete(ctx, id); err != nil {
					return err
				}
				return emit(deps, map[string]any{"removed": id}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "medication removed: %d\n", id)
					return err
				})
			})
		},
	}
}

func newMedicationRestoreCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Bring back a removed medication",
		Args:  exactlyOneID("medication"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("medication", args[0])
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc *app.Services) error {
				if err := svc.Medications.Restore(ctx, id); err != nil {
					return err
				}
				return emit(deps, map[string]any{"restored": id}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "medication restored: %d\n", id)
					return err
				})
			})
		},
	}
}

func printMedicationDetail(deps commandDeps, detail storage.MedicationDetail) error {
	p := paletteFor(deps)
	return emit(deps, toMedicationDetailView(detail), func(w io.Writer) error {
		if _, err := fmt.Fprintf(w, "%d %s %s price=%s category=%s\n",
			detail.ID, p.title.Render(detail.Name), detail.Dosage, detail.Price.StringFixed(2), valueOrDash(detail.Category)); err != nil {
			return err
		}
		if detail.Stock != nil {
			stock := *detail.Stock
			stock.MedicationName = detail.Name
			if _, err := io.WriteString(w, "stock: "); err != nil {
				return err
			}
			if err := writeStockLine(w, p, stock); err != nil {
				return err
			}
		}
		for _, schedule := range detail.Schedules {
			schedule.MedicationName = detail.Name
			if _, err := io.WriteString(w, "schedule: "); err != nil {
				return err
			}
			if err := writeScheduleLine(w, p, schedule); err != nil {
				return err
			}
		}
		return nil
	})
}
