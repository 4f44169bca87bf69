package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	debugpkg "github.com/cuidar/medstock/internal/debug"
	"github.com/cuidar/medstock/internal/storage"
)

func newMigrateCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the schema up to date and rewrite legacy schedule weekdays",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *cliRuntime, store *storage.Store) error {
				// Opening the store already ran one pass; this one picks up
				// rows written since by older clients.
				startup := rt.guard.MigrationReport()
				rerun := store.MigrateScheduleFormat(ctx)
				stats, err := store.Stats(ctx)
				if err != nil {
					return err
				}

				payload := map[string]any{
					"schema_version": stats.SchemaVersion,
					"startup":        startup,
					"rerun":          rerun,
				}
				return emit(deps, payload, func(w io.Writer) error {
					_, err := fmt.Fprintf(w,
						"schema=v%d scanned=%d rewritten=%d skipped=%d failed=%d\n",
						stats.SchemaVersion,
						startup.Scanned,
						startup.Rewritten+rerun.Rewritten,
						startup.Skipped,
						startup.Failed+rerun.Failed,
					)
					return err
				})
			})
		},
	}
}

func newDoctorCommand(deps commandDeps) *cobra.Command {
	var bundlePath string

	cmd := &cobra.Command{
		Use:     "doctor",
		Short:   "Check config and store health",
		Example: "  medstock doctor --bundle ./medstock-debug.json",
		Args:    noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle := collectBundle(cmd.Context(), deps)
			if strings.TrimSpace(bundlePath) != "" {
				if err := debugpkg.WriteBundle(bundlePath, bundle); err != nil {
					return mapCommandError(err)
				}
			}

			if deps.globals.JSON {
				if err := printJSON(deps.out, map[string]any{"checks": bundle.Checks, "notes": bundle.Notes}); err != nil {
					return mapCommandError(err)
				}
			} else if !deps.globals.Quiet {
				p := paletteFor(deps)
				for _, check := range bundle.Checks {
					state := p.normal.Render("ok")
					if !check.OK {
						state = p.low.Render("fail")
					}
					if _, err := fmt.Fprintf(deps.out, "%s: %s (%s)\n", check.Name, state, check.Message); err != nil {
						return mapCommandError(err)
					}
				}
				for _, note := range bundle.Notes {
					if _, err := fmt.Fprintf(deps.out, "note: %s\n", note); err != nil {
						return mapCommandError(err)
					}
				}
			}

			if !bundle.Healthy() {
				return asExitError(ExitCodeGeneric, fmt.Errorf("doctor: one or more checks failed"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "Also write a JSON debug bundle to this path")
	return cmd
}

func newDebugCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "debug",
		Short:   "Diagnostics helpers",
		Example: "  medstock debug bundle --output ./medstock-debug.json",
	}
	cmd.AddCommand(newDebugBundleCommand(deps))
	return cmd
}

func newDebugBundleCommand(deps commandDeps) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Collect diagnostics into a JSON bundle",
		Example: "  medstock debug bundle --output ./medstock-debug.json\n" +
			"  medstock --json debug bundle --output ./medstock-debug.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("debug bundle does not accept positional arguments")
			}
			if strings.TrimSpace(outputPath) == "" {
				return usageErrorf("debug bundle requires --output")
			}

			bundle := collectBundle(cmd.Context(), deps)
			if err := debugpkg.WriteBundle(outputPath, bundle); err != nil {
				return mapCommandError(err)
			}
			if deps.globals.JSON {
				return printJSON(deps.out, map[string]any{"output": outputPath})
			}
			if deps.globals.Quiet {
				return nil
			}
			_, err := fmt.Fprintf(deps.out, "debug bundle written: %s\n", outputPath)
			return mapCommandError(err)
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Output JSON bundle path")
	return cmd
}

func collectBundle(cmdCtx context.Context, deps commandDeps) debugpkg.Bundle {
	ctx, cancel := commandContext(cmdCtx, deps.globals)
	defer cancel()

	bundle := debugpkg.NewBundle()
	bundle.Version = map[string]any{
		"version":    deps.build.Version,
		"commit":     deps.build.Commit,
		"build_time": deps.build.BuildTime,
	}

	rt, err := newRuntime(deps, nil)
	if err != nil {
		bundle.Checks = append(bundle.Checks, debugpkg.Check{Name: "config", OK: false, Message: err.Error()})
		return bundle
	}
	defer rt.Close()

	configMessage := "defaults"
	if rt.report.ConfigLoaded {
		configMessage = rt.report.ConfigPath
	}
	bundle.Checks = append(bundle.Checks, debugpkg.Check{Name: "config", OK: true, Message: configMessage})
	bundle.Config = map[string]any{
		"config_path":        rt.report.ConfigPath,
		"config_loaded":      rt.report.ConfigLoaded,
		"dotenv_path":        rt.report.DotenvPath,
		"store_path":         rt.cfg.Store.Path,
		"expiry_window_days": rt.cfg.Alerts.ExpiryWindowDays,
		"log_level":          rt.cfg.Logging.Level,
	}

	debugpkg.CollectStore(ctx, &bundle, rt.guard)
	return bundle
}
