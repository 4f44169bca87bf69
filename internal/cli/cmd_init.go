package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuidar/medstock/internal/app"
	"github.com/cuidar/medstock/internal/config"
)

func newInitCommand(deps commandDeps) *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create the database",
		Example: "  medstock init\n" +
			"  medstock --db ./medstock.db init --demo",
		Args: noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd.Context(), deps.globals)
			defer cancel()

			var seed *bool
			if cmd.Flags().Changed("demo") {
				seed = &demo
			}
			rt, err := newRuntime(deps, seed)
			if err != nil {
				return mapCommandError(err)
			}
			defer rt.Close()

			configPath := rt.report.ConfigPath
			wroteConfig, err := config.WriteDefault(configPath, rt.cfg)
			if err != nil {
				return mapCommandError(err)
			}

			stats, err := app.BootstrapStore(ctx, rt.cfg.Store.Path, rt.cfg.Store.SeedDemo, rt.logger)
			if err != nil {
				return mapCommandError(err)
			}

			if deps.globals.JSON {
				return printJSON(deps.out, map[string]any{
					"initialized":    true,
					"store_path":     rt.cfg.Store.Path,
					"config_path":    configPath,
					"config_written": wroteConfig,
					"schema_version": stats.SchemaVersion,
					"medications":    stats.Rows["medications"],
				})
			}
			if deps.globals.Quiet {
				return nil
			}

			if _, err := fmt.Fprintf(deps.out, "initialized store: %s (schema v%d, %d medications)\n",
				rt.cfg.Store.Path, stats.SchemaVersion, stats.Rows["medications"]); err != nil {
				return mapCommandError(err)
			}
			state := "kept existing config"
			if wroteConfig {
				state = "wrote config"
			}
			_, err = fmt.Fprintf(deps.out, "%s: %s\n", state, configPath)
			return mapCommandError(err)
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "Seed demo medications into an empty database")
	return cmd
}
