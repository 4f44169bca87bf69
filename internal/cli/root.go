package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"
)

const defaultCommandTimeout = 30 * time.Second

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type GlobalOptions struct {
	JSON       bool
	Quiet      bool
	NoColor    bool
	Timeout    time.Duration
	DBPath     string
	ConfigPath string
	LogLevel   string
}

type commandDeps struct {
	out     io.Writer
	logOut  io.Writer
	globals *GlobalOptions
	build   BuildInfo
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	return newRootCommand(out, nil, build)
}

func newRootCommand(out, logOut io.Writer, build BuildInfo) *cobra.Command {
	globals := &GlobalOptions{}
	deps := commandDeps{
		out:     out,
		logOut:  logOut,
		globals: globals,
		build:   build,
	}

	cmd := &cobra.Command{
		Use:           "medstock",
		Short:         "Medication stock, schedules and alerts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("unknown command %q", args[0])
			}
			return cmd.Help()
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	flags := cmd.PersistentFlags()
	flags.BoolVar(&globals.JSON, "json", false, "Print machine-readable JSON")
	flags.BoolVar(&globals.Quiet, "quiet", false, "Suppress non-error output")
	flags.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	flags.DurationVar(&globals.Timeout, "timeout", defaultCommandTimeout, "Per-command timeout")
	flags.StringVar(&globals.DBPath, "db", "", "Path to the SQLite database")
	flags.StringVar(&globals.ConfigPath, "config", "", "Path to the TOML config file")
	flags.StringVar(&globals.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newVersionCommand(deps),
		newInitCommand(deps),
		newMedicationCommand(deps),
		newStockCommand(deps),
		newMovementCommand(deps),
		newScheduleCommand(deps),
		newAlertCommand(deps),
		newMigrateCommand(deps),
		newDoctorCommand(deps),
		newDebugCommand(deps),
	)
	cmd.InitDefaultCompletionCmd()
	return cmd
}
