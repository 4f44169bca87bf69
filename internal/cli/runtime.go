package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cuidar/medstock/internal/app"
	"github.com/cuidar/medstock/internal/config"
	logpkg "github.com/cuidar/medstock/internal/log"
	"github.com/cuidar/medstock/internal/storage"
)

var loadConfigFn = config.Load

// cliRuntime is everything one command invocation needs: the resolved config,
// a logger and a guard over the store. The store itself is opened lazily.
type cliRuntime struct {
	cfg       config.Config
	report    config.LoadReport
	logger    *slog.Logger
	logCloser io.Closer
	guard     *storage.Guard
}

func newRuntime(deps commandDeps, seedDemo *bool) (*cliRuntime, error) {
	cfg, report, err := loadConfigFn(loadOptions(deps.globals, seedDemo))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	loggingCfg := cfg.Logging
	// Terminal sessions only see warnings unless a level was asked for.
	if loggingCfg.File == "" && (deps.globals == nil || strings.TrimSpace(deps.globals.LogLevel) == "") {
		loggingCfg.Level = "warn"
	}
	logOut := deps.logOut
	if logOut == nil {
		logOut = os.Stderr
	}
	logger, closer, err := logpkg.New(loggingCfg, logOut)
	if err != nil {
		return nil, fmt.Errorf("%w: configure logging: %v", config.ErrInvalidConfig, err)
	}

	guard := storage.NewGuard(storage.GuardOptions{
		Path:     cfg.Store.Path,
		SeedDemo: cfg.Store.SeedDemo,
		Logger:   logger,
	})
	return &cliRuntime{
		cfg:       cfg,
		report:    report,
		logger:    logger,
		logCloser: closer,
		guard:     guard,
	}, nil
}

func (r *cliRuntime) services(store *storage.Store) *app.Services {
	return app.NewServices(store, app.Options{
		Defaults: app.StockDefaults{
			Minimum: r.cfg.Alerts.DefaultMinimum,
			Maximum: r.cfg.Alerts.DefaultMaximum,
		},
		ExpiryWindowDays: r.cfg.Alerts.ExpiryWindowDays,
		Logger:           r.logger,
	})
}

func (r *cliRuntime) Close() error {
	err := r.guard.Close()
	if r.logCloser != nil {
		if closeErr := r.logCloser.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

func loadOptions(globals *GlobalOptions, seedDemo *bool) config.LoadOptions {
	opts := config.LoadOptions{}
	if globals != nil {
		if configPath := strings.TrimSpace(globals.ConfigPath); configPath != "" {
			opts.ConfigPath = configPath
		}
		if dbPath := strings.TrimSpace(globals.DBPath); dbPath != "" {
			opts.Flags.StorePath = &dbPath
		}
		if level := strings.TrimSpace(globals.LogLevel); level != "" {
			opts.Flags.LogLevel = &level
		}
	}
	opts.Flags.SeedDemo = seedDemo
	return opts
}

func commandContext(cmdCtx context.Context, globals *GlobalOptions) (context.Context, context.CancelFunc) {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	timeout := defaultCommandTimeout
	if globals != nil && globals.Timeout > 0 {
		timeout = globals.Timeout
	}
	return context.WithTimeout(cmdCtx, timeout)
}

// withRuntime runs fn against a ready store and maps its error to an exit code.
func withRuntime(cmdCtx context.Context, deps commandDeps, fn func(context.Context, *cliRuntime, *storage.Store) error) error {
	ctx, cancel := commandContext(cmdCtx, deps.globals)
	defer cancel()

	rt, err := newRuntime(deps, nil)
	if err != nil {
		return mapCommandError(err)
	}
	defer rt.Close()

	store, err := rt.guard.EnsureReady(ctx)
	if err != nil {
		return mapCommandError(fmt.Errorf("open store: %w", err))
	}
	return mapCommandError(fn(ctx, rt, store))
}

func withServices(cmdCtx context.Context, deps commandDeps, fn func(context.Context, *app.Services) error) error {
	return withRuntime(cmdCtx, deps, func(ctx context.Context, rt *cliRuntime, store *storage.Store) error {
		return fn(ctx, rt.services(store))
	})
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// emit prints value as JSON under --json, nothing under --quiet, and the
// result of text otherwise.
func emit(deps commandDeps, value any, text func(io.Writer) error) error {
	if deps.globals.JSON {
		return printJSON(deps.out, value)
	}
	if deps.globals.Quiet {
		return nil
	}
	return text(deps.out)
}

func boolToState(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
