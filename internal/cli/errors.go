package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cuidar/medstock/internal/app"
	"github.com/cuidar/medstock/internal/config"
	"github.com/cuidar/medstock/internal/storage"
)

const (
	ExitCodeSuccess      = 0
	ExitCodeGeneric      = 1
	ExitCodeUsage        = 2
	ExitCodeNotFound     = 3
	ExitCodeInsufficient = 4
	ExitCodeIO           = 7
)

type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ExitError) ExitCode() int {
	if e == nil {
		return ExitCodeGeneric
	}
	return e.Code
}

func asExitError(code int, err error) error {
	if err == nil {
		return nil
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return err
	}
	return &ExitError{Code: code, Err: err}
}

func mapCommandError(err error) error {
	if err == nil {
		return nil
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return err
	}

	switch {
	case errors.Is(err, app.ErrValidation),
		errors.Is(err, storage.ErrInvalidPatch),
		errors.Is(err, config.ErrInvalidConfig):
		return asExitError(ExitCodeUsage, err)
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, app.ErrInactiveMedication):
		return asExitError(ExitCodeNotFound, err)
	case errors.Is(err, storage.ErrInsufficientStock):
		return asExitError(ExitCodeInsufficient, err)
	case errors.Is(err, storage.ErrNotInitialized),
		errors.Is(err, storage.ErrSchemaTooNew):
		return asExitError(ExitCodeIO, err)
	case errors.Is(err, context.DeadlineExceeded):
		return asExitError(ExitCodeGeneric, fmt.Errorf("command timed out: %w", err))
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, os.ErrNotExist) {
		return asExitError(ExitCodeIO, err)
	}

	return asExitError(ExitCodeGeneric, err)
}

func usageErrorf(format string, args ...any) error {
	return &ExitError{
		Code: ExitCodeUsage,
		Err:  fmt.Errorf(format, args...),
	}
}
