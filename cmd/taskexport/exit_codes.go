package main

import (
	"context"
	"errors"
	"os"

	taskexport "github.com/alnah/go-taskexport"
	"github.com/alnah/go-taskexport/internal/config"
	"github.com/alnah/go-taskexport/internal/dateutil"
	"github.com/alnah/go-taskexport/internal/merge"
	"github.com/alnah/go-taskexport/internal/source"
)

// Exit codes for the taskexport CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess     = 0   // Every export succeeded
	ExitGeneral     = 1   // General/unexpected error
	ExitUsage       = 2   // Invalid flags, config, or items
	ExitIO          = 3   // File not found, permission denied
	ExitLayout      = 4   // Content does not fit the page
	ExitMerge       = 5   // Merge tool failed
	ExitInterrupted = 130 // Canceled by a signal
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var xerr *taskexport.ExportError
	if errors.As(err, &xerr) {
		switch xerr.Kind {
		case taskexport.KindInvalidInput:
			return ExitUsage
		case taskexport.KindLayoutOverflow:
			return ExitLayout
		case taskexport.KindMergeFailure:
			return ExitMerge
		case taskexport.KindCanceled:
			return ExitInterrupted
		}
		return ExitGeneral
	}

	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrCreateOutputDir) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, source.ErrUnsupported) ||
		errors.Is(err, source.ErrInvalidItems) ||
		errors.Is(err, merge.ErrUnknownTool) ||
		errors.Is(err, taskexport.ErrInvalidBatchSize) ||
		errors.Is(err, dateutil.ErrInvalidDateFormat) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrOutputNotDir) {
		return ExitUsage
	}

	return ExitGeneral
}
