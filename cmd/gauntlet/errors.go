package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/elee1766/gauntletfuse/src/auth"
	"github.com/elee1766/gauntletfuse/src/config"
	"github.com/elee1766/gauntletfuse/src/invoke"
	"github.com/elee1766/gauntletfuse/src/orchestrator"
	"github.com/elee1766/gauntletfuse/src/storage"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error
	ExitUsage       = 2 // Usage error
	ExitConfig      = 3 // Configuration error
	ExitAuth        = 4 // Authentication error
	ExitPermission  = 5 // Permission error
	ExitTimeout     = 7 // Timeout error
	ExitInterrupted = 8 // Interrupted by user
	ExitNotFound    = 10
	ExitRunFailed   = 11
)

// errRunFailed marks a run that finished in the failed status
var errRunFailed = errors.New("run failed")

// ErrorHandler handles different types of errors and exits with appropriate codes
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError handles an error and exits with the appropriate code
func (h *ErrorHandler) HandleError(err error) {
	if err == nil {
		return
	}
	h.logger.Debug("command failed", "error", err)
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	os.Exit(exitCode(err))
}

// exitCode determines the appropriate exit code for an error
func exitCode(err error) int {
	var cfgErr config.ValidationError
	var ve *storage.ValidationError
	var it *orchestrator.InvalidTransitionError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.Is(err, auth.ErrUnauthenticated):
		return ExitAuth
	case errors.Is(err, auth.ErrForbidden):
		return ExitPermission
	case errors.Is(err, storage.ErrNotFound):
		return ExitNotFound
	case errors.As(err, &ve), errors.As(err, &it):
		return ExitUsage
	case errors.Is(err, orchestrator.ErrCancelled), errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, errRunFailed):
		return ExitRunFailed
	}
	switch invoke.KindOf(err) {
	case invoke.KindTimeout:
		return ExitTimeout
	case invoke.KindAuthFailed:
		return ExitAuth
	}
	return ExitError
}

// FatalError logs a fatal error and exits
func FatalError(logger *slog.Logger, err error) {
	NewErrorHandler(logger).HandleError(err)
}
