// Package exitcodes defines standard exit codes for CLI operations so that
// scripts and schedulers can decide whether a failed run is worth retrying.
package exitcodes

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/johndauphine/propfolio/internal/api"
	"github.com/johndauphine/propfolio/internal/durable"
	"github.com/johndauphine/propfolio/internal/migration"
	"github.com/johndauphine/propfolio/internal/staging"
	"github.com/johndauphine/propfolio/internal/wizard"
)

const (
	// Success - command completed without errors
	Success = 0

	// ConfigError - configuration/YAML/JSON parsing errors (non-recoverable, don't retry)
	ConfigError = 1

	// ConnectionError - API, database or pool connection errors (recoverable)
	ConnectionError = 2

	// PersistenceError - a step save, completion or learning transfer was not accepted
	PersistenceError = 3

	// ValidationError - draft or staged record failed validation (non-recoverable)
	ValidationError = 4

	// Cancelled - user cancelled via SIGINT/SIGTERM (recoverable)
	Cancelled = 5

	// StateError - staging store or migration marker errors (non-recoverable)
	StateError = 6

	// IOError - file I/O errors (recoverable)
	IOError = 7

	// AuthError - no session or credentials rejected (non-recoverable until sign-in)
	AuthError = 8
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// FromError determines the appropriate exit code for an error.
// Known sentinel errors are matched first, then error messages.
func FromError(err error) int {
	if err == nil {
		return Success
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Cancelled
	case errors.Is(err, migration.ErrUnauthenticated),
		errors.Is(err, api.ErrUnauthorized),
		errors.Is(err, durable.ErrUnauthorized):
		return AuthError
	case errors.Is(err, migration.ErrTransferRejected),
		errors.Is(err, staging.ErrNoTransferResult),
		errors.Is(err, wizard.ErrStepNotSaved),
		errors.Is(err, wizard.ErrNotCompleted):
		return PersistenceError
	}

	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Status >= 500 {
			return ConnectionError
		}
		return PersistenceError
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return IOError
	}

	errStr := strings.ToLower(err.Error())

	if containsAny(errStr, []string{
		"no such file",
		"file not found",
		"permission denied",
		"is a directory",
		"not a directory",
	}) {
		return IOError
	}

	// Checked before ConfigError so "validation" wording on data wins.
	if containsAny(errStr, []string{
		"is required",
		"requires",
		"must be",
		"must not be",
		"is missing",
		"out of range",
		"exceeds",
		"exactly one payload",
		"record kind",
		"unknown kind",
		"validation failed",
	}) {
		return ValidationError
	}

	if containsAny(errStr, []string{
		"yaml:",
		"json:",
		"unmarshal",
		"invalid configuration",
		"missing required",
		"invalid value",
		"parsing config",
	}) && !containsAny(errStr, []string{"connection", "connect", "dial"}) {
		return ConfigError
	}

	if containsAny(errStr, []string{
		"connection",
		"connect",
		"dial",
		"refused",
		"timeout",
		"unreachable",
		"no such host",
		"network",
		"pool",
		"ping",
	}) {
		return ConnectionError
	}

	if containsAny(errStr, []string{
		"cancel",
		"interrupt",
	}) {
		return Cancelled
	}

	if containsAny(errStr, []string{
		"staging",
		"marker",
		"sqlite",
		"database is locked",
		"state file",
	}) {
		return StateError
	}

	return PersistenceError
}

// IsRecoverable returns true if the error is recoverable (safe to retry).
func IsRecoverable(code int) bool {
	switch code {
	case ConnectionError, Cancelled, IOError:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of the exit code.
func Description(code int) string {
	switch code {
	case Success:
		return "success"
	case ConfigError:
		return "configuration error"
	case ConnectionError:
		return "connection error (recoverable)"
	case PersistenceError:
		return "persistence error"
	case ValidationError:
		return "validation error"
	case Cancelled:
		return "cancelled (recoverable)"
	case StateError:
		return "state error"
	case IOError:
		return "I/O error (recoverable)"
	case AuthError:
		return "authentication required"
	default:
		return "unknown error"
	}
}

func containsAny(s string, substrs []string) bool {
	for _, substr := range substrs {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
