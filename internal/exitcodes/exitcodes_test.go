package exitcodes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/johndauphine/propfolio/internal/api"
	"github.com/johndauphine/propfolio/internal/durable"
	"github.com/johndauphine/propfolio/internal/migration"
	"github.com/johndauphine/propfolio/internal/wizard"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, Success},
		{"path error", &os.PathError{Op: "open", Path: "/foo", Err: errors.New("no such file")}, IOError},
		{"yaml parse error", errors.New("yaml: unmarshal error"), ConfigError},
		{"json parse error", errors.New("json: unmarshal error"), ConfigError},
		{"no such file", errors.New("open config.yaml: no such file or directory"), IOError},
		{"connection refused", errors.New("dial tcp: connection refused"), ConnectionError},
		{"context canceled", context.Canceled, Cancelled},
		{"wrapped deadline", fmt.Errorf("saving step: %w", context.DeadlineExceeded), Cancelled},
		{"interrupt", errors.New("interrupted by user"), Cancelled},
		{"no session", migration.ErrUnauthenticated, AuthError},
		{"api unauthorized", fmt.Errorf("save: %w", api.ErrUnauthorized), AuthError},
		{"durable unauthorized", durable.ErrUnauthorized, AuthError},
		{"transfer rejected", migration.ErrTransferRejected, PersistenceError},
		{"step not saved", wizard.ErrStepNotSaved, PersistenceError},
		{"completion rejected", wizard.ErrNotCompleted, PersistenceError},
		{"api 500", &api.StatusError{Status: 502}, ConnectionError},
		{"api 400", &api.StatusError{Status: 400, Body: "bad"}, PersistenceError},
		{"missing field", errors.New("Purchase: purchase_date is required"), ValidationError},
		{"bad record", errors.New("record r1: expected exactly one payload, got 2"), ValidationError},
		{"unknown kind", errors.New(`unknown record kind "note"`), ValidationError},
		{"sqlite lock", errors.New("staging record r1: database is locked"), StateError},
		{"unknown error", errors.New("something unexpected happened"), PersistenceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got != tt.expected {
				t.Errorf("FromError(%v) = %d (%s), want %d (%s)",
					tt.err, got, Description(got), tt.expected, Description(tt.expected))
			}
		})
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("inner error")
	exitErr := NewExitError(inner, ConnectionError)

	if exitErr.Code != ConnectionError {
		t.Errorf("expected code %d, got %d", ConnectionError, exitErr.Code)
	}

	if exitErr.Error() != "inner error" {
		t.Errorf("expected error message 'inner error', got '%s'", exitErr.Error())
	}

	if errors.Unwrap(exitErr) != inner {
		t.Error("Unwrap should return inner error")
	}

	if FromError(fmt.Errorf("wrapped: %w", exitErr)) != ConnectionError {
		t.Errorf("FromError should extract code from wrapped ExitError")
	}
}

func TestIsRecoverable(t *testing.T) {
	recoverable := []int{ConnectionError, Cancelled, IOError}
	nonRecoverable := []int{Success, ConfigError, PersistenceError, ValidationError, StateError, AuthError}

	for _, code := range recoverable {
		if !IsRecoverable(code) {
			t.Errorf("expected code %d (%s) to be recoverable", code, Description(code))
		}
	}

	for _, code := range nonRecoverable {
		if IsRecoverable(code) {
			t.Errorf("expected code %d (%s) to be non-recoverable", code, Description(code))
		}
	}
}

func TestDescription(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "success"},
		{ConfigError, "configuration error"},
		{ConnectionError, "connection error (recoverable)"},
		{PersistenceError, "persistence error"},
		{ValidationError, "validation error"},
		{Cancelled, "cancelled (recoverable)"},
		{StateError, "state error"},
		{IOError, "I/O error (recoverable)"},
		{AuthError, "authentication required"},
		{99, "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := Description(tt.code)
			if got != tt.expected {
				t.Errorf("Description(%d) = %q, want %q", tt.code, got, tt.expected)
			}
		})
	}
}
