// Package staging holds learning records on the local machine until they
// are transferred to the durable store.
//
// Each store keeps two things apart: the staged records themselves and a
// per-account completion marker. The marker survives ClearMigratedData so a
// purged store is never migrated twice.
package staging

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/johndauphine/propfolio/internal/config"
	"github.com/johndauphine/propfolio/internal/learning"
)

// TransferFunc moves one batch to the durable store.
type TransferFunc func(ctx context.Context, batch learning.Batch) (*learning.Result, error)

// ErrNoTransferResult is returned when a transfer reports neither a result nor an error.
var ErrNoTransferResult = errors.New("transfer returned no result")

// Summary describes the store for one account.
type Summary struct {
	Backend     string           `json:"backend"`
	AccountID   string           `json:"account_id"`
	Complete    bool             `json:"complete"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Pending     learning.Counts  `json:"pending"`
	Migrated    learning.Counts  `json:"migrated_awaiting_purge"`
	LastResult  *learning.Result `json:"last_result,omitempty"`
}

// Backend is the local staging store. Implementations include SQLite (the
// default) and a single YAML file for environments where SQLite is impractical.
type Backend interface {
	// Stage adds or replaces records by id.
	Stage(ctx context.Context, records ...learning.Record) error
	// Records returns the records not yet transferred.
	Records(ctx context.Context) ([]learning.Record, error)
	HasLocalData(ctx context.Context) (bool, error)

	// IsMigrationComplete reads the completion marker.
	IsMigrationComplete(ctx context.Context) (bool, error)
	// MigrateToDatabase groups pending records by kind and hands them to
	// transfer. On a successful result the records are flagged migrated and
	// the marker is set. Nothing changes on error or an unsuccessful result.
	MigrateToDatabase(ctx context.Context, transfer TransferFunc) (*learning.Result, error)
	// ClearMigratedData deletes records flagged migrated. The marker is kept.
	ClearMigratedData(ctx context.Context) error
	// ResetMarker clears the completion marker so migration can run again.
	ResetMarker(ctx context.Context) error

	Summary(ctx context.Context) (*Summary, error)
	Close() error
}

// Open returns the backend selected by cfg, scoped to accountID.
func Open(cfg *config.LearningConfig, accountID string) (Backend, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLite(cfg.DataDir, accountID)
	case "file":
		path := cfg.StateFile
		if path == "" {
			path = filepath.Join(cfg.DataDir, "learning.yaml")
		}
		return NewFileStore(path, accountID)
	default:
		return nil, fmt.Errorf("unknown staging backend %q", cfg.Backend)
	}
}

// runTransfer groups records and calls transfer. A nil result without an
// error is treated as a failure.
func runTransfer(ctx context.Context, records []learning.Record, transfer TransferFunc) (*learning.Result, error) {
	batch, err := learning.Group(records)
	if err != nil {
		return nil, fmt.Errorf("grouping staged records: %w", err)
	}
	res, err := transfer(ctx, batch)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrNoTransferResult
	}
	return res, nil
}

func validateAll(records []learning.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}
