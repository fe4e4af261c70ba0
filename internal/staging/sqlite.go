package staging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/johndauphine/propfolio/internal/learning"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps staged records in a local SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	accountID string
}

// NewSQLite opens (or creates) learning.db under dataDir.
func NewSQLite(dataDir, accountID string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "learning.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, accountID: accountID}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS staged_records (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		staged_at TEXT NOT NULL,
		migrated_at TEXT
	);

	CREATE TABLE IF NOT EXISTS migration_marker (
		account_id TEXT PRIMARY KEY,
		completed_at TEXT NOT NULL,
		result TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_staged_pending ON staged_records(migrated_at, kind);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stage inserts or replaces records.
func (s *SQLiteStore) Stage(ctx context.Context, records ...learning.Record) error {
	if err := validateAll(records); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding record %s: %w", r.ID, err)
		}
		stagedAt := r.StagedAt
		if stagedAt.IsZero() {
			stagedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO staged_records (id, kind, payload, staged_at, migrated_at)
			VALUES (?, ?, ?, ?, NULL)
			ON CONFLICT(id) DO UPDATE SET
				kind = excluded.kind,
				payload = excluded.payload,
				staged_at = excluded.staged_at,
				migrated_at = NULL
		`, r.ID, string(r.Kind), string(payload), stagedAt.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("staging record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Records returns pending records in staging order.
func (s *SQLiteStore) Records(ctx context.Context) ([]learning.Record, error) {
	rows, err := s.pending(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]learning.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record)
	}
	return records, nil
}

// pendingRow keeps the stored payload next to the decoded record so the
// flagging step can tell whether the row changed after it was read.
type pendingRow struct {
	record  learning.Record
	payload string
}

func (s *SQLiteStore) pending(ctx context.Context) ([]pendingRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM staged_records
		WHERE migrated_at IS NULL
		ORDER BY staged_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []pendingRow
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r learning.Record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decoding staged record: %w", err)
		}
		pending = append(pending, pendingRow{record: r, payload: payload})
	}
	return pending, rows.Err()
}

// HasLocalData reports whether pending records exist.
func (s *SQLiteStore) HasLocalData(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM staged_records WHERE migrated_at IS NULL
	`).Scan(&n)
	return n > 0, err
}

// IsMigrationComplete reads the account's completion marker.
func (s *SQLiteStore) IsMigrationComplete(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM migration_marker WHERE account_id = ?
	`, s.accountID).Scan(&n)
	return n > 0, err
}

// MigrateToDatabase transfers pending records and, on success, flags them
// and writes the marker in one transaction. Only rows whose payload is
// unchanged since the read are flagged; a record re-staged during the
// transfer stays pending for the next run.
func (s *SQLiteStore) MigrateToDatabase(ctx context.Context, transfer TransferFunc) (*learning.Result, error) {
	rows, err := s.pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading staged records: %w", err)
	}
	records := make([]learning.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record)
	}
	res, err := runTransfer(ctx, records, transfer)
	if err != nil || !res.Success {
		return res, err
	}

	if err := s.commitMigration(ctx, rows, res); err != nil {
		return res, fmt.Errorf("recording migration: %w", err)
	}
	return res, nil
}

func (s *SQLiteStore) commitMigration(ctx context.Context, rows []pendingRow, res *learning.Result) error {
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `
			UPDATE staged_records SET migrated_at = ?
			WHERE id = ? AND payload = ? AND migrated_at IS NULL
		`, now, row.record.ID, row.payload); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO migration_marker (account_id, completed_at, result)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			completed_at = excluded.completed_at,
			result = excluded.result
	`, s.accountID, now, string(resultJSON)); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearMigratedData deletes records already transferred.
func (s *SQLiteStore) ClearMigratedData(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM staged_records WHERE migrated_at IS NOT NULL`)
	return err
}

// ResetMarker removes the account's completion marker.
func (s *SQLiteStore) ResetMarker(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM migration_marker WHERE account_id = ?`, s.accountID)
	return err
}

// Summary returns counts, the marker, and the last successful result.
func (s *SQLiteStore) Summary(ctx context.Context) (*Summary, error) {
	sum := &Summary{Backend: "sqlite", AccountID: s.accountID}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, migrated_at IS NOT NULL, COUNT(*)
		FROM staged_records GROUP BY kind, migrated_at IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var migrated bool
		var n int
		if err := rows.Scan(&kind, &migrated, &n); err != nil {
			return nil, err
		}
		if migrated {
			sum.Migrated.Add(learning.Kind(kind), n)
		} else {
			sum.Pending.Add(learning.Kind(kind), n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var completedAt string
	var resultJSON sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT completed_at, result FROM migration_marker WHERE account_id = ?
	`, s.accountID).Scan(&completedAt, &resultJSON)
	if err == sql.ErrNoRows {
		return sum, nil
	}
	if err != nil {
		return nil, err
	}

	sum.Complete = true
	if t, err := time.Parse(timeLayout, completedAt); err == nil {
		sum.CompletedAt = &t
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var res learning.Result
		if err := json.Unmarshal([]byte(resultJSON.String), &res); err == nil {
			sum.LastResult = &res
		}
	}
	return sum, nil
}

var _ Backend = (*SQLiteStore)(nil)
