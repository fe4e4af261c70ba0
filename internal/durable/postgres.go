package durable

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/johndauphine/propfolio/internal/config"
	"github.com/johndauphine/propfolio/internal/learning"
	"github.com/johndauphine/propfolio/internal/logging"
)

// PoolStats contains connection pool statistics
type PoolStats struct {
	MaxConns      int32
	TotalConns    int32
	AcquiredConns int32
	IdleConns     int32
}

// String returns a formatted string for logging pool stats.
func (s PoolStats) String() string {
	return fmt.Sprintf("postgres: %d/%d acquired, %d idle, %d open",
		s.AcquiredConns, s.MaxConns, s.IdleConns, s.TotalConns)
}

// Postgres writes learning data straight into the durable PostgreSQL store.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgres creates the connection pool and ensures the learning tables exist.
func NewPostgres(ctx context.Context, cfg *config.Config) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}

	maxConns := cfg.Database.MaxConnections
	if maxConns < 1 {
		maxConns = 4
	}
	poolCfg.MaxConns = int32(maxConns)
	poolCfg.MinConns = int32(maxConns / 4)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	p := &Postgres{pool: pool, schema: cfg.Database.Schema}
	if p.schema == "" {
		p.schema = "public"
	}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Close closes all connections in the pool
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping tests the connection to the database
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Stats returns current connection pool statistics
func (p *Postgres) Stats() PoolStats {
	stats := p.pool.Stat()
	return PoolStats{
		MaxConns:      stats.MaxConns(),
		TotalConns:    stats.TotalConns(),
		AcquiredConns: stats.AcquiredConns(),
		IdleConns:     stats.IdleConns(),
	}
}

// EnsureSchema creates the schema and learning tables if they don't exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quotePGIdent(p.schema))); err != nil {
		return fmt.Errorf("creating schema %s: %w", p.schema, err)
	}
	if _, err := p.pool.Exec(ctx, schemaDDL(p.schema)); err != nil {
		return fmt.Errorf("creating learning tables: %w", err)
	}
	return nil
}

// Transfer upserts the whole batch in one transaction. Either every record
// lands or none do.
func (p *Postgres) Transfer(ctx context.Context, accountID string, b learning.Batch) (*learning.Result, error) {
	if accountID == "" {
		return nil, ErrUnauthorized
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch, kinds := buildBatch(p.schema, accountID, b)
	res := &learning.Result{}
	if len(kinds) > 0 {
		br := tx.SendBatch(ctx, batch)
		for _, kind := range kinds {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return nil, fmt.Errorf("upserting %s: %w", kind, err)
			}
			if tag.RowsAffected() > 0 {
				res.Migrated.Add(kind, 1)
			}
		}
		if err := br.Close(); err != nil {
			return nil, fmt.Errorf("closing batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	res.Success = true
	logging.Debug("durable store accepted %d terms, %d bookmarks, %d paths for %s",
		res.Migrated.Terms, res.Migrated.Bookmarks, res.Migrated.Paths, accountID)
	return res, nil
}

// buildBatch queues one upsert per item and returns the kind of each
// queued statement in order.
func buildBatch(schema, accountID string, b learning.Batch) (*pgx.Batch, []learning.Kind) {
	batch := &pgx.Batch{}
	var kinds []learning.Kind

	termSQL := upsertTermSQL(schema)
	for _, t := range b.Terms {
		batch.Queue(termSQL, accountID, t.TermID, t.Mastered, t.ReviewCount, nullTime(t.LastReviewed))
		kinds = append(kinds, learning.KindTerm)
	}
	bookmarkSQL := upsertBookmarkSQL(schema)
	for _, bm := range b.Bookmarks {
		batch.Queue(bookmarkSQL, accountID, bm.ContentType, bm.ContentID, bm.Note)
		kinds = append(kinds, learning.KindBookmark)
	}
	pathSQL := upsertPathSQL(schema)
	for _, pc := range b.Paths {
		modules := pc.CompletedModules
		if modules == nil {
			modules = []string{}
		}
		batch.Queue(pathSQL, accountID, pc.PathID, modules, nullTime(pc.CompletedAt))
		kinds = append(kinds, learning.KindPath)
	}
	return batch, kinds
}

func schemaDDL(schema string) string {
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		account_id TEXT NOT NULL,
		term_id TEXT NOT NULL,
		mastered BOOLEAN NOT NULL DEFAULT false,
		review_count INTEGER NOT NULL DEFAULT 0,
		last_reviewed TIMESTAMPTZ,
		migrated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (account_id, term_id)
	);

	CREATE TABLE IF NOT EXISTS %[2]s (
		account_id TEXT NOT NULL,
		content_type TEXT NOT NULL,
		content_id TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		migrated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (account_id, content_type, content_id)
	);

	CREATE TABLE IF NOT EXISTS %[3]s (
		account_id TEXT NOT NULL,
		path_id TEXT NOT NULL,
		completed_modules TEXT[] NOT NULL DEFAULT '{}',
		completed_at TIMESTAMPTZ,
		migrated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (account_id, path_id)
	);
	`,
		qualifyPGTable(schema, "learning_terms"),
		qualifyPGTable(schema, "learning_bookmarks"),
		qualifyPGTable(schema, "learning_paths"))
}

// Progress only moves forward: a re-sent term never lowers review counts
// or unmasters a term.
func upsertTermSQL(schema string) string {
	t := qualifyPGTable(schema, "learning_terms")
	return fmt.Sprintf(`INSERT INTO %[1]s AS t (account_id, term_id, mastered, review_count, last_reviewed)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (account_id, term_id) DO UPDATE SET
	mastered = t.mastered OR EXCLUDED.mastered,
	review_count = GREATEST(t.review_count, EXCLUDED.review_count),
	last_reviewed = GREATEST(t.last_reviewed, EXCLUDED.last_reviewed)`, t)
}

func upsertBookmarkSQL(schema string) string {
	t := qualifyPGTable(schema, "learning_bookmarks")
	return fmt.Sprintf(`INSERT INTO %[1]s AS b (account_id, content_type, content_id, note)
VALUES ($1, $2, $3, $4)
ON CONFLICT (account_id, content_type, content_id) DO UPDATE SET
	note = COALESCE(NULLIF(EXCLUDED.note, ''), b.note)`, t)
}

func upsertPathSQL(schema string) string {
	t := qualifyPGTable(schema, "learning_paths")
	return fmt.Sprintf(`INSERT INTO %[1]s AS p (account_id, path_id, completed_modules, completed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (account_id, path_id) DO UPDATE SET
	completed_modules = ARRAY(SELECT DISTINCT m FROM unnest(p.completed_modules || EXCLUDED.completed_modules) AS m ORDER BY m),
	completed_at = COALESCE(p.completed_at, EXCLUDED.completed_at)`, t)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// quotePGIdent safely quotes a PostgreSQL identifier, escaping embedded quotes.
func quotePGIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func qualifyPGTable(schema, table string) string {
	return quotePGIdent(schema) + "." + quotePGIdent(table)
}

var _ Gateway = (*Postgres)(nil)
