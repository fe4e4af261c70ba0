package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/johndauphine/propfolio/internal/config"
	"github.com/johndauphine/propfolio/internal/durable"
	"github.com/johndauphine/propfolio/internal/exitcodes"
	"github.com/johndauphine/propfolio/internal/learning"
	"github.com/johndauphine/propfolio/internal/logging"
	"github.com/johndauphine/propfolio/internal/migration"
	"github.com/johndauphine/propfolio/internal/notify"
	"github.com/johndauphine/propfolio/internal/progress"
	"github.com/johndauphine/propfolio/internal/session"
	"github.com/johndauphine/propfolio/internal/staging"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func learningCommand() *cli.Command {
	return &cli.Command{
		Name:  "learning",
		Usage: "Manage learning-hub progress staged on this machine",
		Subcommands: []*cli.Command{
			{
				Name:   "stage",
				Usage:  "Stage learning records locally",
				Action: stageLearning,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "YAML list of records to stage",
					},
					&cli.StringSliceFlag{
						Name:  "term",
						Usage: "Glossary term id that was reviewed",
					},
					&cli.BoolFlag{
						Name:  "mastered",
						Usage: "Mark --term entries as mastered",
					},
					&cli.StringSliceFlag{
						Name:  "bookmark",
						Usage: "Content id to bookmark",
					},
					&cli.StringFlag{
						Name:  "content-type",
						Value: "article",
						Usage: "Content type for --bookmark entries",
					},
					&cli.StringSliceFlag{
						Name:  "path",
						Usage: "Learning path id that was completed",
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Move staged records to the durable store for the signed-in account",
				Action: migrateLearning,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "output-json",
						Usage: "Write JSON status updates to stdout (logs go to stderr)",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the staging store and migration marker",
				Action: learningStatus,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output status as JSON",
					},
				},
			},
			{
				Name:   "reset",
				Usage:  "Clear the migration marker so the next sign-in migrates again",
				Action: resetLearning,
			},
		},
	}
}

// openStaging opens the configured staging store for the session account.
func openStaging(c *cli.Context) (*config.Config, *session.Provider, staging.Backend, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}
	auth := session.NewProvider()
	st := auth.FromConfig(&cfg.Session)

	store, err := staging.Open(&cfg.Learning, st.AccountID)
	if err != nil {
		return nil, nil, nil, exitcodes.NewExitError(fmt.Errorf("failed to open staging store: %w", err), exitcodes.StateError)
	}
	return cfg, auth, store, nil
}

func stageLearning(c *cli.Context) error {
	records, err := recordsFromFlags(c)
	if err != nil {
		return exitcodes.NewExitError(err, exitcodes.ValidationError)
	}
	if len(records) == 0 {
		return exitcodes.NewExitError(fmt.Errorf("nothing to stage; pass --file, --term, --bookmark or --path"), exitcodes.ConfigError)
	}

	_, _, store, err := openStaging(c)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Stage(c.Context, records...); err != nil {
		return err
	}
	logging.Info("Staged %d learning records", len(records))
	return nil
}

func recordsFromFlags(c *cli.Context) ([]learning.Record, error) {
	var records []learning.Record
	if path := c.String("file"); path != "" {
		fromFile, err := loadRecords(path)
		if err != nil {
			return nil, err
		}
		records = append(records, fromFile...)
	}

	now := time.Now().UTC()
	for _, id := range c.StringSlice("term") {
		records = append(records, learning.NewTerm(learning.TermProgress{
			TermID:       id,
			Mastered:     c.Bool("mastered"),
			ReviewCount:  1,
			LastReviewed: now,
		}))
	}
	for _, id := range c.StringSlice("bookmark") {
		records = append(records, learning.NewBookmark(learning.Bookmark{
			ContentID:   id,
			ContentType: c.String("content-type"),
		}))
	}
	for _, id := range c.StringSlice("path") {
		records = append(records, learning.NewPath(learning.PathCompletion{
			PathID:      id,
			CompletedAt: now,
		}))
	}
	return records, nil
}

// loadRecords reads a YAML list of records. Missing ids and staging times
// are filled in.
func loadRecords(path string) ([]learning.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	var records []learning.Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing records: %w", err)
	}
	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if records[i].StagedAt.IsZero() {
			records[i].StagedAt = now
		}
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", path, i+1, err)
		}
	}
	return records, nil
}

func migrateLearning(c *cli.Context) error {
	cfg, auth, store, err := openStaging(c)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	st := auth.State()

	// The gateway is only opened for a signed-in session; the controller
	// reports the missing session itself.
	var gw migration.Gateway
	if st.Authenticated() {
		g, err := durable.Open(ctx, cfg)
		if err != nil {
			return exitcodes.NewExitError(fmt.Errorf("failed to open durable store: %w", err), exitcodes.ConnectionError)
		}
		defer g.Close()
		gw = g
	}

	rec := startMetrics(ctx, cfg)
	ctrl := migration.New(store, gw, auth, migration.Options{
		PurgeAfterMigrate: cfg.Learning.PurgeAfterMigrate,
		Metrics:           rec,
	})
	defer ctrl.Close()

	dispatcher := notify.NewDispatcher(notify.New(&cfg.Slack), nil)
	defer dispatcher.Wait()
	defer ctrl.Subscribe(dispatcher.Migration(st.AccountID))()

	tracker := progress.New(os.Stderr)
	defer tracker.Finish()
	defer ctrl.Subscribe(tracker.ObserveMigration)()

	if c.Bool("output-json") {
		reporter := progress.NewJSONReporter(os.Stdout, 0)
		defer reporter.Close()
		defer ctrl.Subscribe(func(s migration.Status) {
			reporter.ReportImmediate(progress.FromMigration(s))
		})()
	}

	ctrl.HasLocalData(ctx)
	// Observe runs on the first signed-in observation; otherwise Migrate
	// records why nothing ran.
	if !ctrl.Observe(ctx, st) {
		ctrl.Migrate(ctx)
	}

	status := ctrl.Status()
	switch {
	case status.Err != nil:
		return status.Err
	case status.Result != nil:
		m := status.Result.Migrated
		logging.Info("Migrated %d terms, %d bookmarks, %d paths", m.Terms, m.Bookmarks, m.Paths)
	case status.IsComplete:
		logging.Info("Learning data already migrated for %s", st.AccountID)
	default:
		logging.Info("No staged learning data to migrate")
	}
	return nil
}

func learningStatus(c *cli.Context) error {
	_, _, store, err := openStaging(c)
	if err != nil {
		return err
	}
	defer store.Close()

	sum, err := store.Summary(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(sum)
	}

	account := sum.AccountID
	if account == "" {
		account = "(signed out)"
	}
	fmt.Printf("Backend:   %s\n", sum.Backend)
	fmt.Printf("Account:   %s\n", account)
	if sum.Complete && sum.CompletedAt != nil {
		fmt.Printf("Migrated:  yes, at %s\n", sum.CompletedAt.Local().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("Migrated:  no\n")
	}
	fmt.Printf("Pending:   %s\n", formatCounts(sum.Pending))
	if sum.Migrated.Total() > 0 {
		fmt.Printf("Awaiting purge: %s\n", formatCounts(sum.Migrated))
	}
	if sum.LastResult != nil && len(sum.LastResult.Errors) > 0 {
		fmt.Printf("Last errors:\n  %s\n", strings.Join(sum.LastResult.Errors, "\n  "))
	}
	return nil
}

func resetLearning(c *cli.Context) error {
	_, auth, store, err := openStaging(c)
	if err != nil {
		return err
	}
	defer store.Close()

	if !auth.State().Authenticated() {
		return exitcodes.NewExitError(migration.ErrUnauthenticated, exitcodes.AuthError)
	}
	if err := store.ResetMarker(c.Context); err != nil {
		return err
	}
	logging.Info("Cleared migration marker for %s", auth.State().AccountID)
	return nil
}

func formatCounts(n learning.Counts) string {
	return fmt.Sprintf("%d terms, %d bookmarks, %d paths", n.Terms, n.Bookmarks, n.Paths)
}
