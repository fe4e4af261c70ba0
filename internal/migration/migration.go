// Package migration moves learning-hub data from the local staging store to
// the durable store, at most once per account.
package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/johndauphine/propfolio/internal/learning"
	"github.com/johndauphine/propfolio/internal/logging"
	"github.com/johndauphine/propfolio/internal/metrics"
	"github.com/johndauphine/propfolio/internal/observable"
	"github.com/johndauphine/propfolio/internal/session"
	"github.com/johndauphine/propfolio/internal/staging"
	"github.com/johndauphine/propfolio/internal/timing"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnauthenticated is reported when Migrate runs without a signed-in session.
	ErrUnauthenticated = errors.New("migration: no authenticated session")
	// ErrTransferRejected is reported when the durable store answers with an
	// unsuccessful result.
	ErrTransferRejected = errors.New("migration: transfer was not accepted")
)

// Phase is the lifecycle position of a migration.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseMigrating Phase = "migrating"
	PhaseComplete  Phase = "complete"
	PhaseErrored   Phase = "errored"
)

// Staging is the local store holding records not yet migrated.
type Staging interface {
	HasLocalData(ctx context.Context) (bool, error)
	IsMigrationComplete(ctx context.Context) (bool, error)
	MigrateToDatabase(ctx context.Context, transfer staging.TransferFunc) (*learning.Result, error)
	ClearMigratedData(ctx context.Context) error
}

// Gateway is the durable-store write endpoint.
type Gateway interface {
	Transfer(ctx context.Context, accountID string, batch learning.Batch) (*learning.Result, error)
}

// Auth supplies the current session.
type Auth interface {
	State() session.State
}

// Status is the observable migration state.
type Status struct {
	Phase        Phase
	IsMigrating  bool
	IsComplete   bool
	Result       *learning.Result
	Err          error
	HasLocalData bool
}

// Options configures a Controller.
type Options struct {
	// PurgeAfterMigrate deletes migrated records after a successful transfer.
	PurgeAfterMigrate bool
	Metrics           *metrics.Recorder
}

// Controller runs the one-shot learning-hub migration.
type Controller struct {
	staging Staging
	gateway Gateway
	auth    Auth
	opts    Options

	store  *observable.Store[Status]
	flight singleflight.Group
	life   *timing.Lifetime

	mu        sync.Mutex
	lastReady bool
	watchers  sync.WaitGroup
}

// New creates a controller in the idle phase.
func New(st Staging, gw Gateway, auth Auth, opts Options) *Controller {
	return &Controller{
		staging: st,
		gateway: gw,
		auth:    auth,
		opts:    opts,
		store:   observable.New(Status{Phase: PhaseIdle}),
		life:    timing.NewLifetime(),
	}
}

// Status returns a snapshot of the current status.
func (c *Controller) Status() Status {
	return c.store.Snapshot()
}

// Subscribe registers fn for status changes.
func (c *Controller) Subscribe(fn func(Status)) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// Close cancels an in-flight transfer, waits for auto-triggered runs, and
// drops later status updates.
func (c *Controller) Close() {
	c.mu.Lock()
	c.life.End()
	c.mu.Unlock()
	c.watchers.Wait()
}

// HasLocalData refreshes and returns the staged-data flag.
func (c *Controller) HasLocalData(ctx context.Context) bool {
	has, err := c.staging.HasLocalData(ctx)
	if err != nil {
		logging.Warn("checking staged learning data: %v", err)
		return c.store.Snapshot().HasLocalData
	}
	c.set(func(s Status) Status {
		s.HasLocalData = has
		return s
	})
	return has
}

// Migrate runs the migration for the current session and returns the
// resulting status. Overlapping calls for one account share a single run.
func (c *Controller) Migrate(ctx context.Context) Status {
	return c.migrate(ctx, c.auth.State())
}

// Observe triggers Migrate on the rising edge of a loaded, signed-in
// session. It returns true when a run was started by this observation.
func (c *Controller) Observe(ctx context.Context, st session.State) bool {
	ready := st.Loaded && st.SignedIn
	c.mu.Lock()
	rising := ready && !c.lastReady
	c.lastReady = ready
	c.mu.Unlock()

	if !rising {
		return false
	}
	c.migrate(ctx, st)
	return true
}

// Watch feeds every session change into Observe, starting with the current
// state. Observations run in order on one goroutine, off the notifying one.
// The returned func stops watching.
func (c *Controller) Watch(ctx context.Context, provider interface {
	Auth
	Subscribe(func(session.State)) func()
}) (stop func()) {
	c.mu.Lock()
	if !c.life.Alive() {
		c.mu.Unlock()
		return func() {}
	}
	c.watchers.Add(1)
	c.mu.Unlock()

	var (
		qmu   sync.Mutex
		queue []session.State
	)
	wake := make(chan struct{}, 1)
	quit := make(chan struct{})
	push := func(st session.State) {
		qmu.Lock()
		queue = append(queue, st)
		qmu.Unlock()
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	go func() {
		defer c.watchers.Done()
		for {
			select {
			case <-quit:
				return
			case <-c.life.Done():
				return
			case <-ctx.Done():
				return
			case <-wake:
			}
			for {
				qmu.Lock()
				if len(queue) == 0 {
					qmu.Unlock()
					break
				}
				st := queue[0]
				queue = queue[1:]
				qmu.Unlock()
				c.Observe(ctx, st)
			}
		}
	}()

	unsub := provider.Subscribe(push)
	push(provider.State())
	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			close(quit)
		})
	}
}

func (c *Controller) migrate(ctx context.Context, st session.State) Status {
	if !c.life.Alive() {
		return c.store.Snapshot()
	}
	if !st.Authenticated() {
		c.opts.Metrics.Migration(metrics.MigrationUnauthenticated, nil)
		return c.set(func(s Status) Status {
			s.Err = ErrUnauthenticated
			return s
		})
	}

	v, _, _ := c.flight.Do(st.AccountID, func() (any, error) {
		ctx, stop := c.life.Bind(ctx)
		defer stop()
		return c.run(ctx, st.AccountID), nil
	})
	return v.(Status)
}

func (c *Controller) run(ctx context.Context, accountID string) Status {
	done, err := c.staging.IsMigrationComplete(ctx)
	if err != nil {
		return c.fail(fmt.Errorf("reading completion marker: %w", err), nil)
	}
	if done {
		c.opts.Metrics.Migration(metrics.MigrationSkipped, nil)
		return c.set(func(s Status) Status {
			s.Phase = PhaseComplete
			s.IsComplete = true
			s.Err = nil
			return s
		})
	}

	has, err := c.staging.HasLocalData(ctx)
	if err != nil {
		return c.fail(fmt.Errorf("checking staged data: %w", err), nil)
	}
	if !has {
		c.opts.Metrics.Migration(metrics.MigrationEmpty, nil)
		return c.set(func(s Status) Status {
			s.Phase = PhaseComplete
			s.IsComplete = true
			s.HasLocalData = false
			s.Err = nil
			return s
		})
	}

	c.set(func(s Status) Status {
		s.Phase = PhaseMigrating
		s.IsMigrating = true
		s.HasLocalData = true
		s.Err = nil
		return s
	})
	logging.Info("migrating staged learning data for %s", accountID)

	res, err := c.staging.MigrateToDatabase(ctx, func(ctx context.Context, b learning.Batch) (*learning.Result, error) {
		return c.gateway.Transfer(ctx, accountID, b)
	})
	if err != nil {
		return c.fail(err, res)
	}
	if res == nil || !res.Success {
		return c.fail(rejected(res), res)
	}

	c.opts.Metrics.Migration(metrics.MigrationComplete, res.Migrated.ByKind())
	logging.Info("learning data migrated: %d terms, %d bookmarks, %d paths",
		res.Migrated.Terms, res.Migrated.Bookmarks, res.Migrated.Paths)

	if c.opts.PurgeAfterMigrate {
		if err := c.staging.ClearMigratedData(ctx); err != nil {
			logging.Warn("purging migrated learning data (continuing): %v", err)
		}
	}
	remaining, err := c.staging.HasLocalData(ctx)
	if err != nil {
		logging.Warn("checking staged learning data after migration (continuing): %v", err)
		remaining = false
	}

	return c.set(func(s Status) Status {
		s.Phase = PhaseComplete
		s.IsMigrating = false
		s.IsComplete = true
		s.Result = res
		s.Err = nil
		s.HasLocalData = remaining
		return s
	})
}

func (c *Controller) fail(err error, res *learning.Result) Status {
	logging.Warn("learning migration failed, staged data kept for retry: %v", err)
	c.opts.Metrics.Migration(metrics.MigrationFailed, nil)
	return c.set(func(s Status) Status {
		s.Phase = PhaseErrored
		s.IsMigrating = false
		s.IsComplete = false
		s.Result = res
		s.Err = err
		return s
	})
}

// set applies fn while the controller is alive and returns the new status.
func (c *Controller) set(fn func(Status) Status) Status {
	if !c.life.Alive() {
		return c.store.Snapshot()
	}
	return c.store.Update(fn)
}

func rejected(res *learning.Result) error {
	if res == nil || len(res.Errors) == 0 {
		return ErrTransferRejected
	}
	return fmt.Errorf("%w: %s", ErrTransferRejected, strings.Join(res.Errors, "; "))
}
