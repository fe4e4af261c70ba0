package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/johndauphine/propfolio/internal/logging"
	"github.com/johndauphine/propfolio/internal/migration"
	"github.com/johndauphine/propfolio/internal/wizard"
)

// Dispatcher turns controller state changes into toasts and provider
// notifications. Provider calls run in the background; Wait blocks until
// they finish.
type Dispatcher struct {
	provider Provider
	toasts   *Toasts
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Either argument may be nil.
func NewDispatcher(p Provider, toasts *Toasts) *Dispatcher {
	return &Dispatcher{provider: p, toasts: toasts}
}

// Wait blocks until pending provider notifications are sent.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Wizard returns a wizard subscriber. It notifies once on completion and
// toasts each newly recorded error. address is read at completion time.
func (d *Dispatcher) Wizard(address func() string) func(wizard.State) {
	var mu sync.Mutex
	var lastErr error
	notified := false
	start := time.Now()

	return func(s wizard.State) {
		mu.Lock()
		newErr := s.Err != nil && s.Err != lastErr
		lastErr = s.Err
		complete := s.IsComplete && !notified
		if complete {
			notified = true
		}
		mu.Unlock()

		if newErr {
			d.toast(LevelError, fmt.Sprintf("Step %d not saved", s.Step), s.Err.Error())
		}
		if complete {
			addr := address()
			d.toast(LevelSuccess, "Property added", addr)
			id := s.EntityID
			d.send("property onboarded", func(p Provider) error {
				return p.PropertyOnboarded(id, addr, time.Since(start))
			})
		}
	}
}

// Migration returns a migration subscriber. It fires on each settled run
// that transferred data or failed.
func (d *Dispatcher) Migration(accountID string) func(migration.Status) {
	var mu sync.Mutex
	var last migration.Phase

	return func(s migration.Status) {
		mu.Lock()
		settled := s.Phase != last && last == migration.PhaseMigrating
		last = s.Phase
		mu.Unlock()
		if !settled {
			return
		}

		switch s.Phase {
		case migration.PhaseComplete:
			if s.Result == nil {
				return
			}
			counts := s.Result.Migrated
			d.toast(LevelSuccess, "Learning progress saved",
				fmt.Sprintf("%d terms, %d bookmarks, %d paths synced to your account", counts.Terms, counts.Bookmarks, counts.Paths))
			d.send("learning migrated", func(p Provider) error {
				return p.LearningMigrated(accountID, counts)
			})
		case migration.PhaseErrored:
			err := s.Err
			d.toast(LevelError, "Learning progress not synced", "Your local progress is kept and will sync next time.")
			d.send("learning migration failed", func(p Provider) error {
				return p.LearningMigrationFailed(accountID, err)
			})
		}
	}
}

func (d *Dispatcher) toast(level, title, msg string) {
	if d.toasts != nil {
		d.toasts.Push(level, title, msg)
	}
}

func (d *Dispatcher) send(what string, fn func(Provider) error) {
	if d.provider == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := fn(d.provider); err != nil {
			logging.Warn("notification %s failed: %v", what, err)
		}
	}()
}
