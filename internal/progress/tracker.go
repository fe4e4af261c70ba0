package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/johndauphine/propfolio/internal/logging"
	"github.com/johndauphine/propfolio/internal/migration"
	"github.com/johndauphine/propfolio/internal/wizard"
	"github.com/schollz/progressbar/v3"
)

// Tracker renders wizard and migration progress for non-interactive runs.
// A spinner runs while enrichment is loading; step changes are logged.
type Tracker struct {
	w         io.Writer
	startTime time.Time

	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	stop     chan struct{}
	done     chan struct{}
	lastStep int
}

// New creates a tracker writing to w (stderr when nil).
func New(w io.Writer) *Tracker {
	if w == nil {
		w = os.Stderr
	}
	return &Tracker{w: w, startTime: time.Now()}
}

// ObserveWizard is a wizard subscriber.
func (t *Tracker) ObserveWizard(s wizard.State) {
	if s.IsFetchingEnrichment {
		t.startSpinner("Fetching market data")
	} else {
		t.stopSpinner()
	}

	t.mu.Lock()
	changed := s.Step != t.lastStep
	t.lastStep = s.Step
	t.mu.Unlock()
	if changed {
		logging.Info("Step %d of %d", s.Step, s.TotalSteps)
	}
	if s.IsComplete {
		logging.Info("Onboarding complete in %s", time.Since(t.startTime).Round(time.Millisecond))
	}
}

// ObserveMigration is a migration subscriber.
func (t *Tracker) ObserveMigration(s migration.Status) {
	if s.IsMigrating {
		t.startSpinner("Migrating learning data")
		return
	}
	t.stopSpinner()
}

// Spinning reports whether the spinner is active.
func (t *Tracker) Spinning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bar != nil
}

func (t *Tracker) startSpinner(desc string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar != nil {
		return
	}
	t.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(t.w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	go func(bar *progressbar.ProgressBar, stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}(t.bar, t.stop, t.done)
}

func (t *Tracker) stopSpinner() {
	t.mu.Lock()
	bar, stop, done := t.bar, t.stop, t.done
	t.bar, t.stop, t.done = nil, nil, nil
	t.mu.Unlock()

	if bar == nil {
		return
	}
	close(stop)
	<-done
	bar.Finish()
	fmt.Fprintln(t.w)
}

// Finish stops any running spinner.
func (t *Tracker) Finish() {
	t.stopSpinner()
}
