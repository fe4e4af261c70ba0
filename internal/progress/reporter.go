package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/johndauphine/propfolio/internal/learning"
	"github.com/johndauphine/propfolio/internal/logging"
	"github.com/johndauphine/propfolio/internal/migration"
	"github.com/johndauphine/propfolio/internal/wizard"
)

// Update represents a JSON progress update for automation.
type Update struct {
	Timestamp  string           `json:"timestamp"`
	Phase      string           `json:"phase"`
	Step       int              `json:"step,omitempty"`
	TotalSteps int              `json:"total_steps,omitempty"`
	Fetching   bool             `json:"fetching_enrichment,omitempty"`
	Complete   bool             `json:"complete"`
	EntityID   string           `json:"entity_id,omitempty"`
	Migrated   *learning.Counts `json:"migrated,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// FromWizard converts wizard state to an update.
func FromWizard(s wizard.State) Update {
	u := Update{
		Phase:      "wizard",
		Step:       s.Step,
		TotalSteps: s.TotalSteps,
		Fetching:   s.IsFetchingEnrichment,
		Complete:   s.IsComplete,
		EntityID:   s.EntityID,
	}
	if s.Err != nil {
		u.Error = s.Err.Error()
	}
	return u
}

// FromMigration converts migration status to an update.
func FromMigration(s migration.Status) Update {
	u := Update{
		Phase:    "learning_" + string(s.Phase),
		Complete: s.IsComplete,
	}
	if s.Result != nil {
		c := s.Result.Migrated
		u.Migrated = &c
	}
	if s.Err != nil {
		u.Error = s.Err.Error()
	}
	return u
}

// Reporter defines the interface for progress reporting.
type Reporter interface {
	// Report emits a progress update (may be throttled)
	Report(update Update)
	// ReportImmediate emits a progress update immediately, bypassing throttling
	ReportImmediate(update Update)
	// Close cleans up any resources
	Close()
}

// JSONReporter outputs JSON progress updates to a writer (typically stderr).
type JSONReporter struct {
	writer     io.Writer
	mu         sync.Mutex
	interval   time.Duration
	lastReport time.Time
	closed     bool
}

// NewJSONReporter creates a new JSON progress reporter.
// interval specifies the minimum time between updates (to avoid flooding).
func NewJSONReporter(writer io.Writer, interval time.Duration) *JSONReporter {
	if writer == nil {
		writer = os.Stderr
	}
	return &JSONReporter{
		writer:   writer,
		interval: interval,
	}
}

// Report emits a JSON progress update to the writer.
// Updates are throttled based on the configured interval.
func (r *JSONReporter) Report(update Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	now := time.Now()
	if r.interval > 0 && now.Sub(r.lastReport) < r.interval {
		return
	}
	r.write(update, now)
}

// ReportImmediate emits a progress update immediately, bypassing throttling.
// Use for step transitions and completion.
func (r *JSONReporter) ReportImmediate(update Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.write(update, time.Now())
}

func (r *JSONReporter) write(update Update, now time.Time) {
	if update.Timestamp == "" {
		update.Timestamp = now.Format(time.RFC3339)
	}
	data, err := json.Marshal(update)
	if err != nil {
		logging.Warn("Failed to marshal progress update: %v", err)
		return
	}
	fmt.Fprintln(r.writer, string(data))
	r.lastReport = now
}

// Close marks the reporter as closed.
func (r *JSONReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// WizardSubscriber reports every wizard state change, bypassing the
// throttle when the step or completion flag changes.
func WizardSubscriber(r Reporter) func(wizard.State) {
	var mu sync.Mutex
	last := wizard.State{Step: -1}
	return func(s wizard.State) {
		mu.Lock()
		important := s.Step != last.Step || s.IsComplete != last.IsComplete || s.IsFetchingEnrichment != last.IsFetchingEnrichment
		last = s
		mu.Unlock()
		if important {
			r.ReportImmediate(FromWizard(s))
			return
		}
		r.Report(FromWizard(s))
	}
}

// NullReporter is a no-op reporter for when progress reporting is disabled.
type NullReporter struct{}

// Report does nothing.
func (r *NullReporter) Report(update Update) {}

// ReportImmediate does nothing.
func (r *NullReporter) ReportImmediate(update Update) {}

// Close does nothing.
func (r *NullReporter) Close() {}
