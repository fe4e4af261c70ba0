// Package wizard sequences the property-onboarding steps.
//
// A Controller owns the step state of one wizard session. Step 1 saves the
// property, fetches market data, and holds the loading indicator for at
// least MinDisplay before moving on. Intermediate steps save and advance.
// The terminal step asks the persistence layer to complete the wizard.
// Failures never escape the controller: they are recorded in State.Err and
// reported through Advance's boolean result.
package wizard

import (
	"context"
	"errors"
	"time"

	"github.com/johndauphine/propfolio/internal/enrichment"
	"github.com/johndauphine/propfolio/internal/logging"
	"github.com/johndauphine/propfolio/internal/metrics"
	"github.com/johndauphine/propfolio/internal/observable"
	"github.com/johndauphine/propfolio/internal/timing"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultTotalSteps  = 6
	DefaultMinDisplay  = 3000 * time.Millisecond
	DefaultSettleDelay = 200 * time.Millisecond
)

var (
	// ErrStepNotSaved is recorded when an intermediate save returns no id.
	ErrStepNotSaved = errors.New("wizard: step was not saved")
	// ErrNotCompleted is recorded when the terminal completion call is rejected.
	ErrNotCompleted = errors.New("wizard: completion was rejected")
)

// Form is the caller-owned form data. The controller only reads the address
// confirmation flag and the owner identifiers; everything else is forwarded.
type Form interface {
	IsAddressConfirmed() bool
	Owner() (accountID, portfolioID string)
}

// Persistence saves wizard progress. An empty id from SaveStep means the
// save did not produce an entity.
type Persistence[F Form] interface {
	SaveStep(ctx context.Context, form F, addressConfirmed bool) (string, error)
	CompleteWizard(ctx context.Context, form F, addressConfirmed bool) (bool, error)
}

// Enrichment fetches market data for a saved entity. It may fail.
type Enrichment interface {
	FetchEnrichment(ctx context.Context, entityID string) (*enrichment.MarketData, error)
}

// State is the observable step state.
type State struct {
	Step                 int
	TotalSteps           int
	IsFetchingEnrichment bool
	IsComplete           bool
	EntityID             string
	Enrichment           *enrichment.MarketData
	Err                  error
}

// IsTerminal reports whether the current step is the last one.
func (s State) IsTerminal() bool {
	return s.Step >= s.TotalSteps
}

// Options configures a Controller.
type Options struct {
	TotalSteps  int
	InitialStep int
	MinDisplay  time.Duration
	SettleDelay time.Duration
	Clock       timing.Clock

	// OnStepChange runs once after every step transition.
	OnStepChange func(step int, entityID string)

	Metrics *metrics.Recorder
}

func (o *Options) applyDefaults() {
	if o.TotalSteps <= 0 {
		o.TotalSteps = DefaultTotalSteps
	}
	if o.InitialStep < 1 {
		o.InitialStep = 1
	}
	if o.InitialStep > o.TotalSteps {
		o.InitialStep = o.TotalSteps
	}
	if o.MinDisplay == 0 {
		o.MinDisplay = DefaultMinDisplay
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.Clock == nil {
		o.Clock = timing.RealClock{}
	}
}

// Controller drives one onboarding wizard session.
type Controller[F Form] struct {
	persist Persistence[F]
	enrich  Enrichment
	opts    Options

	store *observable.Store[State]
	guard timing.Guard
	life  *timing.Lifetime
}

// New creates a controller. enrich may be nil, in which case the enrichment
// phase only honors the display floor.
func New[F Form](persist Persistence[F], enrich Enrichment, opts Options) *Controller[F] {
	opts.applyDefaults()
	return &Controller[F]{
		persist: persist,
		enrich:  enrich,
		opts:    opts,
		store: observable.New(State{
			Step:       opts.InitialStep,
			TotalSteps: opts.TotalSteps,
		}),
		life: timing.NewLifetime(),
	}
}

// State returns a snapshot of the current state.
func (c *Controller[F]) State() State {
	return c.store.Snapshot()
}

// Subscribe registers fn for state changes.
func (c *Controller[F]) Subscribe(fn func(State)) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// Close tears the controller down. Pending delays return early and no
// further state changes or callbacks happen.
func (c *Controller[F]) Close() {
	c.life.End()
}

// Busy reports whether an Advance is in flight.
func (c *Controller[F]) Busy() bool {
	return c.guard.Busy()
}

// Advance attempts to move the wizard forward. It returns true when the step
// advanced or the wizard completed. Calls made while another Advance is in
// flight return false without touching the gateways.
func (c *Controller[F]) Advance(ctx context.Context, form F) bool {
	if !c.life.Alive() {
		return false
	}
	st := c.store.Snapshot()
	if !c.guard.TryEnter() {
		c.opts.Metrics.Advance(st.Step, metrics.OutcomeBusy)
		return false
	}
	defer c.guard.Leave()

	ctx, stop := c.life.Bind(ctx)
	defer stop()

	if st.IsComplete {
		return false
	}
	if !ready(form) {
		logging.Debug("wizard step %d not ready: address unconfirmed or owner missing", st.Step)
		c.opts.Metrics.Advance(st.Step, metrics.OutcomeNotReady)
		return false
	}

	switch {
	case st.IsTerminal():
		return c.complete(ctx, form, st)
	case st.Step == 1:
		return c.advanceFirst(ctx, form, st)
	default:
		return c.advanceIntermediate(ctx, form, st)
	}
}

// Retreat moves back one step, never below 1. It is a no-op while an
// Advance is in flight.
func (c *Controller[F]) Retreat() int {
	if c.guard.Busy() || !c.life.Alive() {
		return c.store.Snapshot().Step
	}
	prev := c.store.Snapshot()
	next := c.store.Update(func(s State) State {
		s.Step = max(1, s.Step-1)
		s.Err = nil
		return s
	})
	if next.Step != prev.Step {
		c.notify(next.Step, next.EntityID)
	}
	return next.Step
}

// Sync overwrites the internal step with an externally tracked one, such as
// a step carried in navigation state. Values below 1 are ignored and values
// above TotalSteps are clamped. A sync during an Advance takes precedence:
// the advance records its saved id but leaves the synced step in place.
func (c *Controller[F]) Sync(step int) {
	if step < 1 || !c.life.Alive() {
		return
	}
	if step > c.opts.TotalSteps {
		step = c.opts.TotalSteps
	}
	if c.store.Snapshot().Step == step {
		return
	}
	c.store.Update(func(s State) State {
		s.Step = step
		return s
	})
}

func (c *Controller[F]) advanceFirst(ctx context.Context, form F, st State) bool {
	id, err := c.persist.SaveStep(ctx, form, true)
	if err != nil {
		return c.fail(st.Step, err)
	}
	if id == "" {
		// Nothing saved yet; the caller may retry once the form is ready.
		c.opts.Metrics.Advance(st.Step, metrics.OutcomeNotReady)
		return false
	}

	if !c.set(func(s State) State {
		s.IsFetchingEnrichment = true
		s.EntityID = id
		s.Err = nil
		return s
	}) {
		return false
	}

	clock := c.opts.Clock
	start := clock.Now()
	data := c.fetchEnrichment(ctx, id)

	if err := timing.EnsureMinimum(ctx, clock, start, c.opts.MinDisplay); err != nil {
		c.abandon()
		return false
	}
	if !c.set(func(s State) State {
		s.IsFetchingEnrichment = false
		s.Enrichment = data
		return s
	}) {
		return false
	}
	if err := clock.Sleep(ctx, c.opts.SettleDelay); err != nil {
		return false
	}

	return c.transition(st.Step, id)
}

func (c *Controller[F]) advanceIntermediate(ctx context.Context, form F, st State) bool {
	id, err := c.persist.SaveStep(ctx, form, form.IsAddressConfirmed())
	if err != nil {
		return c.fail(st.Step, err)
	}
	if id == "" {
		return c.fail(st.Step, ErrStepNotSaved)
	}
	return c.transition(st.Step, id)
}

func (c *Controller[F]) complete(ctx context.Context, form F, st State) bool {
	ok, err := c.persist.CompleteWizard(ctx, form, form.IsAddressConfirmed())
	if err != nil {
		return c.fail(st.Step, err)
	}
	if !ok {
		return c.fail(st.Step, ErrNotCompleted)
	}
	if !c.set(func(s State) State {
		s.IsComplete = true
		s.Err = nil
		return s
	}) {
		return false
	}
	c.opts.Metrics.Advance(st.Step, metrics.OutcomeCompleted)
	logging.Info("onboarding wizard completed for %s", st.EntityID)
	return true
}

// fetchEnrichment never fails: errors are logged and yield nil data.
func (c *Controller[F]) fetchEnrichment(ctx context.Context, id string) *enrichment.MarketData {
	if c.enrich == nil {
		return nil
	}
	start := time.Now()
	data, err := c.enrich.FetchEnrichment(ctx, id)
	c.opts.Metrics.Enrichment(time.Since(start), err)
	if err != nil {
		logging.Warn("market data enrichment failed for %s (continuing): %v", id, err)
		return nil
	}
	return data
}

// transition moves from one step to the next. If the step was synced
// elsewhere while the save ran, the synced step wins and nothing fires.
func (c *Controller[F]) transition(from int, id string) bool {
	if !c.life.Alive() {
		return false
	}
	moved := false
	next := c.store.Update(func(s State) State {
		if id != "" {
			s.EntityID = id
		}
		if s.Step != from {
			return s
		}
		s.Step = from + 1
		s.Err = nil
		moved = true
		return s
	})
	if !moved {
		logging.Debug("wizard step synced to %d while step %d was saving; keeping synced step", next.Step, from)
		return false
	}
	c.opts.Metrics.Advance(from, metrics.OutcomeAdvanced)
	c.notify(next.Step, id)
	return true
}

func (c *Controller[F]) fail(step int, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.abandon()
		return false
	}
	logging.Warn("wizard step %d: %v", step, err)
	c.opts.Metrics.Advance(step, metrics.OutcomeFailed)
	c.set(func(s State) State {
		s.Err = err
		return s
	})
	return false
}

// abandon clears the loading flag after a cancelled advance on a live controller.
func (c *Controller[F]) abandon() {
	c.set(func(s State) State {
		s.IsFetchingEnrichment = false
		return s
	})
}

// set applies fn only while the controller is alive.
func (c *Controller[F]) set(fn func(State) State) bool {
	if !c.life.Alive() {
		return false
	}
	c.store.Update(fn)
	return true
}

func (c *Controller[F]) notify(step int, id string) {
	if c.opts.OnStepChange != nil && c.life.Alive() {
		c.opts.OnStepChange(step, id)
	}
}

func ready[F Form](form F) bool {
	if any(form) == nil {
		return false
	}
	if !form.IsAddressConfirmed() {
		return false
	}
	accountID, portfolioID := form.Owner()
	return accountID != "" && portfolioID != ""
}
