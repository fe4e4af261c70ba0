package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/johndauphine/propfolio/internal/notify"
	"github.com/johndauphine/propfolio/internal/observable"
	"github.com/johndauphine/propfolio/internal/property"
	"github.com/johndauphine/propfolio/internal/wizard"
	"github.com/shopspring/decimal"
)

type fakeWizard struct {
	store    *observable.Store[wizard.State]
	advances int
	retreats int
	forms    []*property.Draft
}

func newFakeWizard() *fakeWizard {
	return &fakeWizard{store: observable.New(wizard.State{Step: 1, TotalSteps: property.TotalSteps})}
}

func (f *fakeWizard) State() wizard.State { return f.store.Snapshot() }

func (f *fakeWizard) Subscribe(fn func(wizard.State)) func() { return f.store.Subscribe(fn) }

func (f *fakeWizard) Busy() bool { return false }

func (f *fakeWizard) Advance(ctx context.Context, d *property.Draft) bool {
	f.advances++
	f.forms = append(f.forms, d)
	f.store.Update(func(s wizard.State) wizard.State {
		if s.IsTerminal() {
			s.IsComplete = true
			return s
		}
		s.Step++
		s.EntityID = "prop-123"
		return s
	})
	return true
}

func (f *fakeWizard) Retreat() int {
	f.retreats++
	return f.store.Update(func(s wizard.State) wizard.State {
		if s.Step > 1 {
			s.Step--
		}
		return s
	}).Step
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// drain feeds queued controller events back into the model.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	for {
		select {
		case msg := <-m.bridge.events:
			m, _ = update(t, m, msg)
		default:
			return m
		}
	}
}

func fillAddress(m Model, confirm string) {
	values := []string{"1 Main St", "", "Springfield", "IL", "62701", confirm}
	for i, v := range values {
		m.inputs[i].SetValue(v)
	}
}

func TestSubmitIncompleteAddress(t *testing.T) {
	w := newFakeWizard()
	d := &property.Draft{Currency: "USD"}
	m := NewModel(context.Background(), w, d, nil)
	defer m.Close()

	m.focus = len(m.inputs) - 1
	m, cmd := update(t, m, key(tea.KeyEnter))
	if cmd != nil {
		t.Fatal("expected no advance for an empty address")
	}
	if m.formErr == nil || !strings.Contains(m.formErr.Error(), "address is missing") {
		t.Fatalf("formErr = %v", m.formErr)
	}
	if w.advances != 0 {
		t.Fatalf("advances = %d, want 0", w.advances)
	}
}

func TestSubmitRequiresConfirmation(t *testing.T) {
	w := newFakeWizard()
	d := &property.Draft{Currency: "USD"}
	m := NewModel(context.Background(), w, d, nil)
	defer m.Close()

	fillAddress(m, "n")
	m.focus = len(m.inputs) - 1
	m, cmd := update(t, m, key(tea.KeyEnter))
	if cmd != nil || m.formErr != errConfirmAddress {
		t.Fatalf("cmd = %v, formErr = %v", cmd != nil, m.formErr)
	}
}

func TestSubmitAdvancesAndLoadsNextStep(t *testing.T) {
	w := newFakeWizard()
	d := &property.Draft{Currency: "USD"}
	m := NewModel(context.Background(), w, d, nil)
	defer m.Close()

	fillAddress(m, "y")
	m.focus = len(m.inputs) - 1
	m, cmd := update(t, m, key(tea.KeyEnter))
	if cmd == nil || !m.advancing {
		t.Fatal("expected an advance command")
	}
	if !d.AddressConfirmed || d.Address.City != "Springfield" {
		t.Fatalf("draft not applied: %+v", d.Address)
	}

	// A second enter while saving is ignored.
	if _, again := update(t, m, key(tea.KeyEnter)); again != nil {
		t.Fatal("expected enter to be ignored while saving")
	}

	m, _ = update(t, m, cmd())
	m = drain(t, m)
	if w.advances != 1 || w.forms[0] != d {
		t.Fatalf("advances = %d", w.advances)
	}
	if m.advancing || m.state.Step != property.StepDetails {
		t.Fatalf("state = %+v, advancing = %v", m.state, m.advancing)
	}
	if len(m.fields) != len(stepFields(property.StepDetails)) {
		t.Fatalf("fields not reloaded for step %d", m.state.Step)
	}
	if !strings.Contains(m.View(), "Bedrooms") {
		t.Error("view should show details inputs")
	}
}

func TestEscRetreats(t *testing.T) {
	w := newFakeWizard()
	w.store.Set(wizard.State{Step: 3, TotalSteps: property.TotalSteps})
	d := &property.Draft{Currency: "USD"}
	m := NewModel(context.Background(), w, d, nil)
	defer m.Close()

	m, _ = update(t, m, key(tea.KeyEsc))
	m = drain(t, m)
	if w.retreats != 1 || m.state.Step != 2 {
		t.Fatalf("retreats = %d, step = %d", w.retreats, m.state.Step)
	}
}

func TestReviewAndCompletion(t *testing.T) {
	w := newFakeWizard()
	w.store.Set(wizard.State{Step: property.StepReview, TotalSteps: property.TotalSteps, EntityID: "prop-123"})
	d := &property.Draft{
		Currency:      "USD",
		Address:       property.Address{Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701"},
		PropertyType:  "condo",
		PurchasePrice: decimal.NewFromInt(250000),
		PurchaseDate:  time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	toasts := notify.NewToasts()
	m := NewModel(context.Background(), w, d, toasts)
	defer m.Close()

	if !strings.Contains(m.View(), "$250,000.00") {
		t.Fatal("review should render the purchase price")
	}

	m, cmd := update(t, m, key(tea.KeyEnter))
	if cmd == nil {
		t.Fatal("expected the finish command on the review step")
	}
	m, _ = update(t, m, cmd())
	toasts.Push(notify.LevelSuccess, "Property added", "1 Main St")
	m = drain(t, m)

	if !m.state.IsComplete {
		t.Fatal("expected completion")
	}
	view := m.View()
	if !strings.Contains(view, "Property saved") || !strings.Contains(view, "Property added") {
		t.Errorf("view missing completion or toast:\n%s", view)
	}
	if _, quit := update(t, m, key(tea.KeyEnter)); quit == nil {
		t.Error("enter after completion should quit")
	}
}

func TestFieldParsing(t *testing.T) {
	d := &property.Draft{}

	price := stepFields(property.StepPurchase)[0]
	if err := price.set(d, "$250,000.50"); err != nil {
		t.Fatalf("price: %v", err)
	}
	if !d.PurchasePrice.Equal(decimal.RequireFromString("250000.5")) {
		t.Errorf("PurchasePrice = %s", d.PurchasePrice)
	}
	if err := price.set(d, "lots"); err == nil {
		t.Error("expected error for a non-numeric price")
	}

	if err := dateField.set(d, "2023-05-01"); err != nil || dateField.get(d) != "2023-05-01" {
		t.Errorf("date round trip: %v %q", err, dateField.get(d))
	}
	if err := dateField.set(d, "05/01/2023"); err == nil {
		t.Error("expected error for a malformed date")
	}

	beds := stepFields(property.StepDetails)[1]
	if err := beds.set(d, "3.5"); err == nil {
		t.Error("expected error for fractional bedrooms")
	}
	if err := beds.set(d, " 4 "); err != nil || d.Bedrooms != 4 {
		t.Errorf("bedrooms = %d, err = %v", d.Bedrooms, err)
	}

	if err := confirmField.set(d, "YES"); err != nil || !d.AddressConfirmed {
		t.Errorf("confirm yes: %v %v", err, d.AddressConfirmed)
	}
	if err := confirmField.set(d, "maybe"); err == nil {
		t.Error("expected error for an unclear confirmation")
	}

	if stepFields(property.StepReview) != nil {
		t.Error("review step has no inputs")
	}
}
