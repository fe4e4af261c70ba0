// Package tui is the interactive terminal front end for property onboarding.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/johndauphine/propfolio/internal/notify"
	"github.com/johndauphine/propfolio/internal/property"
	"github.com/johndauphine/propfolio/internal/wizard"
)

// Wizard is the controller surface the UI drives.
type Wizard interface {
	State() wizard.State
	Subscribe(fn func(wizard.State)) func()
	Advance(ctx context.Context, form *property.Draft) bool
	Retreat() int
	Busy() bool
}

var _ Wizard = (*wizard.Controller[*property.Draft])(nil)

var errConfirmAddress = errors.New("confirm the address to continue")

// stateMsg carries a controller state change into the program.
type stateMsg wizard.State

// toastsMsg carries the visible toasts into the program.
type toastsMsg []notify.Toast

// advanceDoneMsg is returned when an Advance call settles.
type advanceDoneMsg struct{ ok bool }

// bridge forwards observable updates into the bubbletea event loop.
type bridge struct {
	events chan tea.Msg
	done   chan struct{}
	once   sync.Once
	unsubs []func()
}

func (b *bridge) send(msg tea.Msg) {
	select {
	case b.events <- msg:
	case <-b.done:
	}
}

func (b *bridge) close() {
	b.once.Do(func() {
		for _, unsub := range b.unsubs {
			unsub()
		}
		close(b.done)
	})
}

// Model is the onboarding wizard model
type Model struct {
	ctx    context.Context
	wiz    Wizard
	draft  *property.Draft
	bridge *bridge

	state      wizard.State
	loadedStep int
	fields     []field
	inputs     []textinput.Model
	focus      int
	advancing  bool
	formErr    error
	toasts     []notify.Toast
	spinner    spinner.Model
	width      int
	quitting   bool
}

// NewModel builds a model bound to w. toasts may be nil.
func NewModel(ctx context.Context, w Wizard, draft *property.Draft, toasts *notify.Toasts) Model {
	b := &bridge{
		events: make(chan tea.Msg, 16),
		done:   make(chan struct{}),
	}
	b.unsubs = append(b.unsubs, w.Subscribe(func(s wizard.State) { b.send(stateMsg(s)) }))
	if toasts != nil {
		b.unsubs = append(b.unsubs, toasts.Subscribe(func(list []notify.Toast) { b.send(toastsMsg(list)) }))
	}

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(colorPurple)),
	)

	m := Model{
		ctx:     ctx,
		wiz:     w,
		draft:   draft,
		bridge:  b,
		state:   w.State(),
		spinner: sp,
	}
	m.loadStep(m.state.Step)
	return m
}

// Close detaches the model from the controller and toast center.
func (m Model) Close() {
	m.bridge.close()
}

// Run shows the wizard until the user completes or quits it and returns the
// final controller state.
func Run(ctx context.Context, w Wizard, draft *property.Draft, toasts *notify.Toasts) (wizard.State, error) {
	m := NewModel(ctx, w, draft, toasts)
	defer m.Close()

	if _, err := tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil {
		return w.State(), fmt.Errorf("running onboarding ui: %w", err)
	}
	return w.State(), nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), textinput.Blink)
}

func (m Model) listen() tea.Cmd {
	b := m.bridge
	return func() tea.Msg {
		select {
		case msg := <-b.events:
			return msg
		case <-b.done:
			return nil
		}
	}
}

func (m Model) advance() tea.Cmd {
	ctx, w, draft := m.ctx, m.wiz, m.draft
	return func() tea.Msg {
		return advanceDoneMsg{ok: w.Advance(ctx, draft)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case stateMsg:
		m.state = wizard.State(msg)
		if m.state.Step != m.loadedStep {
			m.loadStep(m.state.Step)
		}
		return m, m.listen()

	case toastsMsg:
		m.toasts = msg
		return m, m.listen()

	case advanceDoneMsg:
		m.advancing = false
		m.state = m.wiz.State()
		if m.state.Step != m.loadedStep {
			m.loadStep(m.state.Step)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEsc:
		if m.busy() || m.state.IsComplete {
			return m, nil
		}
		m.formErr = nil
		m.wiz.Retreat()
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		return m, m.moveFocus(1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.moveFocus(-1)
	case tea.KeyEnter:
		return m.submit()
	}

	if m.state.IsComplete && msg.String() == "q" {
		m.quitting = true
		return m, tea.Quit
	}
	return m.updateFocused(msg)
}

// submit moves to the next input, or saves the step from the last one.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.state.IsComplete {
		m.quitting = true
		return m, tea.Quit
	}
	if m.busy() {
		return m, nil
	}
	if m.focus < len(m.inputs)-1 {
		return m, m.moveFocus(1)
	}

	if err := m.apply(); err != nil {
		m.formErr = err
		return m, nil
	}
	if err := m.draft.ValidateStep(m.state.Step); err != nil {
		m.formErr = err
		return m, nil
	}
	if m.state.Step == property.StepAddress && !m.draft.AddressConfirmed {
		m.formErr = errConfirmAddress
		return m, nil
	}

	m.formErr = nil
	m.advancing = true
	return m, m.advance()
}

// apply copies input values into the draft.
func (m Model) apply() error {
	for i, f := range m.fields {
		if err := f.set(m.draft, m.inputs[i].Value()); err != nil {
			return err
		}
	}
	return nil
}

func (m Model) busy() bool {
	return m.advancing || m.state.IsFetchingEnrichment || m.wiz.Busy()
}

func (m *Model) loadStep(step int) {
	m.fields = stepFields(step)
	m.inputs = make([]textinput.Model, len(m.fields))
	for i, f := range m.fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = f.placeholder
		ti.CharLimit = 120
		ti.SetValue(f.get(m.draft))
		m.inputs[i] = ti
	}
	m.focus = 0
	if len(m.inputs) > 0 {
		m.inputs[0].Focus()
	}
	m.loadedStep = step
}

func (m *Model) moveFocus(delta int) tea.Cmd {
	if len(m.inputs) == 0 {
		return nil
	}
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	return m.inputs[m.focus].Focus()
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	if len(m.inputs) == 0 || m.busy() {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(styleTitle.Render("Add a property"))
	b.WriteString("\n")
	b.WriteString(m.renderSteps())
	b.WriteString("\n\n")

	switch {
	case m.state.IsComplete:
		b.WriteString(styleSuccess.Render("Property saved"))
		if m.state.EntityID != "" {
			b.WriteString(styleHelp.Render(" (" + m.state.EntityID + ")"))
		}
		b.WriteString("\n")
	case m.state.IsFetchingEnrichment:
		b.WriteString(m.spinner.View())
		b.WriteString(" Looking up market data for ")
		b.WriteString(m.draft.Address.String())
		b.WriteString("\n")
	case len(m.inputs) == 0:
		for _, row := range m.draft.Review(m.state.Enrichment) {
			b.WriteString(styleLabel.Render(row[0]))
			b.WriteString(styleValue.Render(row[1]))
			b.WriteString("\n")
		}
	default:
		for i, f := range m.fields {
			label := styleLabel
			if i == m.focus {
				label = styleLabelFocused
			}
			b.WriteString(label.Render(f.label))
			b.WriteString(m.inputs[i].View())
			b.WriteString("\n")
		}
	}

	if m.advancing && !m.state.IsFetchingEnrichment {
		b.WriteString(m.spinner.View() + " Saving...\n")
	}
	if m.formErr != nil {
		b.WriteString("\n" + styleError.Render(m.formErr.Error()) + "\n")
	} else if m.state.Err != nil && !m.busy() {
		b.WriteString("\n" + styleError.Render("Could not save: "+m.state.Err.Error()) + "\n")
	}

	if len(m.toasts) > 0 {
		b.WriteString("\n")
		for _, t := range m.toasts {
			b.WriteString(renderToast(t))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(styleHelp.Render(m.help()))

	frame := styleFrame
	if m.width > 4 {
		frame = frame.Width(m.width - 4)
	}
	return frame.Render(b.String())
}

func (m Model) renderSteps() string {
	parts := make([]string, 0, m.state.TotalSteps)
	for s := 1; s <= m.state.TotalSteps; s++ {
		title := fmt.Sprintf("%d %s", s, property.StepTitle(s))
		switch {
		case s < m.state.Step || m.state.IsComplete:
			parts = append(parts, styleStepDone.Render("✓ "+title))
		case s == m.state.Step:
			parts = append(parts, styleStepCurrent.Render(title))
		default:
			parts = append(parts, styleStepPending.Render(title))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) help() string {
	switch {
	case m.state.IsComplete:
		return "enter/q: exit"
	case m.state.IsTerminal():
		return "enter: finish • esc: back • ctrl+c: quit"
	default:
		return "tab/↑↓: move • enter: next • esc: back • ctrl+c: quit"
	}
}

func renderToast(t notify.Toast) string {
	style := styleToastInfo
	switch t.Level {
	case notify.LevelSuccess:
		style = styleToastSuccess
	case notify.LevelError:
		style = styleToastError
	}
	text := lipgloss.NewStyle().Bold(true).Render(t.Title)
	if t.Message != "" {
		text += "\n" + t.Message
	}
	return style.Render(text)
}
