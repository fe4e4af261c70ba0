package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/johndauphine/propfolio/internal/api"
	"github.com/johndauphine/propfolio/internal/config"
	"github.com/johndauphine/propfolio/internal/enrichment"
	"github.com/johndauphine/propfolio/internal/exitcodes"
	"github.com/johndauphine/propfolio/internal/logging"
	"github.com/johndauphine/propfolio/internal/metrics"
	"github.com/johndauphine/propfolio/internal/notify"
	"github.com/johndauphine/propfolio/internal/progress"
	"github.com/johndauphine/propfolio/internal/property"
	"github.com/johndauphine/propfolio/internal/session"
	"github.com/johndauphine/propfolio/internal/tui"
	"github.com/johndauphine/propfolio/internal/wizard"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

func onboardCommand() *cli.Command {
	return &cli.Command{
		Name:   "onboard",
		Usage:  "Add a property through the onboarding wizard",
		Action: runOnboard,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "form",
				Usage: "Draft YAML file; runs every step without prompting",
			},
			&cli.StringFlag{
				Name:  "property-id",
				Usage: "Continue a draft that was already saved",
			},
			&cli.IntFlag{
				Name:  "step",
				Value: 1,
				Usage: "Step to start from when continuing a draft",
			},
			&cli.BoolFlag{
				Name:  "output-json",
				Usage: "Write JSON step updates to stdout (logs go to stderr)",
			},
		},
	}
}

func runOnboard(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	draft := &property.Draft{Currency: "USD"}
	if path := c.String("form"); path != "" {
		if draft, err = property.LoadDraft(path); err != nil {
			return err
		}
	}

	auth := session.NewProvider()
	st := auth.FromConfig(&cfg.Session)
	if draft.AccountID == "" {
		draft.AccountID = st.AccountID
	}
	if draft.PortfolioID == "" {
		draft.PortfolioID = st.PortfolioID
	}

	rec := startMetrics(ctx, cfg)
	ctrl := newWizard(cfg, api.New(&cfg.API).NewOnboarding(c.String("property-id")), rec)
	defer ctrl.Close()
	// A continued draft carries its step from the previous session.
	ctrl.Sync(c.Int("step"))

	toasts := notify.NewToasts()
	dispatcher := notify.NewDispatcher(notify.New(&cfg.Slack), toasts)
	defer dispatcher.Wait()
	unsub := ctrl.Subscribe(dispatcher.Wizard(func() string { return draft.Address.String() }))
	defer unsub()

	if c.String("form") == "" {
		if !isInteractive() {
			return exitcodes.NewExitError(fmt.Errorf("no terminal attached; pass --form draft.yaml"), exitcodes.ConfigError)
		}
		final, err := tui.Run(ctx, ctrl, draft, toasts)
		if err != nil {
			return err
		}
		if !final.IsComplete {
			return exitcodes.NewExitError(fmt.Errorf("onboarding stopped at step %d", final.Step), exitcodes.Cancelled)
		}
		return nil
	}

	tracker := progress.New(os.Stderr)
	defer tracker.Finish()
	defer ctrl.Subscribe(tracker.ObserveWizard)()

	if c.Bool("output-json") {
		reporter := progress.NewJSONReporter(os.Stdout, 500*time.Millisecond)
		defer reporter.Close()
		defer ctrl.Subscribe(progress.WizardSubscriber(reporter))()
	}

	if err := runSteps(ctx, ctrl, draft); err != nil {
		return err
	}

	final := ctrl.State()
	logging.Info("Property %s onboarded", final.EntityID)
	if c.Bool("output-json") {
		return nil
	}
	if !isInteractive() {
		fmt.Print(draft.ReviewMarkdown(final.EntityID, final.Enrichment))
		return nil
	}
	width, _, _ := term.GetSize(int(os.Stdout.Fd()))
	out, err := draft.RenderReview(final.EntityID, final.Enrichment, width)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func newWizard(cfg *config.Config, persist wizard.Persistence[*property.Draft], rec *metrics.Recorder) *wizard.Controller[*property.Draft] {
	// enrich stays nil without a provider so only the display floor applies.
	var enrich wizard.Enrichment
	if ec := enrichment.New(&cfg.Enrichment); ec.IsEnabled() {
		enrich = ec
	} else {
		logging.Warn("Enrichment provider not configured; market data will be skipped")
	}

	total := cfg.Wizard.TotalSteps
	if total <= 0 {
		total = property.TotalSteps
	}
	return wizard.New[*property.Draft](persist, enrich, wizard.Options{
		TotalSteps:  total,
		MinDisplay:  cfg.Wizard.MinDisplay,
		SettleDelay: cfg.Wizard.SettleDelay,
		Metrics:     rec,
		OnStepChange: func(step int, id string) {
			logging.Debug("Step changed to %d (property %s)", step, id)
		},
	})
}

// runSteps advances a fully-populated draft through every remaining step.
func runSteps(ctx context.Context, ctrl *wizard.Controller[*property.Draft], draft *property.Draft) error {
	for !ctrl.State().IsComplete {
		st := ctrl.State()
		if err := draft.ValidateStep(st.Step); err != nil {
			return exitcodes.NewExitError(fmt.Errorf("step %d (%s): %w", st.Step, property.StepTitle(st.Step), err), exitcodes.ValidationError)
		}
		if st.Step == property.StepAddress && !draft.AddressConfirmed {
			return exitcodes.NewExitError(fmt.Errorf("step %d (%s): address_confirmed must be true", st.Step, property.StepTitle(st.Step)), exitcodes.ValidationError)
		}

		if ctrl.Advance(ctx, draft) {
			continue
		}

		st = ctrl.State()
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case st.Err != nil:
			return fmt.Errorf("step %d (%s): %w", st.Step, property.StepTitle(st.Step), st.Err)
		default:
			return exitcodes.NewExitError(fmt.Errorf("step %d (%s) was not saved", st.Step, property.StepTitle(st.Step)), exitcodes.PersistenceError)
		}
	}
	return nil
}
