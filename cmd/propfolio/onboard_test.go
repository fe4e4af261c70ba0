package main

import (
	"context"
	"testing"

	"github.com/johndauphine/propfolio/internal/config"
	"github.com/johndauphine/propfolio/internal/property"
)

type stubOnboarding struct {
	id    string
	saves int
}

func (s *stubOnboarding) SaveStep(ctx context.Context, d *property.Draft, confirmed bool) (string, error) {
	s.saves++
	return s.id, nil
}

func (s *stubOnboarding) CompleteWizard(ctx context.Context, d *property.Draft, confirmed bool) (bool, error) {
	return true, nil
}

func TestNewWizardResumesAtSyncedStep(t *testing.T) {
	persist := &stubOnboarding{id: "prop-7"}
	ctrl := newWizard(config.Default(), persist, nil)
	defer ctrl.Close()

	if got := ctrl.State().Step; got != 1 {
		t.Fatalf("initial step = %d, want 1", got)
	}
	ctrl.Sync(3)

	draft := &property.Draft{AccountID: "acct-1", PortfolioID: "pf-1", AddressConfirmed: true}
	if !ctrl.Advance(context.Background(), draft) {
		t.Fatalf("Advance from step 3 failed: %v", ctrl.State().Err)
	}
	st := ctrl.State()
	if st.Step != 4 || st.EntityID != "prop-7" {
		t.Errorf("state = step %d id %q, want step 4 id prop-7", st.Step, st.EntityID)
	}
	if persist.saves != 1 {
		t.Errorf("saves = %d, want 1", persist.saves)
	}
}
