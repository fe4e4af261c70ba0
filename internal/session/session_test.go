package session

import (
	"testing"

	"github.com/johndauphine/propfolio/internal/config"
)

func TestProviderStartsUnloaded(t *testing.T) {
	p := NewProvider()
	if st := p.State(); st.Loaded || st.SignedIn || st.Authenticated() {
		t.Errorf("initial state = %+v, want unloaded", st)
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.SessionConfig
		signedIn bool
	}{
		{"nil section", nil, false},
		{"no account", &config.SessionConfig{PortfolioID: "pf"}, false},
		{"account", &config.SessionConfig{AccountID: "acct-1", PortfolioID: "pf-1", Token: "tok"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvider()
			st := p.FromConfig(tt.cfg)
			if !st.Loaded {
				t.Error("Loaded = false after FromConfig")
			}
			if st.SignedIn != tt.signedIn || st.Authenticated() != tt.signedIn {
				t.Errorf("state = %+v, want signedIn=%v", st, tt.signedIn)
			}
		})
	}
}

func TestSubscribeSeesTransitions(t *testing.T) {
	p := NewProvider()
	var seen []bool
	unsub := p.Subscribe(func(s State) { seen = append(seen, s.SignedIn) })

	p.SignIn("acct-1", "pf-1", "")
	p.SignOut()
	unsub()
	p.SignIn("acct-2", "", "")

	if len(seen) != 2 || !seen[0] || seen[1] {
		t.Errorf("observed %v, want [true false]", seen)
	}
}
