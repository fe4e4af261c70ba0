// Package session tracks the authentication state of the current user.
package session

import (
	"github.com/johndauphine/propfolio/internal/config"
	"github.com/johndauphine/propfolio/internal/observable"
)

// State is the observable authentication state.
type State struct {
	// Loaded is false until the identity provider has answered.
	Loaded      bool
	SignedIn    bool
	AccountID   string
	PortfolioID string
	Token       string
}

// Authenticated reports whether a usable signed-in session exists.
func (s State) Authenticated() bool {
	return s.Loaded && s.SignedIn && s.AccountID != ""
}

// Provider owns the auth state store.
type Provider struct {
	store *observable.Store[State]
}

// NewProvider returns a provider in the not-yet-loaded state.
func NewProvider() *Provider {
	return &Provider{store: observable.New(State{})}
}

// FromConfig loads the provider from the session section. A missing
// account id loads as signed out.
func (p *Provider) FromConfig(cfg *config.SessionConfig) State {
	if cfg == nil || cfg.AccountID == "" {
		return p.SignOut()
	}
	return p.SignIn(cfg.AccountID, cfg.PortfolioID, cfg.Token)
}

// SignIn publishes a signed-in session.
func (p *Provider) SignIn(accountID, portfolioID, token string) State {
	return p.store.Set(State{
		Loaded:      true,
		SignedIn:    true,
		AccountID:   accountID,
		PortfolioID: portfolioID,
		Token:       token,
	})
}

// SignOut publishes a loaded, signed-out session.
func (p *Provider) SignOut() State {
	return p.store.Set(State{Loaded: true})
}

// State returns the current snapshot.
func (p *Provider) State() State {
	return p.store.Snapshot()
}

// Subscribe registers fn for auth changes.
func (p *Provider) Subscribe(fn func(State)) func() {
	return p.store.Subscribe(fn)
}
