// Package durable writes migrated learning data to the durable store, either
// directly into PostgreSQL or through the application API.
package durable

import (
	"context"
	"errors"
	"fmt"

	"github.com/johndauphine/propfolio/internal/config"
	"github.com/johndauphine/propfolio/internal/learning"
)

// ErrUnauthorized is returned when the durable store rejects the credentials.
var ErrUnauthorized = errors.New("durable store rejected credentials")

// Gateway accepts one batch of staged records for an account.
type Gateway interface {
	Transfer(ctx context.Context, accountID string, batch learning.Batch) (*learning.Result, error)
	Close()
}

// Open returns the gateway selected by learning.gateway.
func Open(ctx context.Context, cfg *config.Config) (Gateway, error) {
	switch cfg.Learning.Gateway {
	case "", "postgres":
		return NewPostgres(ctx, cfg)
	case "api":
		return NewHTTP(&cfg.API), nil
	default:
		return nil, fmt.Errorf("unknown learning gateway %q", cfg.Learning.Gateway)
	}
}
