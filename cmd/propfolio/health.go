package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/johndauphine/propfolio/internal/config"
	"github.com/johndauphine/propfolio/internal/durable"
	"github.com/johndauphine/propfolio/internal/exitcodes"
	"github.com/johndauphine/propfolio/internal/health"
	"github.com/johndauphine/propfolio/internal/staging"
	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check connectivity to the API, enrichment provider and stores",
		Action: runHealth,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output result as JSON",
			},
		},
	}
}

func runHealth(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	res := health.Run(ctx, health.DefaultTimeout, healthTargets(cfg)...)
	if c.Bool("json") {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		for _, cr := range res.Checks {
			status := "ok"
			if !cr.OK {
				status = "FAILED: " + cr.Error
			} else if cr.Detail != "" {
				status += " (" + cr.Detail + ")"
			}
			fmt.Printf("%-12s %5dms  %s\n", cr.Name, cr.LatencyMs, status)
		}
	}

	if !res.Healthy {
		return exitcodes.NewExitError(fmt.Errorf("one or more health checks failed"), exitcodes.ConnectionError)
	}
	return nil
}

func healthTargets(cfg *config.Config) []health.Target {
	client := &http.Client{}
	var targets []health.Target

	if cfg.API.BaseURL != "" {
		targets = append(targets, health.Target{Name: "api", Check: health.HTTP(client, cfg.API.BaseURL)})
	}
	if cfg.Enrichment.BaseURL != "" {
		targets = append(targets, health.Target{Name: "enrichment", Check: health.HTTP(client, cfg.Enrichment.BaseURL)})
	}

	targets = append(targets, health.Target{Name: "staging", Check: func(ctx context.Context) (string, error) {
		store, err := staging.Open(&cfg.Learning, cfg.Session.AccountID)
		if err != nil {
			return "", err
		}
		defer store.Close()
		sum, err := store.Summary(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s, %d pending", sum.Backend, sum.Pending.Total()), nil
	}})

	if cfg.Learning.Gateway == "" || cfg.Learning.Gateway == "postgres" {
		targets = append(targets, health.Target{Name: "durable", Check: func(ctx context.Context) (string, error) {
			pg, err := durable.NewPostgres(ctx, cfg)
			if err != nil {
				return "", err
			}
			defer pg.Close()
			if err := pg.Ping(ctx); err != nil {
				return "", err
			}
			return pg.Stats().String(), nil
		}})
	}
	return targets
}
