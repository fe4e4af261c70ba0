package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/johndauphine/propfolio/internal/config"
	"github.com/johndauphine/propfolio/internal/exitcodes"
	"github.com/johndauphine/propfolio/internal/logging"
	"github.com/johndauphine/propfolio/internal/metrics"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "propfolio",
		Usage:   "Rental property onboarding and learning-hub sync",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "Log format: text or json",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Value: "info",
				Usage: "Log verbosity level (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logging.ParseLevel(c.String("verbosity"))
			if err != nil {
				return exitcodes.NewExitError(err, exitcodes.ConfigError)
			}
			logging.SetLevel(level)

			if c.String("log-format") == "json" {
				logging.SetFormat("json")
			}

			// Keep stdout clean for machine-readable output.
			logging.SetOutput(os.Stderr)
			return nil
		},
		Commands: []*cli.Command{
			onboardCommand(),
			learningCommand(),
			healthCommand(),
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(c *cli.Context) error {
					fmt.Println(version)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		code := exitcodes.FromError(err)
		fmt.Fprintf(os.Stderr, "Error: %v (%s)\n", err, exitcodes.Description(code))
		os.Exit(code)
	}
}

// loadConfig reads --config. A missing default file falls back to built-in
// defaults; a missing explicit file is an error.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !c.IsSet("config") {
		logging.Debug("No %s found, using defaults", path)
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, exitcodes.NewExitError(fmt.Errorf("failed to load config: %w", err), exitcodes.ConfigError)
	}
	logging.Debug("Loaded config %s", path)
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// startMetrics serves /metrics in the background when metrics.listen is set.
func startMetrics(ctx context.Context, cfg *config.Config) *metrics.Recorder {
	rec := metrics.New()
	if cfg.Metrics.Listen == "" {
		return rec
	}
	go func() {
		logging.Info("Serving metrics on %s/metrics", cfg.Metrics.Listen)
		if err := rec.Serve(ctx, cfg.Metrics.Listen); err != nil {
			logging.Warn("metrics server stopped: %v", err)
		}
	}()
	return rec
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
