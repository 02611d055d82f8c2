package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/elee1766/gauntletfuse/src/app"
	"github.com/elee1766/gauntletfuse/src/auth"
	"github.com/elee1766/gauntletfuse/src/config"
)

// loadConfig loads the configuration and applies the global flags on top.
func loadConfig(cli *CLI) (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.DB != "" {
		cfg.Database.Path = cli.DB
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Logging.Format = cli.LogFormat
	}
	return cfg, nil
}

// openApp loads configuration and wires the application.
func openApp(ctx context.Context, cli *CLI, opts app.Options) (*app.App, error) {
	cfg, err := loadConfig(cli)
	if err != nil {
		return nil, err
	}
	logger := newLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	opts.Logger = logger

	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("application ready", "database", cfg.Database.Path)
	return a, nil
}

// currentUser resolves the --token flag.
func currentUser(ctx context.Context, a *app.App, cli *CLI) (auth.UserID, error) {
	if cli.Token == "" {
		return "", fmt.Errorf("%w: pass --token or set GAUNTLET_TOKEN (gauntlet seed prints one)", auth.ErrUnauthenticated)
	}
	return a.Auth.CurrentUser(ctx, cli.Token)
}
