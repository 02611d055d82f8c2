// Package app wires configuration, storage and services into one value
// shared by the CLI commands and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/elee1766/gauntletfuse/src/auth"
	"github.com/elee1766/gauntletfuse/src/catalog"
	"github.com/elee1766/gauntletfuse/src/config"
	"github.com/elee1766/gauntletfuse/src/export"
	"github.com/elee1766/gauntletfuse/src/invoke"
	"github.com/elee1766/gauntletfuse/src/orchestrator"
	"github.com/elee1766/gauntletfuse/src/storage"
)

// App represents the main application with all services
type App struct {
	Config       *config.Config
	DB           *storage.DB
	Store        *storage.Store
	Auth         *auth.Authenticator
	Catalog      *catalog.Service
	Invoker      *invoke.HTTPInvoker
	Orchestrator *orchestrator.Orchestrator
	Exports      *export.Writer
	Logger       *slog.Logger
}

// Options override pieces of the wiring, mostly for tests
type Options struct {
	Logger *slog.Logger
	// Invoker replaces the HTTP invoker used for runs
	Invoker invoke.Invoker
	// Fs backs the export writer; defaults to the OS filesystem
	Fs afero.Fs
	// RecoverInterrupted fails runs a previous process left running. Only
	// the long-lived server sets it, since a second process would otherwise
	// fail runs the server is still driving.
	RecoverInterrupted bool
}

// New opens the database and creates every service from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	store := storage.NewStore(db)

	oc := cfg.Orchestrator
	httpInvoker := invoke.NewHTTPInvoker(invoke.HTTPConfig{
		Logger:       logger,
		DefaultModel: oc.DefaultModel,
		Timeout:      oc.InvocationTimeout.Std(),
		SiteName:     oc.SiteName,
	})
	var inv invoke.Invoker = httpInvoker
	if opts.Invoker != nil {
		inv = opts.Invoker
	}

	orch := orchestrator.New(orchestrator.Config{
		Store:              store,
		Invoker:            inv,
		Events:             orchestrator.NewHub(),
		Logger:             logger,
		InvocationTimeout:  oc.InvocationTimeout.Std(),
		MaxRetries:         oc.MaxRetries,
		RetryDelay:         oc.RetryDelay.Std(),
		MaxConcurrency:     oc.MaxConcurrency,
		DefaultTemperature: oc.DefaultTemperature,
	})

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	a := &App{
		Config:       cfg,
		DB:           db,
		Store:        store,
		Auth:         auth.New(store),
		Catalog:      catalog.New(store, logger, oc.DefaultTemperature),
		Invoker:      httpInvoker,
		Orchestrator: orch,
		Exports:      export.NewWriter(fs, cfg.Export.Directory),
		Logger:       logger,
	}

	if opts.RecoverInterrupted {
		n, err := orch.RecoverInterrupted(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to recover interrupted runs: %w", err)
		}
		if n > 0 {
			logger.Warn("marked interrupted runs as failed", "count", n)
		}
	}
	return a, nil
}

// Close stops background runs and closes the database.
func (a *App) Close() error {
	a.Orchestrator.Close()
	return a.DB.Close()
}

// ExportRun builds the export document for a run the user owns. The run
// section reflects the current status; the fusion section comes from the
// snapshot stored at synthesis time.
func (a *App) ExportRun(ctx context.Context, user auth.UserID, runID string) (*export.Document, error) {
	st, err := a.Orchestrator.GetRunState(ctx, user, runID)
	if err != nil {
		return nil, err
	}
	rounds := make([]export.RoundInput, 0, len(st.Rounds))
	for _, r := range st.Rounds {
		rounds = append(rounds, export.RoundInput{Round: r.Round, Messages: r.Messages})
	}

	var fused *export.Fusion
	if out := st.FusedOutput; out != nil {
		fused = &export.Fusion{Answer: out.FusedAnswer, ReasoningSummary: out.ReasoningSummary}
		if snap, err := export.FromMap(out.ExportJSON); err == nil && snap.Fusion != nil {
			fused = snap.Fusion
		} else if err != nil {
			a.Logger.Warn("stored export snapshot unreadable", "run_id", runID, "error", err)
		}
	}
	return export.Build(st.Run, st.Participants, rounds, fused, time.Now()), nil
}

// WriteExport exports a run to the configured export directory.
func (a *App) WriteExport(ctx context.Context, user auth.UserID, runID string) (string, error) {
	doc, err := a.ExportRun(ctx, user, runID)
	if err != nil {
		return "", err
	}
	return a.Exports.Write(doc)
}
