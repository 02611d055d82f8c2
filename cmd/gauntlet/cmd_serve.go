package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/elee1766/gauntletfuse/src/app"
	"github.com/elee1766/gauntletfuse/src/server"
)

// ServeCmd runs the HTTP API until interrupted
type ServeCmd struct {
	Addr string `help:"Listen address (defaults to config)"`
}

// Run executes the serve command
func (c *ServeCmd) Run(kctx *kong.Context, cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cli, app.Options{RecoverInterrupted: true})
	if err != nil {
		return err
	}
	defer a.Close()

	addr := c.Addr
	if addr == "" {
		addr = a.Config.Server.Addr
	}
	srv := server.New(server.Config{
		Orchestrator: a.Orchestrator,
		Catalog:      a.Catalog,
		Auth:         a.Auth,
		Export:       a.ExportRun,
		Logger:       a.Logger,
		BodyLimit:    a.Config.Server.BodyLimit,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx := context.Background()
	if d := a.Config.Server.ShutdownTimeout.Std(); d > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, d)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
