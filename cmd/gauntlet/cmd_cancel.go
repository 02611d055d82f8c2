package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/elee1766/gauntletfuse/src/app"
	"github.com/elee1766/gauntletfuse/src/storage"
)

// CancelCmd cancels a pending run, or asks a running one to stop at its
// next round boundary
type CancelCmd struct {
	RunID string `arg:"" name:"run" help:"Run ID"`
}

// Run executes the cancel command
func (c *CancelCmd) Run(kctx *kong.Context, cli *CLI) error {
	ctx := context.Background()
	a, err := openApp(ctx, cli, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := currentUser(ctx, a, cli)
	if err != nil {
		return err
	}
	if err := a.Orchestrator.CancelRun(ctx, user, c.RunID); err != nil {
		return err
	}
	st, err := a.Orchestrator.GetRunState(ctx, user, c.RunID)
	if err != nil {
		return err
	}
	if st.Run.Status == storage.RunFailed {
		fmt.Printf("run %s cancelled\n", c.RunID)
	} else {
		fmt.Printf("run %s will stop after its current round\n", c.RunID)
	}
	return nil
}
