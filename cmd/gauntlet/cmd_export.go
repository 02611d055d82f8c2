package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/elee1766/gauntletfuse/src/app"
	"github.com/elee1766/gauntletfuse/src/render"
)

// ExportCmd writes a run's export document
type ExportCmd struct {
	RunID  string `arg:"" name:"run" help:"Run ID"`
	Stdout bool   `help:"Print to stdout instead of the export directory"`
}

// Run executes the export command
func (c *ExportCmd) Run(kctx *kong.Context, cli *CLI) error {
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
	if !c.Stdout {
		path, err := a.WriteExport(ctx, user, c.RunID)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	}

	doc, err := a.ExportRun(ctx, user, c.RunID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return render.JSON(os.Stdout, data, stdoutIsTerminal())
}
