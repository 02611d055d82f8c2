package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"

	"github.com/elee1766/gauntletfuse/src/app"
	"github.com/elee1766/gauntletfuse/src/render"
)

// ShowCmd prints a run
type ShowCmd struct {
	RunID    string `arg:"" name:"run" help:"Run ID"`
	JSON     bool   `help:"Print the raw run state as JSON"`
	Diff     bool   `help:"Show how each participant revised its answer"`
	MaxLines int    `help:"Truncate each message to this many lines" default:"0"`
}

// Run executes the show command
func (c *ShowCmd) Run(kctx *kong.Context, cli *CLI) error {
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
	st, err := a.Orchestrator.GetRunState(ctx, user, c.RunID)
	if err != nil {
		return err
	}

	if c.JSON {
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		return render.JSON(os.Stdout, data, stdoutIsTerminal())
	}
	return render.Run(os.Stdout, st, render.Options{
		Width:    terminalWidth(),
		MaxLines: c.MaxLines,
		Diff:     c.Diff,
	})
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// terminalWidth leaves a margin inside the terminal, or returns 0 to
// disable wrapping when stdout is not a terminal.
func terminalWidth() int {
	if !stdoutIsTerminal() {
		return 0
	}
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w < 40 {
		return 0
	}
	return w - 4
}
