package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/elee1766/gauntletfuse/src/app"
	"github.com/elee1766/gauntletfuse/src/orchestrator"
	"github.com/elee1766/gauntletfuse/src/render"
	"github.com/elee1766/gauntletfuse/src/storage"
)

// RunCmd creates a run and drives it to completion in this process
type RunCmd struct {
	Arena        string   `arg:"" help:"Arena ID"`
	Prompt       string   `arg:"" help:"Question to debate"`
	Participant  []string `short:"p" help:"ROLE=PARTICIPANT_ID or ROLE=PROVIDER_ID:PERSONA_ID; defaults to the arena's slots"`
	Temperature  float64  `help:"Temperature override applied to every participant; negative keeps each participant's own" default:"-1"`
	Model        string   `help:"Model override applied to every participant"`
	Quiet        bool     `short:"q" help:"Only print the fused answer"`
	ExportResult bool     `name:"export" help:"Write the export document when done"`
}

// Run executes the run command
func (c *RunCmd) Run(kctx *kong.Context, cli *CLI) error {
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
	specs, err := parseParticipants(c.Participant)
	if err != nil {
		return err
	}
	if override := c.settingsOverride(); override != nil {
		for i := range specs {
			specs[i].Settings = override
		}
	}

	run, err := a.Orchestrator.CreateRun(ctx, user, c.Arena, c.Prompt, specs)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "run %s created\n", run.ID)

	events, unsubscribe := a.Orchestrator.Events().Subscribe(run.ID)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printProgress(events, c.Quiet)
	}()

	// an interrupt asks the run to stop at the next round boundary
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	finished := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "cancelling after the current round")
			if err := a.Orchestrator.CancelRun(ctx, user, run.ID); err != nil {
				a.Logger.Warn("cancel failed", "run_id", run.ID, "error", err)
			}
		case <-finished:
		}
	}()

	execErr := a.Orchestrator.Execute(ctx, run.ID)
	close(finished)
	unsubscribe()
	<-printed

	st, err := a.Orchestrator.GetRunState(ctx, user, run.ID)
	if err != nil {
		return err
	}
	if c.Quiet {
		if st.FusedOutput != nil {
			fmt.Println(st.FusedOutput.FusedAnswer)
		}
	} else if err := render.Run(os.Stdout, st, render.Options{Width: terminalWidth()}); err != nil {
		return err
	}

	if c.ExportResult {
		path, err := a.WriteExport(ctx, user, run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "exported to %s\n", path)
	}
	if execErr != nil {
		return fmt.Errorf("%w: %s: %w", errRunFailed, st.Run.FailureReason, execErr)
	}
	return nil
}

// settingsOverride returns the settings given by flags, or nil when none
// were.
func (c *RunCmd) settingsOverride() *storage.Settings {
	var s storage.Settings
	if c.Temperature >= 0 {
		s.Temperature = storage.Ptr(c.Temperature)
	}
	s.Model = c.Model
	if s.Temperature == nil && s.Model == "" {
		return nil
	}
	return &s
}

func printProgress(events <-chan orchestrator.Event, quiet bool) {
	for ev := range events {
		if quiet {
			continue
		}
		switch ev.Type {
		case orchestrator.EventRoundStarted:
			fmt.Fprintf(os.Stderr, "round %d (%s) started\n", ev.RoundNumber, ev.Phase)
		case orchestrator.EventMessage:
			state := "answered"
			if ev.Role == storage.RoleSystem {
				state = "failed"
			}
			fmt.Fprintf(os.Stderr, "  %s %s\n", ev.Speaker, state)
		case orchestrator.EventRoundFinished:
			fmt.Fprintf(os.Stderr, "round %d %s\n", ev.RoundNumber, ev.RoundStatus)
		case orchestrator.EventFused:
			fmt.Fprintln(os.Stderr, "fused answer ready")
		}
	}
}

// parseParticipants reads ROLE=PARTICIPANT_ID and ROLE=PROVIDER_ID:PERSONA_ID.
func parseParticipants(values []string) ([]orchestrator.ParticipantSpec, error) {
	specs := make([]orchestrator.ParticipantSpec, 0, len(values))
	for _, v := range values {
		role, ref, ok := strings.Cut(v, "=")
		role, ref = strings.TrimSpace(role), strings.TrimSpace(ref)
		if !ok || role == "" || ref == "" {
			return nil, &storage.ValidationError{Entity: "run participant", Field: "participant", Message: fmt.Sprintf("invalid value %q, want ROLE=ID", v)}
		}
		spec := orchestrator.ParticipantSpec{Role: role}
		if provider, persona, ok := strings.Cut(ref, ":"); ok {
			spec.ProviderID, spec.PersonaID = provider, persona
		} else {
			spec.ParticipantID = ref
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
