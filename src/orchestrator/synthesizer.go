package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elee1766/gauntletfuse/src/export"
	"github.com/elee1766/gauntletfuse/src/fusion"
	"github.com/elee1766/gauntletfuse/src/invoke"
	"github.com/elee1766/gauntletfuse/src/storage"
)

// Synthesizer produces a run's fused answer from its finished rounds.
type Synthesizer struct {
	store   *storage.Store
	invoker invoke.Invoker
	policy  invoke.Policy
	events  *Hub
	logger  *slog.Logger
	now     func() time.Time
}

// NewSynthesizer creates a fusion synthesizer.
func NewSynthesizer(store *storage.Store, inv invoke.Invoker, policy invoke.Policy, events *Hub, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		store:   store,
		invoker: inv,
		policy:  policy,
		events:  events,
		logger:  logger.With("component", "synthesizer"),
		now:     time.Now,
	}
}

// pickSynthesizer returns the first Judge, else the first participant.
func pickSynthesizer(participants []Participant) Participant {
	for _, p := range participants {
		if p.Role == storage.DebateJudge {
			return p
		}
	}
	return participants[0]
}

// Synthesize analyses the debate, asks the synthesizer participant for the
// fused answer, and stores exactly one FusedOutput. Exhausted retries wrap
// ErrFusionFailed.
func (s *Synthesizer) Synthesize(ctx context.Context, run *storage.Run, participants []Participant, history []roundRecord) (*storage.FusedOutput, error) {
	if len(participants) == 0 {
		return nil, &NoParticipantsError{RunID: run.ID}
	}

	var stmts []fusion.Statement
	for _, r := range history {
		for _, m := range r.Messages {
			if m.Role == storage.RoleSystem {
				continue
			}
			stmts = append(stmts, fusion.Statement{
				Speaker: speaker(m),
				Phase:   string(r.Round.Phase),
				Content: m.Content,
			})
		}
	}
	analysis := fusion.Analyze(stmts)

	synth := pickSynthesizer(participants)
	req := invoke.Request{
		Provider:   synth.Provider,
		SystemText: synth.Persona.SystemPrompt,
		Prompt:     fusion.Prompt(run.InputPrompt, analysis, fullTranscript(history)),
		Settings:   storage.Settings{Temperature: storage.Ptr(run.Temperature)}.Merge(synth.Settings),
	}
	answer, attempts, err := s.policy.Do(ctx, s.invoker, req)
	if err != nil {
		s.logger.Warn("synthesis failed", "run_id", run.ID, "synthesizer", synth.Label(), "attempts", len(attempts), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrFusionFailed, err)
	}
	if strings.TrimSpace(answer) == "" {
		return nil, fmt.Errorf("%w: %s returned an empty answer", ErrFusionFailed, synth.Label())
	}

	summary := analysis.Summary()
	rounds := make([]export.RoundInput, 0, len(history))
	for _, r := range history {
		rounds = append(rounds, export.RoundInput{Round: r.Round, Messages: r.Messages})
	}
	bound := make([]storage.RunParticipant, 0, len(participants))
	for _, p := range participants {
		bound = append(bound, p.RunParticipant)
	}
	doc := export.Build(*run, bound, rounds, &export.Fusion{
		Answer:           answer,
		ReasoningSummary: summary,
		Synthesizer:      synth.Label(),
		Consensus:        analysis.Consensus,
		Contention:       analysis.Contention,
	}, s.now())
	snapshot, err := doc.Map()
	if err != nil {
		return nil, err
	}

	out := &storage.FusedOutput{
		RunID:            run.ID,
		FusedAnswer:      answer,
		ReasoningSummary: summary,
		ExportJSON:       snapshot,
	}
	if err := s.store.FusedOutputs.Create(context.WithoutCancel(ctx), out); err != nil {
		return nil, fmt.Errorf("failed to save fused output: %w", err)
	}
	s.events.Publish(Event{
		RunID:   run.ID,
		Type:    EventFused,
		Speaker: synth.Label(),
		Role:    storage.RoleJudge,
		Content: answer,
	})
	s.logger.Info("run fused", "run_id", run.ID, "synthesizer", synth.Label(),
		"consensus", len(analysis.Consensus), "contention", len(analysis.Contention))
	return out, nil
}
