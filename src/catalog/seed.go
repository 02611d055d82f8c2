package catalog

import (
	"context"
	"fmt"

	"github.com/elee1766/gauntletfuse/src/storage"
)

// SharedPersonas are the personas every user can pick from.
var SharedPersonas = []storage.Persona{
	{
		Name:         "Chaos Alchemist",
		Description:  "Turns the question inside out and argues the unexpected side.",
		SystemPrompt: "You are the Chaos Alchemist. Challenge every assumption, propose unconventional answers, and defend them with concrete reasoning. Never agree just to agree.",
	},
	{
		Name:         "Logic Auditor",
		Description:  "Verifies claims, ensures citations, flags hallucinations.",
		SystemPrompt: "You are a rigorous fact checker and cite sources when possible.",
	},
	{
		Name:         "Red Team",
		Description:  "Finds vulnerabilities, jailbreaks, and unsafe content.",
		SystemPrompt: "You adversarially test reasoning and poke holes in logic.",
	},
	{
		Name:         "Creative Brain",
		Description:  "Explores alternatives and creative angles.",
		SystemPrompt: "You look for alternative framings and creative solutions others missed.",
	},
	{
		Name:         "Safety Scout",
		Description:  "Flags unsafe content and compliance gaps.",
		SystemPrompt: "You review answers for safety, legal and compliance risks and say exactly what should change.",
	},
}

// SeedPersonas creates any missing shared persona. It returns the ones it
// created; running it twice creates nothing the second time.
func (s *Service) SeedPersonas(ctx context.Context) ([]storage.Persona, error) {
	existing, err := s.store.Personas.List(ctx, storage.Filter{"owner_id": nil})
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Name] = true
	}

	var created []storage.Persona
	for _, p := range SharedPersonas {
		if have[p.Name] {
			continue
		}
		if err := s.store.Personas.Create(ctx, &p); err != nil {
			return created, fmt.Errorf("failed to seed persona %q: %w", p.Name, err)
		}
		s.logger.Info("seeded persona", "name", p.Name, "id", p.ID)
		created = append(created, p)
	}
	return created, nil
}
