package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/elee1766/gauntletfuse/src/storage"
)

// Participant is a run participant with its provider and persona loaded.
type Participant struct {
	storage.RunParticipant
	Provider storage.Provider
	Persona  storage.Persona
}

// Label is the speaker tag used in transcripts, e.g. "Red/Logic Auditor".
func (p Participant) Label() string {
	return p.Role + "/" + p.Persona.Name
}

// Resolver dereferences a run's participants.
type Resolver struct {
	store *storage.Store
}

// NewResolver creates a participant resolver.
func NewResolver(store *storage.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the run's participants in binding order with provider and
// persona loaded. It only reads, so two calls without a store write in
// between return the same list.
func (r *Resolver) Resolve(ctx context.Context, runID string) ([]Participant, error) {
	if _, err := r.store.Runs.Get(ctx, runID); err != nil {
		return nil, err
	}
	bound, err := r.store.ListRunParticipants(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run participants: %w", err)
	}
	if len(bound) == 0 {
		return nil, &NoParticipantsError{RunID: runID}
	}

	out := make([]Participant, 0, len(bound))
	for _, rp := range bound {
		p := Participant{RunParticipant: rp}

		if rp.ProviderID == nil {
			return nil, &DanglingReferenceError{RunParticipantID: rp.ID, Field: "provider"}
		}
		prov, err := r.store.Providers.Get(ctx, *rp.ProviderID)
		if err != nil {
			return nil, dangling(err, rp.ID, "provider", *rp.ProviderID)
		}
		p.Provider = *prov

		if rp.PersonaID == nil {
			return nil, &DanglingReferenceError{RunParticipantID: rp.ID, Field: "persona"}
		}
		pers, err := r.store.Personas.Get(ctx, *rp.PersonaID)
		if err != nil {
			return nil, dangling(err, rp.ID, "persona", *rp.PersonaID)
		}
		p.Persona = *pers

		out = append(out, p)
	}
	return out, nil
}

func dangling(err error, rpID, field, refID string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &DanglingReferenceError{RunParticipantID: rpID, Field: field, RefID: refID}
	}
	return err
}
