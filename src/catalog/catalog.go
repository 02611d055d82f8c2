// Package catalog is the owner-scoped CRUD surface over providers,
// personas, saved participants, arenas and runs.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/elee1766/gauntletfuse/src/auth"
	"github.com/elee1766/gauntletfuse/src/storage"
)

// DefaultArenaTemperature is used when an arena is created without one.
const DefaultArenaTemperature = 0.3

// Service checks ownership before touching the store.
type Service struct {
	store              *storage.Store
	logger             *slog.Logger
	defaultTemperature float64
}

// New creates a catalog service. defaultTemperature <= 0 uses
// DefaultArenaTemperature.
func New(store *storage.Store, logger *slog.Logger, defaultTemperature float64) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTemperature <= 0 {
		defaultTemperature = DefaultArenaTemperature
	}
	return &Service{
		store:              store,
		logger:             logger.With("component", "catalog"),
		defaultTemperature: defaultTemperature,
	}
}

// getOwned loads an entity and requires user to own it.
func getOwned[T any](ctx context.Context, repo *storage.Repository[T], user auth.UserID, id string, owner func(*T) string) (*T, error) {
	e, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwner(user, owner(e)); err != nil {
		return nil, err
	}
	return e, nil
}

func updateOwned[T any](ctx context.Context, repo *storage.Repository[T], user auth.UserID, id string, fields storage.Fields, owner func(*T) string) (*T, error) {
	if _, err := getOwned(ctx, repo, user, id, owner); err != nil {
		return nil, err
	}
	return repo.Update(ctx, id, fields)
}

// deleteOwned is idempotent for missing rows but never deletes another
// user's row.
func deleteOwned[T any](ctx context.Context, repo *storage.Repository[T], user auth.UserID, id string, owner func(*T) string) error {
	_, err := getOwned(ctx, repo, user, id, owner)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return repo.Delete(ctx, id)
}

func providerOwner(p *storage.Provider) string       { return p.OwnerID }
func participantOwner(p *storage.Participant) string { return p.OwnerID }
func arenaOwner(a *storage.Arena) string             { return a.OwnerID }
func runOwner(r *storage.Run) string                 { return r.OwnerID }

// shared personas have no owner, so nobody passes RequireOwner for them
func personaOwner(p *storage.Persona) string {
	if p.OwnerID == nil {
		return ""
	}
	return *p.OwnerID
}

// ListProviders returns the user's providers followed by providers other
// users marked shared.
func (s *Service) ListProviders(ctx context.Context, user auth.UserID) ([]storage.Provider, error) {
	own, err := s.store.Providers.List(ctx, storage.Filter{"owner_id": string(user)})
	if err != nil {
		return nil, err
	}
	shared, err := s.store.Providers.List(ctx, storage.Filter{"is_shared": true})
	if err != nil {
		return nil, err
	}
	for _, p := range shared {
		if p.OwnerID != string(user) {
			own = append(own, p)
		}
	}
	return own, nil
}

// GetProvider returns a provider the user owns or that is shared.
func (s *Service) GetProvider(ctx context.Context, user auth.UserID, id string) (*storage.Provider, error) {
	p, err := s.store.Providers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsShared {
		if err := auth.RequireOwner(user, p.OwnerID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// CreateProvider stores p owned by user.
func (s *Service) CreateProvider(ctx context.Context, user auth.UserID, p *storage.Provider) error {
	p.ID = ""
	p.OwnerID = string(user)
	return s.store.Providers.Create(ctx, p)
}

func (s *Service) UpdateProvider(ctx context.Context, user auth.UserID, id string, fields storage.Fields) (*storage.Provider, error) {
	return updateOwned(ctx, s.store.Providers, user, id, fields, providerOwner)
}

func (s *Service) DeleteProvider(ctx context.Context, user auth.UserID, id string) error {
	return deleteOwned(ctx, s.store.Providers, user, id, providerOwner)
}

// ListPersonas returns shared personas and the user's own.
func (s *Service) ListPersonas(ctx context.Context, user auth.UserID) ([]storage.Persona, error) {
	shared, err := s.store.Personas.List(ctx, storage.Filter{"owner_id": nil})
	if err != nil {
		return nil, err
	}
	own, err := s.store.Personas.List(ctx, storage.Filter{"owner_id": string(user)})
	if err != nil {
		return nil, err
	}
	return append(own, shared...), nil
}

func (s *Service) GetPersona(ctx context.Context, user auth.UserID, id string) (*storage.Persona, error) {
	p, err := s.store.Personas.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanRead(user, p.OwnerID) {
		return nil, auth.ErrForbidden
	}
	return p, nil
}

// CreatePersona stores p owned by user. Shared personas are only created
// by seeding.
func (s *Service) CreatePersona(ctx context.Context, user auth.UserID, p *storage.Persona) error {
	p.ID = ""
	p.OwnerID = storage.Ptr(string(user))
	return s.store.Personas.Create(ctx, p)
}

func (s *Service) UpdatePersona(ctx context.Context, user auth.UserID, id string, fields storage.Fields) (*storage.Persona, error) {
	return updateOwned(ctx, s.store.Personas, user, id, fields, personaOwner)
}

func (s *Service) DeletePersona(ctx context.Context, user auth.UserID, id string) error {
	return deleteOwned(ctx, s.store.Personas, user, id, personaOwner)
}

func (s *Service) ListParticipants(ctx context.Context, user auth.UserID) ([]storage.Participant, error) {
	return s.store.Participants.List(ctx, storage.Filter{"owner_id": string(user)})
}

func (s *Service) GetParticipant(ctx context.Context, user auth.UserID, id string) (*storage.Participant, error) {
	return getOwned(ctx, s.store.Participants, user, id, participantOwner)
}

// CreateParticipant stores p owned by user after checking the user can use
// its provider and persona.
func (s *Service) CreateParticipant(ctx context.Context, user auth.UserID, p *storage.Participant) error {
	p.ID = ""
	p.OwnerID = string(user)
	if err := s.checkRefs(ctx, user, p.ProviderID, p.PersonaID); err != nil {
		return err
	}
	return s.store.Participants.Create(ctx, p)
}

func (s *Service) UpdateParticipant(ctx context.Context, user auth.UserID, id string, fields storage.Fields) (*storage.Participant, error) {
	providerID, _ := fields["provider_id"].(string)
	personaID, _ := fields["persona_id"].(string)
	if err := s.checkRefs(ctx, user, providerID, personaID); err != nil {
		return nil, err
	}
	return updateOwned(ctx, s.store.Participants, user, id, fields, participantOwner)
}

func (s *Service) DeleteParticipant(ctx context.Context, user auth.UserID, id string) error {
	return deleteOwned(ctx, s.store.Participants, user, id, participantOwner)
}

// checkRefs verifies the non-empty ids name rows the user may use.
func (s *Service) checkRefs(ctx context.Context, user auth.UserID, providerID, personaID string) error {
	if providerID != "" {
		if _, err := s.GetProvider(ctx, user, providerID); err != nil {
			return err
		}
	}
	if personaID != "" {
		if _, err := s.GetPersona(ctx, user, personaID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ListArenas(ctx context.Context, user auth.UserID) ([]storage.Arena, error) {
	return s.store.Arenas.List(ctx, storage.Filter{"owner_id": string(user)})
}

func (s *Service) GetArena(ctx context.Context, user auth.UserID, id string) (*storage.Arena, error) {
	return getOwned(ctx, s.store.Arenas, user, id, arenaOwner)
}

// CreateArena stores a owned by user. A zero temperature takes the
// service default.
func (s *Service) CreateArena(ctx context.Context, user auth.UserID, a *storage.Arena) error {
	a.ID = ""
	a.OwnerID = string(user)
	if a.Temperature == 0 {
		a.Temperature = s.defaultTemperature
	}
	return s.store.Arenas.Create(ctx, a)
}

func (s *Service) UpdateArena(ctx context.Context, user auth.UserID, id string, fields storage.Fields) (*storage.Arena, error) {
	return updateOwned(ctx, s.store.Arenas, user, id, fields, arenaOwner)
}

func (s *Service) DeleteArena(ctx context.Context, user auth.UserID, id string) error {
	return deleteOwned(ctx, s.store.Arenas, user, id, arenaOwner)
}

// ListSlots returns the arena's role bindings in creation order.
func (s *Service) ListSlots(ctx context.Context, user auth.UserID, arenaID string) ([]storage.ArenaSlot, error) {
	if _, err := s.GetArena(ctx, user, arenaID); err != nil {
		return nil, err
	}
	return s.store.ArenaSlots.List(ctx, storage.Filter{"arena_id": arenaID})
}

// SetSlot binds one of the user's saved participants to role in the arena,
// replacing any participant already holding that role.
func (s *Service) SetSlot(ctx context.Context, user auth.UserID, arenaID, role, participantID string) (*storage.ArenaSlot, error) {
	if _, err := s.GetArena(ctx, user, arenaID); err != nil {
		return nil, err
	}
	if _, err := s.GetParticipant(ctx, user, participantID); err != nil {
		return nil, err
	}

	slots, err := s.store.ArenaSlots.List(ctx, storage.Filter{"arena_id": arenaID, "role": role})
	if err != nil {
		return nil, err
	}
	if len(slots) > 0 {
		return s.store.ArenaSlots.Update(ctx, slots[0].ID, storage.Fields{"participant_id": participantID})
	}
	slot := &storage.ArenaSlot{ArenaID: arenaID, Role: role, ParticipantID: participantID}
	if err := s.store.ArenaSlots.Create(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

// RemoveSlot unbinds role from the arena.
func (s *Service) RemoveSlot(ctx context.Context, user auth.UserID, arenaID, role string) error {
	if _, err := s.GetArena(ctx, user, arenaID); err != nil {
		return err
	}
	slots, err := s.store.ArenaSlots.List(ctx, storage.Filter{"arena_id": arenaID, "role": role})
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if err := s.store.ArenaSlots.Delete(ctx, slot.ID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRun removes a finished or pending run with everything it produced.
// Running runs are refused with storage.ErrRunActive.
func (s *Service) DeleteRun(ctx context.Context, user auth.UserID, id string) error {
	return deleteOwned(ctx, s.store.Runs, user, id, runOwner)
}

// Roles lists the built-in debate roles in arena builder order.
func Roles() []string {
	return slices.Clone(builtinRoles)
}

var builtinRoles = []string{storage.DebateRed, storage.DebateBlue, storage.DebatePurple, storage.DebateJudge}
