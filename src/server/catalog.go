package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/elee1766/gauntletfuse/src/catalog"
	"github.com/elee1766/gauntletfuse/src/storage"
)

func decode[T any](c *fiber.Ctx) (*T, error) {
	var v T
	if err := json.Unmarshal(c.Body(), &v); err != nil {
		return nil, badRequest(err)
	}
	return &v, nil
}

func decodeFields(c *fiber.Ctx) (storage.Fields, error) {
	f, err := decode[storage.Fields](c)
	if err != nil {
		return nil, err
	}
	return *f, nil
}

func (s *Server) listRoles(c *fiber.Ctx) error {
	return c.JSON(catalog.Roles())
}

func (s *Server) listProviders(c *fiber.Ctx) error {
	out, err := s.cfg.Catalog.ListProviders(c.UserContext(), userOf(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *Server) createProvider(c *fiber.Ctx) error {
	p, err := decode[storage.Provider](c)
	if err != nil {
		return err
	}
	if err := s.cfg.Catalog.CreateProvider(c.UserContext(), userOf(c), p); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *Server) getProvider(c *fiber.Ctx) error {
	p, err := s.cfg.Catalog.GetProvider(c.UserContext(), userOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) updateProvider(c *fiber.Ctx) error {
	fields, err := decodeFields(c)
	if err != nil {
		return err
	}
	p, err := s.cfg.Catalog.UpdateProvider(c.UserContext(), userOf(c), c.Params("id"), fields)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) deleteProvider(c *fiber.Ctx) error {
	if err := s.cfg.Catalog.DeleteProvider(c.UserContext(), userOf(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listPersonas(c *fiber.Ctx) error {
	out, err := s.cfg.Catalog.ListPersonas(c.UserContext(), userOf(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *Server) createPersona(c *fiber.Ctx) error {
	p, err := decode[storage.Persona](c)
	if err != nil {
		return err
	}
	if err := s.cfg.Catalog.CreatePersona(c.UserContext(), userOf(c), p); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *Server) getPersona(c *fiber.Ctx) error {
	p, err := s.cfg.Catalog.GetPersona(c.UserContext(), userOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) updatePersona(c *fiber.Ctx) error {
	fields, err := decodeFields(c)
	if err != nil {
		return err
	}
	p, err := s.cfg.Catalog.UpdatePersona(c.UserContext(), userOf(c), c.Params("id"), fields)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) deletePersona(c *fiber.Ctx) error {
	if err := s.cfg.Catalog.DeletePersona(c.UserContext(), userOf(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listParticipants(c *fiber.Ctx) error {
	out, err := s.cfg.Catalog.ListParticipants(c.UserContext(), userOf(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *Server) createParticipant(c *fiber.Ctx) error {
	p, err := decode[storage.Participant](c)
	if err != nil {
		return err
	}
	if err := s.cfg.Catalog.CreateParticipant(c.UserContext(), userOf(c), p); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *Server) getParticipant(c *fiber.Ctx) error {
	p, err := s.cfg.Catalog.GetParticipant(c.UserContext(), userOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) updateParticipant(c *fiber.Ctx) error {
	fields, err := decodeFields(c)
	if err != nil {
		return err
	}
	p, err := s.cfg.Catalog.UpdateParticipant(c.UserContext(), userOf(c), c.Params("id"), fields)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) deleteParticipant(c *fiber.Ctx) error {
	if err := s.cfg.Catalog.DeleteParticipant(c.UserContext(), userOf(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listArenas(c *fiber.Ctx) error {
	out, err := s.cfg.Catalog.ListArenas(c.UserContext(), userOf(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *Server) createArena(c *fiber.Ctx) error {
	a, err := decode[storage.Arena](c)
	if err != nil {
		return err
	}
	if err := s.cfg.Catalog.CreateArena(c.UserContext(), userOf(c), a); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (s *Server) getArena(c *fiber.Ctx) error {
	a, err := s.cfg.Catalog.GetArena(c.UserContext(), userOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (s *Server) updateArena(c *fiber.Ctx) error {
	fields, err := decodeFields(c)
	if err != nil {
		return err
	}
	a, err := s.cfg.Catalog.UpdateArena(c.UserContext(), userOf(c), c.Params("id"), fields)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (s *Server) deleteArena(c *fiber.Ctx) error {
	if err := s.cfg.Catalog.DeleteArena(c.UserContext(), userOf(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listSlots(c *fiber.Ctx) error {
	out, err := s.cfg.Catalog.ListSlots(c.UserContext(), userOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

type slotRequest struct {
	ParticipantID string `json:"participant_id"`
}

func (s *Server) setSlot(c *fiber.Ctx) error {
	req, err := decode[slotRequest](c)
	if err != nil {
		return err
	}
	if req.ParticipantID == "" {
		return &storage.ValidationError{Entity: "arena participant", Field: "participant_id", Message: "is required"}
	}
	slot, err := s.cfg.Catalog.SetSlot(c.UserContext(), userOf(c), c.Params("id"), c.Params("role"), req.ParticipantID)
	if err != nil {
		return err
	}
	return c.JSON(slot)
}

func (s *Server) removeSlot(c *fiber.Ctx) error {
	if err := s.cfg.Catalog.RemoveSlot(c.UserContext(), userOf(c), c.Params("id"), c.Params("role")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
