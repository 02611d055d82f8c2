package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/elee1766/gauntletfuse/src/catalog"
	"github.com/elee1766/gauntletfuse/src/export"
	"github.com/elee1766/gauntletfuse/src/orchestrator"
	"github.com/elee1766/gauntletfuse/src/schema"
)

type createRunRequest struct {
	ArenaID      string                         `json:"arena_id"`
	InputPrompt  string                         `json:"input_prompt"`
	Participants []orchestrator.ParticipantSpec `json:"participants"`
	// Start launches the run in the background once created
	Start bool `json:"start"`
}

func (s *Server) createRun(c *fiber.Ctx) error {
	req, err := decode[createRunRequest](c)
	if err != nil {
		return err
	}
	ctx, user := c.UserContext(), userOf(c)
	run, err := s.cfg.Orchestrator.CreateRun(ctx, user, req.ArenaID, req.InputPrompt, req.Participants)
	if err != nil {
		return err
	}
	if req.Start {
		if err := s.cfg.Orchestrator.Launch(ctx, user, run.ID); err != nil {
			return err
		}
	}
	return c.Status(fiber.StatusCreated).JSON(run)
}

func (s *Server) startRun(c *fiber.Ctx) error {
	if err := s.cfg.Orchestrator.Launch(c.UserContext(), userOf(c), c.Params("id")); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"run_id": c.Params("id")})
}

func (s *Server) getRunState(c *fiber.Ctx) error {
	st, err := s.cfg.Orchestrator.GetRunState(c.UserContext(), userOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	runs, err := s.cfg.Orchestrator.ListRuns(c.UserContext(), userOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(runs)
}

// cancelRun fails a pending run at once. A running run is flagged and stops
// at its next round boundary, so the response is 202 in both cases.
func (s *Server) cancelRun(c *fiber.Ctx) error {
	ctx, user, id := c.UserContext(), userOf(c), c.Params("id")
	if err := s.cfg.Orchestrator.CancelRun(ctx, user, id); err != nil {
		return err
	}
	st, err := s.cfg.Orchestrator.GetRunState(ctx, user, id)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(st.Run)
}

func (s *Server) deleteRun(c *fiber.Ctx) error {
	if err := s.cfg.Catalog.DeleteRun(c.UserContext(), userOf(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) exportRun(c *fiber.Ctx) error {
	if s.cfg.Export == nil {
		return fiber.ErrNotImplemented
	}
	doc, err := s.cfg.Export(c.UserContext(), userOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (s *Server) settingsSchema(c *fiber.Ctx) error {
	data, err := schema.Marshal(schema.Settings())
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

func (s *Server) runRequestSchema(c *fiber.Ctx) error {
	data, err := schema.Marshal(schema.RunRequest(catalog.Roles()))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

func (s *Server) exportSchema(c *fiber.Ctx) error {
	data, err := export.Schema()
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}
