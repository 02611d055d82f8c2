// Package server exposes the catalog and runs over a JSON HTTP API, plus a
// websocket that streams run progress.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/elee1766/gauntletfuse/src/auth"
	"github.com/elee1766/gauntletfuse/src/catalog"
	"github.com/elee1766/gauntletfuse/src/export"
	"github.com/elee1766/gauntletfuse/src/orchestrator"
)

// ExportFunc builds the export document of a run the user owns.
type ExportFunc func(ctx context.Context, user auth.UserID, runID string) (*export.Document, error)

// Config holds the services the server routes to.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Catalog      *catalog.Service
	Auth         *auth.Authenticator
	Export       ExportFunc
	Logger       *slog.Logger
	// BodyLimit caps request bodies in bytes; 0 keeps fiber's default
	BodyLimit int
}

// Server is the HTTP API.
type Server struct {
	cfg    Config
	app    *fiber.App
	logger *slog.Logger
}

// New creates a Server with every route registered.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: cfg.Logger.With("component", "server")}
	s.app = fiber.New(fiber.Config{
		AppName:               "gauntlet",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.logRequests)
	s.routes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.app.Get("/api/roles", s.listRoles)
	s.app.Get("/api/schema/settings", s.settingsSchema)
	s.app.Get("/api/schema/run-request", s.runRequestSchema)
	s.app.Get("/api/schema/export", s.exportSchema)

	api := s.app.Group("/api", s.requireUser)

	api.Get("/providers", s.listProviders)
	api.Post("/providers", s.createProvider)
	api.Get("/providers/:id", s.getProvider)
	api.Patch("/providers/:id", s.updateProvider)
	api.Delete("/providers/:id", s.deleteProvider)

	api.Get("/personas", s.listPersonas)
	api.Post("/personas", s.createPersona)
	api.Get("/personas/:id", s.getPersona)
	api.Patch("/personas/:id", s.updatePersona)
	api.Delete("/personas/:id", s.deletePersona)

	api.Get("/participants", s.listParticipants)
	api.Post("/participants", s.createParticipant)
	api.Get("/participants/:id", s.getParticipant)
	api.Patch("/participants/:id", s.updateParticipant)
	api.Delete("/participants/:id", s.deleteParticipant)

	api.Get("/arenas", s.listArenas)
	api.Post("/arenas", s.createArena)
	api.Get("/arenas/:id", s.getArena)
	api.Patch("/arenas/:id", s.updateArena)
	api.Delete("/arenas/:id", s.deleteArena)
	api.Get("/arenas/:id/slots", s.listSlots)
	api.Put("/arenas/:id/slots/:role", s.setSlot)
	api.Delete("/arenas/:id/slots/:role", s.removeSlot)
	api.Get("/arenas/:id/runs", s.listRuns)

	api.Post("/runs", s.createRun)
	api.Get("/runs/:id", s.getRunState)
	api.Post("/runs/:id/start", s.startRun)
	api.Post("/runs/:id/cancel", s.cancelRun)
	api.Get("/runs/:id/export", s.exportRun)
	api.Delete("/runs/:id", s.deleteRun)

	s.app.Get("/ws/runs/:id", s.requireUser, s.upgradeRun, websocket.New(s.streamRun))
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
	}
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration", time.Since(start),
	)
	return err
}
