package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/elee1766/gauntletfuse/src/auth"
	"github.com/elee1766/gauntletfuse/src/orchestrator"
)

// stateFrame is the first frame on a run stream
type stateFrame struct {
	Type  string                 `json:"type"`
	State *orchestrator.RunState `json:"state"`
}

// upgradeRun checks ownership before switching protocols, so a refused
// client gets a normal HTTP error.
func (s *Server) upgradeRun(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if s.cfg.Orchestrator.Events() == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "run events are disabled")
	}
	if _, err := s.cfg.Orchestrator.GetRunState(c.UserContext(), userOf(c), c.Params("id")); err != nil {
		return err
	}
	return c.Next()
}

// streamRun sends the run's current state, then every event until the run
// reaches a terminal status or the client goes away.
func (s *Server) streamRun(conn *websocket.Conn) {
	defer conn.Close()

	// conn.Params holds copies; c.Params strings die with the request
	runID := conn.Params("id")
	user, _ := conn.Locals(userKey).(auth.UserID)
	log := s.logger.With("run_id", runID)

	// subscribe before reading state so no event between the two is lost
	events, unsubscribe := s.cfg.Orchestrator.Events().Subscribe(runID)
	defer unsubscribe()

	st, err := s.cfg.Orchestrator.GetRunState(context.Background(), user, runID)
	if err != nil {
		log.Warn("failed to load run for stream", "error", err)
		return
	}
	if err := conn.WriteJSON(stateFrame{Type: "state", State: st}); err != nil {
		return
	}
	if st.Run.Status.Terminal() {
		return
	}

	// the read loop notices the client closing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("stream write failed", "error", err)
				return
			}
			if ev.Terminal() {
				return
			}
		}
	}
}
