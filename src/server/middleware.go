package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/elee1766/gauntletfuse/src/auth"
)

const userKey = "user"

// requireUser resolves the bearer token to a user. Browsers cannot set
// headers on websocket upgrades, so a token query parameter is also read.
func (s *Server) requireUser(c *fiber.Ctx) error {
	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		token = c.Query("token")
	}
	user, err := s.cfg.Auth.CurrentUser(c.UserContext(), token)
	if err != nil {
		return err
	}
	c.Locals(userKey, user)
	return c.Next()
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// userOf returns the user requireUser stored on the request.
func userOf(c *fiber.Ctx) auth.UserID {
	user, _ := c.Locals(userKey).(auth.UserID)
	return user
}
