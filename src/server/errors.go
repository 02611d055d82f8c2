package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/elee1766/gauntletfuse/src/auth"
	"github.com/elee1766/gauntletfuse/src/orchestrator"
	"github.com/elee1766/gauntletfuse/src/storage"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	var ve *storage.ValidationError
	var it *orchestrator.InvalidTransitionError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve):
		return fiber.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return fiber.StatusNotFound
	case errors.As(err, &it),
		errors.Is(err, storage.ErrConflict),
		errors.Is(err, storage.ErrRunLocked),
		errors.Is(err, storage.ErrRunActive):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	body := errorResponse{Error: err.Error()}
	var ve *storage.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		body.Error = "internal error"
	}
	return c.Status(code).JSON(body)
}

// badRequest wraps a decode failure as a 400.
func badRequest(err error) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
}
