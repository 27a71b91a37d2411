package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shoplens/shoplens-backend/internal/services"
)

// respondServiceError maps service-layer failures onto HTTP statuses.
// Upstream and persistence failures collapse to a generic 500; detail goes
// to the log, not the wire.
func respondServiceError(c *fiber.Ctx, err error) error {
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": vErr.Msg,
		})
	}
	if errors.Is(err, services.ErrSessionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found or access denied",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
