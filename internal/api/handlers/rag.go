package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shoplens/shoplens-backend/internal/api/middleware"
	"github.com/shoplens/shoplens-backend/internal/services"
)

// AskAI answers a one-shot question against the order index
func AskAI(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userContext := middleware.GetUserContext(c)
		if userContext == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not authenticated",
			})
		}

		var req struct {
			Query string `json:"query"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		answer, matches, err := svc.Retrieval.Ask(c.Context(), req.Query)
		if err != nil {
			return respondServiceError(c, err)
		}

		return c.JSON(fiber.Map{
			"answer":  answer,
			"context": matches,
		})
	}
}
