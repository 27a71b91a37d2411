package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shoplens/shoplens-backend/internal/api/middleware"
	"github.com/shoplens/shoplens-backend/internal/services"
)

// CreateSession creates a new chat session
func CreateSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userContext := middleware.GetUserContext(c)
		if userContext == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not authenticated",
			})
		}

		var req struct {
			Title string `json:"title"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		session, err := svc.Orchestrator.CreateSession(c.Context(), userContext.UserID, req.Title)
		if err != nil {
			return respondServiceError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"session": session,
		})
	}
}

// GetSessions returns a page of the caller's sessions
func GetSessions(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userContext := middleware.GetUserContext(c)
		if userContext == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not authenticated",
			})
		}

		page := c.QueryInt("page", 1)
		limit := c.QueryInt("limit", 20)
		status := c.Query("status")

		sessions, total, err := svc.Orchestrator.ListSessions(c.Context(), userContext.UserID, status, page, limit)
		if err != nil {
			return respondServiceError(c, err)
		}

		pages := 0
		if limit > 0 {
			pages = (total + limit - 1) / limit
		}

		return c.JSON(fiber.Map{
			"sessions": sessions,
			"pagination": fiber.Map{
				"total": total,
				"page":  page,
				"limit": limit,
				"pages": pages,
			},
		})
	}
}

// GetSessionMessages returns a session's messages in chronological order
func GetSessionMessages(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userContext := middleware.GetUserContext(c)
		if userContext == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not authenticated",
			})
		}

		sessionID := c.Params("id")
		limit := c.QueryInt("limit", 50)

		var before time.Time
		if raw := c.Query("before"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid before cursor, expected RFC 3339 timestamp",
				})
			}
			before = parsed
		}

		messages, session, err := svc.Orchestrator.GetSessionMessages(c.Context(), userContext.UserID, sessionID, limit, before)
		if err != nil {
			return respondServiceError(c, err)
		}

		return c.JSON(fiber.Map{
			"messages": messages,
			"session": fiber.Map{
				"id":     session.ID,
				"title":  session.Title,
				"status": session.Status,
			},
		})
	}
}

// ArchiveSession archives a session; repeating the call is a no-op
func ArchiveSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userContext := middleware.GetUserContext(c)
		if userContext == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not authenticated",
			})
		}

		session, err := svc.Orchestrator.ArchiveSession(c.Context(), userContext.UserID, c.Params("id"))
		if err != nil {
			return respondServiceError(c, err)
		}

		return c.JSON(fiber.Map{
			"session": fiber.Map{
				"id":     session.ID,
				"status": session.Status,
			},
		})
	}
}
