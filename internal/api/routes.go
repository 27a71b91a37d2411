package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	authpkg "github.com/shoplens/shoplens-backend/internal/auth"
	"github.com/shoplens/shoplens-backend/internal/api/handlers"
	"github.com/shoplens/shoplens-backend/internal/api/middleware"
	"github.com/shoplens/shoplens-backend/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services, authService *authpkg.Service) {
	api := app.Group("/api/v1")

	// Public routes
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "shoplens-backend",
		})
	})

	auth := api.Group("/auth")
	auth.Post("/signup", handlers.Signup(authService))
	auth.Post("/login", handlers.Login(authService))

	// Protected routes
	protected := api.Group("", middleware.AuthRequired(authService))

	protected.Get("/auth/me", handlers.CurrentUser())

	// Session management
	protected.Post("/sessions", handlers.CreateSession(svc))
	protected.Get("/sessions", handlers.GetSessions(svc))
	protected.Get("/sessions/:id/messages", handlers.GetSessionMessages(svc))
	protected.Patch("/sessions/:id/archive", handlers.ArchiveSession(svc))

	// Message streaming (SSE) and one-shot RAG
	protected.Post("/messages", handlers.SendMessage(svc))
	protected.Post("/ask", handlers.AskAI(svc))

	// WebSocket variant of the message stream. The upgrade middleware
	// resolves the token (query param or bearer header) into the same user
	// context the HTTP routes use.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Query("token")
		if token == "" {
			token = authpkg.ExtractTokenFromBearer(c.Get("Authorization"))
		}
		if token == "" {
			return fiber.ErrUnauthorized
		}

		userContext, err := authService.Validate(c.Context(), token)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals("user_context", userContext)
		return c.Next()
	})
	app.Get("/ws/messages", websocket.New(handlers.StreamMessageWS(svc)))
}
