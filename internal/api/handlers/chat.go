package handlers

import (
	"bufio"
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/shoplens/shoplens-backend/internal/api/middleware"
	"github.com/shoplens/shoplens-backend/internal/models"
	"github.com/shoplens/shoplens-backend/internal/services"
	"github.com/shoplens/shoplens-backend/internal/streaming"
)

type sendMessageRequest struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

// SendMessage runs the refinement loop for one message and streams its
// events over SSE. Validation and ownership failures surface as plain JSON
// errors; once streaming starts, failures arrive as error events.
func SendMessage(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userContext := middleware.GetUserContext(c)
		if userContext == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not authenticated",
			})
		}

		var req sendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		// The run outlives the handler; it is cancelled only when the
		// client goes away, which the stream writer detects on flush.
		runCtx, cancel := context.WithCancel(context.Background())

		events, err := svc.Orchestrator.SendMessage(runCtx, userContext.UserID, req.SessionID, req.Content)
		if err != nil {
			cancel()
			return respondServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer cancel()
			clientGone := false
			for ev := range events {
				if clientGone {
					// Keep draining so the run never blocks on emit;
					// its persistence finishes regardless of delivery.
					continue
				}
				if writeErr := streaming.WriteSSE(w, ev); writeErr != nil {
					clientGone = true
					cancel()
				}
			}
		})

		return nil
	}
}

// StreamMessageWS is the WebSocket variant of SendMessage: the client
// sends one request frame, the server streams the same event protocol back
// as JSON frames and closes.
func StreamMessageWS(svc *services.Services) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		userContext, _ := c.Locals("user_context").(*models.UserContext)
		if userContext == nil {
			_ = streaming.WriteWS(c, streaming.Event{
				Name: streaming.EventError,
				Data: streaming.ErrorPayload{Error: "Not authenticated"},
			})
			return
		}

		var req sendMessageRequest
		if err := c.ReadJSON(&req); err != nil {
			_ = streaming.WriteWS(c, streaming.Event{
				Name: streaming.EventError,
				Data: streaming.ErrorPayload{Error: "Invalid request", Details: err.Error()},
			})
			return
		}

		runCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := svc.Orchestrator.SendMessage(runCtx, userContext.UserID, req.SessionID, req.Content)
		if err != nil {
			_ = streaming.WriteWS(c, streaming.Event{
				Name: streaming.EventError,
				Data: streaming.ErrorPayload{Error: "Failed to process message", Details: err.Error()},
			})
			return
		}

		clientGone := false
		for ev := range events {
			if clientGone {
				continue
			}
			if writeErr := streaming.WriteWS(c, ev); writeErr != nil {
				clientGone = true
				cancel()
			}
		}
	}
}
