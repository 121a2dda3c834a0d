package server

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"quorum/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler handles GET /api/ws, the realtime notification
// stream. The connection is registered with the hub; payloads
// published to the user's Redis channel are forwarded to every open
// socket.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			log.Printf("WebSocket: unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		if s.hub == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"notifications unavailable"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			log.Printf("WebSocket: failed to register user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

type broadcastRequest struct {
	Message string `json:"message"`
}

// BroadcastAnnouncement handles POST /api/notifications/broadcast.
// Admin only. The announcement goes out on the shared Redis channel,
// so sockets held by other API instances receive it too.
func (s *Server) BroadcastAnnouncement(c *fiber.Ctx) error {
	var req broadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c,
			models.NewValidationError("Invalid request body"))
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return models.RespondWithAppError(c,
			models.NewValidationError("announcement message is required"))
	}

	if s.notifier == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(errors.New("notifications unavailable")))
	}

	payload, _ := json.Marshal(fiber.Map{
		"type":    "announcement",
		"message": message,
	})
	if err := s.notifier.PublishBroadcast(c.Context(), string(payload)); err != nil {
		return models.RespondWithAppError(c, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "announcement broadcast",
	})
}
