package stream

import (
	"context"

	"backend-travelplanner/internal/auth"
	"backend-travelplanner/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// AuthorizeFunc decides whether userID may watch tripID.
type AuthorizeFunc func(ctx context.Context, userID, tripID string) error

func RegisterRoutes(r fiber.Router, hub *Hub, authMiddleware fiber.Handler, authorize AuthorizeFunc) {
	r.Get("/trips/:tripID", authMiddleware, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		session, err := auth.RequireSession(c)
		if err != nil {
			return apperr.HTTP(err)
		}
		if err := authorize(c.UserContext(), session.UserID, c.Params("tripID")); err != nil {
			return apperr.HTTP(err)
		}
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		client := hub.Register(c.Params("tripID"))
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))
}
