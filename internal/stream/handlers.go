package stream

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const pingInterval = 30 * time.Second

// SnapshotFunc returns the current encoded state of a session, sent to a
// client as soon as it connects.
type SnapshotFunc func(sessionID string) ([]byte, bool)

func RegisterRoutes(r fiber.Router, hub *Hub, snapshot SnapshotFunc) {
	r.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})

	r.Get("/ws/:sessionID", websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionID")
		client := hub.Register(sessionID)
		defer hub.Unregister(client)

		if snapshot != nil {
			if payload, ok := snapshot(sessionID); ok {
				client.Send <- payload
			}
		}

		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case msg, ok := <-client.Send:
					if !ok {
						return
					}
					if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
						hub.logger.Debug("websocket write failed", "session_id", sessionID, "error", err)
						return
					}
				case <-ticker.C:
					if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
						return
					}
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		close(stop)
		<-done
	}))
}
