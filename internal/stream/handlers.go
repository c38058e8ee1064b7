package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Authorizer decides whether the upgrade request may subscribe to topic.
// A non-nil error is returned to the client before the upgrade.
type Authorizer func(c *fiber.Ctx, topic string) error

// RegisterRoutes mounts the websocket stream. A nil authorize leaves every
// topic open.
func RegisterRoutes(r fiber.Router, hub *Hub, authorize Authorizer) {
	r.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	guard := func(c *fiber.Ctx) error {
		if authorize != nil {
			if err := authorize(c, c.Params("topic")); err != nil {
				return err
			}
		}
		return c.Next()
	}

	r.Get("/ws/:topic", guard, websocket.New(func(c *websocket.Conn) {
		client := hub.Register(c.Params("topic"))
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		// clients only listen; reads detect the close
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))
}
