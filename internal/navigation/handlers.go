package navigation

import (
	"errors"
	"strings"

	"backend-barrierfree/internal/auth"
	"backend-barrierfree/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, m *Manager, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/", func(c *fiber.Ctx) error {
		var body struct {
			Start geo.Point `json:"start"`
			End   geo.Point `json:"end"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		s, err := m.Start(auth.UserID(c), body.Start, body.End)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(s)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		s, err := m.Get(auth.UserID(c), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(s)
	})

	r.Put("/:id/position", func(c *fiber.Ctx) error {
		var pos geo.Point
		if err := c.BodyParser(&pos); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		s, err := m.UpdatePosition(auth.UserID(c), c.Params("id"), pos)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(s)
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if err := m.Stop(auth.UserID(c), c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// TopicAuthorizer guards navigation topics on the websocket stream so only the
// session owner can follow it. Browsers cannot set headers on an upgrade
// request, so the access token travels in the token query parameter. Other
// topics stay public.
func TopicAuthorizer(m *Manager, validate func(token string) (string, error)) func(*fiber.Ctx, string) error {
	return func(c *fiber.Ctx, topic string) error {
		id, ok := strings.CutPrefix(topic, Topic(""))
		if !ok {
			return nil
		}
		userID, err := validate(c.Query("token"))
		if err != nil || userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "access token required")
		}
		if _, err := m.Get(userID, id); err != nil {
			return httpError(err)
		}
		return nil
	}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, geo.ErrLatitudeRange), errors.Is(err, geo.ErrLongitudeRange):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrClosed):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
