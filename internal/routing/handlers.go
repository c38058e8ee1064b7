package routing

import (
	"errors"

	"backend-barrierfree/internal/auth"
	"backend-barrierfree/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

// ClientIDHeader keys anonymous callers for request superseding.
const ClientIDHeader = "X-Client-ID"

func RegisterRoutes(r fiber.Router, planner *Planner, optionalAuth fiber.Handler) {
	r.Post("/plan", optionalAuth, func(c *fiber.Ctx) error {
		var req PlanRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		plan, err := planner.Plan(c.Context(), callerKey(c), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(plan)
	})
}

func callerKey(c *fiber.Ctx) string {
	if id := auth.UserID(c); id != "" {
		return "user:" + id
	}
	if id := c.Get(ClientIDHeader); id != "" {
		return "client:" + id
	}
	return ""
}

func httpError(err error) error {
	switch {
	case errors.Is(err, geo.ErrLatitudeRange), errors.Is(err, geo.ErrLongitudeRange), errors.Is(err, ErrInvalidMode):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSuperseded):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrNoRoute):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrProvider):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
