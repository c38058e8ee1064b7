package report

import (
	"context"
	"errors"
	"strconv"

	"backend-barrierfree/internal/auth"
	"backend-barrierfree/internal/shared/geo"
	"backend-barrierfree/internal/shared/validate"

	"github.com/gofiber/fiber/v2"
)

// AdminCheck reports whether a user holds the admin role.
type AdminCheck func(ctx context.Context, userID string) (bool, error)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware, optionalAuth fiber.Handler, isAdmin AdminCheck) {
	r.Get("/", func(c *fiber.Ctx) error {
		filter, err := parseListFilter(c)
		if err != nil {
			return err
		}
		reports, err := svc.ListApproved(c.Context(), filter)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(reports)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req SubmitRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		rep, err := svc.Submit(c.Context(), auth.UserID(c), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(rep)
	})

	r.Get("/mine", authMiddleware, func(c *fiber.Ctx) error {
		reports, err := svc.ListByUser(c.Context(), auth.UserID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(reports)
	})

	r.Get("/mine/stats", authMiddleware, func(c *fiber.Ctx) error {
		st, err := svc.Stats(c.Context(), auth.UserID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(st)
	})

	r.Get("/:id", optionalAuth, func(c *fiber.Ctx) error {
		rep, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		// unreviewed and rejected reports are visible to their author only
		if rep.Status != StatusApproved && rep.UserID != auth.UserID(c) {
			return fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
		}
		return c.JSON(rep)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var req EditRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		rep, err := svc.Edit(c.Context(), auth.UserID(c), c.Params("id"), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(rep)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		userID := auth.UserID(c)
		admin, err := isAdmin(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if err := svc.Delete(c.Context(), userID, c.Params("id"), admin); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// RegisterAdminRoutes expects r to be guarded by the JWT and admin middlewares.
func RegisterAdminRoutes(r fiber.Router, svc *Service) {
	r.Get("/reports", func(c *fiber.Ctx) error {
		reports, err := svc.AdminList(c.Context(), AdminFilter{
			Status: c.Query("status"),
			Level:  c.Query("level"),
			Query:  c.Query("q"),
		})
		if err != nil {
			return httpError(err)
		}
		return c.JSON(reports)
	})

	r.Post("/reports/review", func(c *fiber.Ctx) error {
		var body struct {
			IDs    []string `json:"ids"`
			Status string   `json:"status"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		outcomes, err := svc.BulkReview(c.Context(), auth.UserID(c), body.IDs, body.Status)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"results": outcomes})
	})

	r.Post("/reports/:id/review", func(c *fiber.Ctx) error {
		var body struct {
			Status string `json:"status"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		rep, err := svc.Review(c.Context(), auth.UserID(c), c.Params("id"), body.Status)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(rep)
	})
}

func httpError(err error) error {
	var vErr *validate.Error
	switch {
	case errors.As(err, &vErr):
		return fiber.NewError(fiber.StatusBadRequest, vErr.Message)
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotEditable), errors.Is(err, ErrNotPending):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNoIDs), errors.Is(err, ErrTooManyIDs):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

func parseListFilter(c *fiber.Ctx) (ListFilter, error) {
	var f ListFilter
	if c.Query("min_lat") != "" {
		vals, err := floats(c, "min_lat", "min_lng", "max_lat", "max_lng")
		if err != nil {
			return f, err
		}
		b := geo.Bounds{MinLat: vals[0], MinLng: vals[1], MaxLat: vals[2], MaxLng: vals[3]}
		if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
			return f, fiber.NewError(fiber.StatusBadRequest, "bounding box is inverted")
		}
		f.Bounds = &b
	}
	if c.Query("lat") != "" || c.Query("lng") != "" {
		vals, err := floats(c, "lat", "lng", "radius_m")
		if err != nil {
			return f, err
		}
		p := geo.Point{Lat: vals[0], Lng: vals[1]}
		if err := p.Validate(); err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if vals[2] <= 0 {
			return f, fiber.NewError(fiber.StatusBadRequest, "radius_m must be positive")
		}
		f.Near = &p
		f.RadiusM = vals[2]
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return f, fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

func floats(c *fiber.Ctx, keys ...string) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, k := range keys {
		v, err := strconv.ParseFloat(c.Query(k), 64)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, k+" must be a number")
		}
		out[i] = v
	}
	return out, nil
}
