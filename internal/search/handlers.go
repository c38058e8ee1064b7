package search

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"backend-barrierfree/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultSize = 10
	maxSize     = 50
)

type Searcher interface {
	Search(ctx context.Context, q string, near *geo.Point, size int) ([]Result, error)
}

func RegisterRoutes(r fiber.Router, s Searcher) {
	r.Get("/places", func(c *fiber.Ctx) error {
		q := strings.TrimSpace(c.Query("q"))
		if len(q) > 200 {
			return fiber.NewError(fiber.StatusBadRequest, "q must be at most 200 characters")
		}

		var near *geo.Point
		if c.Query("lat") != "" || c.Query("lng") != "" {
			lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
			lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
			if errLat != nil || errLng != nil {
				return fiber.NewError(fiber.StatusBadRequest, "lat and lng must both be numbers")
			}
			p := geo.Point{Lat: lat, Lng: lng}
			if err := p.Validate(); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			near = &p
		}
		if q == "" && near == nil {
			return fiber.NewError(fiber.StatusBadRequest, "q or lat/lng required")
		}

		size := defaultSize
		if raw := c.Query("size"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "size must be a positive integer")
			}
			size = min(n, maxSize)
		}

		results, err := s.Search(c.Context(), q, near, size)
		if errors.Is(err, ErrClusterUnavailable) {
			return fiber.NewError(fiber.StatusBadGateway, ErrClusterUnavailable.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "search failed")
		}
		return c.JSON(results)
	})
}
