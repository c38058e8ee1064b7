package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRouteTemplate(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/reports/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/missing/:id", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "nope") })

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/reports/:id", "200"))
	for _, id := range []string{"a", "b"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/reports/"+id, nil))
		if err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("request failed: %v", err)
		}
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/reports/:id", "200"))
	if after-before != 2 {
		t.Fatalf("expected 2 counted requests, got %v", after-before)
	}

	beforeErr := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/missing/:id", "404"))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing/x", nil))
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found")
	}
	if testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/missing/:id", "404"))-beforeErr != 1 {
		t.Fatalf("expected error status to be recorded")
	}
}
