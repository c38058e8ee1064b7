package tracking

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func TestTrailHandlers(t *testing.T) {
	svc, mock := newService(t)
	app := fiber.New()
	RegisterRoutes(app.Group("/trails"), svc, func(c *fiber.Ctx) error {
		c.Locals("user_id", "user-1")
		return c.Next()
	})

	mock.ExpectQuery(`FROM nav_trails WHERE id=\$1`).
		WithArgs("nav-1").
		WillReturnRows(pgxmock.NewRows(trailCols).AddRow("nav-1", "user-1", fixedNow.Add(-time.Minute), (*time.Time)(nil), 90.0, StatusActive))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM nav_trail_points`).
		WithArgs("nav-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/trails/nav-1/summary", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status: %v %v", resp.StatusCode, err)
	}
	var summary Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.PointCount != 3 || summary.DurationSec != 60 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	mock.ExpectQuery(`FROM nav_trails WHERE id=\$1`).
		WithArgs("other").
		WillReturnRows(pgxmock.NewRows(trailCols).AddRow("other", "user-2", fixedNow, (*time.Time)(nil), 0.0, StatusActive))
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/trails/other/points", nil))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	mock.ExpectQuery(`FROM nav_trails WHERE id=\$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(trailCols))
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/trails/missing/summary", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
