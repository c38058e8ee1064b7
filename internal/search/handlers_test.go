package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"backend-barrierfree/internal/report"
	"backend-barrierfree/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

type stubLister struct {
	reports []report.Report
	err     error
	limit   int
	near    *geo.Point
}

func (s *stubLister) SearchApproved(_ context.Context, _ string, near *geo.Point, limit int) ([]report.Report, error) {
	s.limit = limit
	s.near = near
	return s.reports, s.err
}

func TestDatabaseSearcherPassesPointToQuery(t *testing.T) {
	near := approved()
	near.ID = "near"
	far := approved()
	far.ID, far.Lat = "far", 37.60
	lister := &stubLister{reports: []report.Report{near, far}}
	searcher := DatabaseSearcher{Reports: lister}

	point := &geo.Point{Lat: 37.5665, Lng: 126.978}
	results, err := searcher.Search(context.Background(), "", point, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if lister.near != point {
		t.Fatalf("expected the reference point to reach the query")
	}
	if len(results) != 2 || results[0].ID != "near" || *results[0].DistanceM != 0 || *results[1].DistanceM <= 0 {
		t.Fatalf("unexpected results %+v", results)
	}

	results, _ = searcher.Search(context.Background(), "station", nil, 10)
	if lister.near != nil || results[0].DistanceM != nil {
		t.Fatalf("without a point no distance is reported")
	}
}

type failingSearcher struct{ err error }

func (f failingSearcher) Search(context.Context, string, *geo.Point, int) ([]Result, error) {
	return nil, f.err
}

func TestPlacesHandlerClusterErrors(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/search"), failingSearcher{err: fmt.Errorf("%w: timeout", ErrClusterUnavailable)})

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/search/places?q=station", nil))
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestPlacesHandler(t *testing.T) {
	lister := &stubLister{reports: []report.Report{approved()}}
	app := fiber.New()
	RegisterRoutes(app.Group("/search"), DatabaseSearcher{Reports: lister})

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/search/places?q=station&lat=37.5665&lng=126.978&size=500", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var results []Result
	_ = json.NewDecoder(resp.Body).Decode(&results)
	if len(results) != 1 || lister.limit != maxSize {
		t.Fatalf("unexpected results %+v (limit %d)", results, lister.limit)
	}

	for _, path := range []string{
		"/search/places",
		"/search/places?q=a&lat=abc&lng=1",
		"/search/places?lat=91&lng=1",
		"/search/places?q=a&size=0",
	} {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, resp.StatusCode)
		}
	}

	lister.err = errors.New("pq: relation does not exist")
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/search/places?q=station", nil))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(raw), "relation") {
		t.Fatalf("database error text leaked: %s", raw)
	}
}
