package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"backend-barrierfree/internal/report"
	"backend-barrierfree/internal/shared/geo"
)

type esRequest struct {
	method, path, body string
}

// fakeCluster answers just enough of the Elasticsearch REST API for the store.
func fakeCluster(t *testing.T, handle func(w http.ResponseWriter, r esRequest)) (*ElasticStore, *[]esRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []esRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		req := esRequest{method: r.Method, path: r.URL.Path, body: string(raw)}
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		handle(w, req)
	}))
	t.Cleanup(srv.Close)

	store, err := NewElasticStore(srv.URL, "barrier_places")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, &seen
}

func approved() report.Report {
	return report.Report{ID: "r1", LocationName: "Station exit 3", Category: "stairs",
		AccessibilityLevel: "difficult", Lat: 37.5665, Lng: 126.978, Status: report.StatusApproved}
}

func TestIndexAndRemove(t *testing.T) {
	store, seen := fakeCluster(t, func(w http.ResponseWriter, r esRequest) {
		switch r.method {
		case http.MethodPut:
			_, _ = w.Write([]byte(`{"_index":"barrier_places","_id":"r1","_version":1,"result":"created"}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"_index":"barrier_places","_id":"r1","result":"not_found"}`))
		}
	})

	if err := store.IndexReport(context.Background(), approved()); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := store.Remove(context.Background(), "r1"); err != nil {
		t.Fatalf("remove of a missing doc should succeed: %v", err)
	}

	reqs := *seen
	if len(reqs) != 2 || reqs[0].path != "/barrier_places/_doc/r1" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
	var doc Place
	if err := json.Unmarshal([]byte(reqs[0].body), &doc); err != nil {
		t.Fatalf("decode doc: %v", err)
	}
	if doc.Name != "Station exit 3" || doc.Location.Lat != 37.5665 || doc.Location.Lon != 126.978 {
		t.Fatalf("unexpected doc %+v", doc)
	}
}

func TestRemoveSurfacesServerErrors(t *testing.T) {
	store, _ := fakeCluster(t, func(w http.ResponseWriter, _ esRequest) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"boom","reason":"boom"},"status":500}`))
	})
	if err := store.Remove(context.Background(), "r1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEnsureIndexCreatesMapping(t *testing.T) {
	store, seen := fakeCluster(t, func(w http.ResponseWriter, r esRequest) {
		switch r.method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			_, _ = w.Write([]byte(`{"acknowledged":true,"shards_acknowledged":true,"index":"barrier_places"}`))
		}
	})
	if err := store.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("ensure index: %v", err)
	}
	reqs := *seen
	if len(reqs) != 2 || reqs[1].method != http.MethodPut || !strings.Contains(reqs[1].body, "geo_point") {
		t.Fatalf("expected index creation with geo mapping, got %+v", reqs)
	}
}

func TestSearchSortsByDistance(t *testing.T) {
	store, seen := fakeCluster(t, func(w http.ResponseWriter, _ esRequest) {
		_, _ = w.Write([]byte(`{"took":1,"timed_out":false,"hits":{"total":{"value":1,"relation":"eq"},"hits":[
			{"_index":"barrier_places","_id":"r1","_score":null,
			 "_source":{"id":"r1","name":"Station exit 3","category":"stairs","accessibility_level":"difficult","location":{"lat":37.5665,"lon":126.978}},
			 "sort":[42.5]}]}}`))
	})

	results, err := store.Search(context.Background(), "station", &geo.Point{Lat: 37.566, Lng: 126.978}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "r1" || results[0].Lng != 126.978 {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].DistanceM == nil || *results[0].DistanceM != 42.5 {
		t.Fatalf("expected distance from sort value")
	}

	body := (*seen)[0].body
	for _, want := range []string{`"_geo_distance"`, `"multi_match"`, `"size":5`} {
		if !strings.Contains(body, want) {
			t.Fatalf("search body missing %s: %s", want, body)
		}
	}
}

func TestSearchWrapsClusterErrors(t *testing.T) {
	store, _ := fakeCluster(t, func(w http.ResponseWriter, _ esRequest) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"type":"cluster_block_exception","reason":"blocked"},"status":503}`))
	})

	_, err := store.Search(context.Background(), "station", nil, 5)
	if !errors.Is(err, ErrClusterUnavailable) {
		t.Fatalf("expected ErrClusterUnavailable, got %v", err)
	}
}

func TestIndexAllCountsFailures(t *testing.T) {
	store, seen := fakeCluster(t, func(w http.ResponseWriter, _ esRequest) {
		_, _ = w.Write([]byte(`{"took":3,"errors":true,"items":[
			{"index":{"_index":"barrier_places","_id":"r1","status":201,"result":"created"}},
			{"index":{"_index":"barrier_places","_id":"r2","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad"}}}]}`))
	})
	second := approved()
	second.ID = "r2"
	failed, err := store.IndexAll(context.Background(), []report.Report{approved(), second})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected one failure, got %d", failed)
	}
	if (*seen)[0].path != "/_bulk" {
		t.Fatalf("unexpected path %s", (*seen)[0].path)
	}

	if n, err := store.IndexAll(context.Background(), nil); n != 0 || err != nil {
		t.Fatalf("empty bulk should be a no-op")
	}
}
