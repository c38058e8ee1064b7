// Package search indexes approved barrier reports as places and answers
// text + proximity lookups over them.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backend-barrierfree/internal/report"
	"backend-barrierfree/internal/shared/geo"

	"github.com/olivere/elastic/v7"
)

const placeMapping = `{
	"mappings": {
		"properties": {
			"name":                {"type": "text"},
			"category":            {"type": "keyword"},
			"accessibility_level": {"type": "keyword"},
			"details":             {"type": "text"},
			"location":            {"type": "geo_point"}
		}
	}
}`

// ErrClusterUnavailable wraps failures talking to elasticsearch.
var ErrClusterUnavailable = errors.New("search cluster unavailable")

type Place struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Category           string           `json:"category"`
	AccessibilityLevel string           `json:"accessibility_level"`
	Details            string           `json:"details,omitempty"`
	Location           elastic.GeoPoint `json:"location"`
}

func placeFromReport(r report.Report) Place {
	return Place{
		ID:                 r.ID,
		Name:               r.LocationName,
		Category:           r.Category,
		AccessibilityLevel: r.AccessibilityLevel,
		Details:            r.Details,
		Location:           elastic.GeoPoint{Lat: r.Lat, Lon: r.Lng},
	}
}

// Result is a search hit. DistanceM is set when the query had a reference point.
type Result struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Category           string   `json:"category"`
	AccessibilityLevel string   `json:"accessibility_level"`
	Lat                float64  `json:"lat"`
	Lng                float64  `json:"lng"`
	DistanceM          *float64 `json:"distance_m,omitempty"`
}

type ElasticStore struct {
	client *elastic.Client
	index  string
}

// NewElasticStore connects without sniffing so a single-node or proxied
// cluster address works as given.
func NewElasticStore(url, index string) (*ElasticStore, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, fmt.Errorf("elastic client: %w", err)
	}
	return &ElasticStore{client: client, index: index}, nil
}

func (es *ElasticStore) EnsureIndex(ctx context.Context) error {
	exists, err := es.client.IndexExists(es.index).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = es.client.CreateIndex(es.index).BodyString(placeMapping).Do(ctx)
	return err
}

func (es *ElasticStore) IndexReport(ctx context.Context, r report.Report) error {
	_, err := es.client.Index().Index(es.index).Id(r.ID).BodyJson(placeFromReport(r)).Do(ctx)
	return err
}

// Remove is idempotent; a missing document is not an error.
func (es *ElasticStore) Remove(ctx context.Context, id string) error {
	_, err := es.client.Delete().Index(es.index).Id(id).Do(ctx)
	if err != nil && !elastic.IsNotFound(err) {
		return err
	}
	return nil
}

// IndexAll bulk-loads reports and returns how many items the cluster rejected.
func (es *ElasticStore) IndexAll(ctx context.Context, reports []report.Report) (int, error) {
	if len(reports) == 0 {
		return 0, nil
	}
	bulk := es.client.Bulk()
	for _, r := range reports {
		bulk = bulk.Add(elastic.NewBulkIndexRequest().Index(es.index).Id(r.ID).Doc(placeFromReport(r)))
	}
	resp, err := bulk.Do(ctx)
	if err != nil {
		return 0, err
	}
	return len(resp.Failed()), nil
}

func (es *ElasticStore) Search(ctx context.Context, q string, near *geo.Point, size int) ([]Result, error) {
	var query elastic.Query = elastic.NewMatchAllQuery()
	if q != "" {
		query = elastic.NewMultiMatchQuery(q, "name^3", "category", "details").Fuzziness("AUTO")
	}
	svc := es.client.Search().Index(es.index).Query(query).Size(size)
	if near != nil {
		svc = svc.SortBy(elastic.NewGeoDistanceSort("location").
			Point(near.Lat, near.Lng).
			Asc().
			Unit("m").
			DistanceType("arc").
			IgnoreUnmapped(true))
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClusterUnavailable, err)
	}

	results := make([]Result, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var p Place
		if err := json.Unmarshal(hit.Source, &p); err != nil {
			continue
		}
		r := Result{
			ID:                 hit.Id,
			Name:               p.Name,
			Category:           p.Category,
			AccessibilityLevel: p.AccessibilityLevel,
			Lat:                p.Location.Lat,
			Lng:                p.Location.Lon,
		}
		if near != nil && len(hit.Sort) > 0 {
			if d, ok := hit.Sort[0].(float64); ok {
				r.DistanceM = &d
			}
		}
		results = append(results, r)
	}
	return results, nil
}
