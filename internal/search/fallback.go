package search

import (
	"context"

	"backend-barrierfree/internal/report"
	"backend-barrierfree/internal/shared/geo"
)

type ApprovedLister interface {
	SearchApproved(ctx context.Context, q string, near *geo.Point, limit int) ([]report.Report, error)
}

// DatabaseSearcher answers searches straight from postgres when no cluster is
// configured. The query orders by distance when a point is given; distances
// in the results are computed here.
type DatabaseSearcher struct {
	Reports ApprovedLister
}

func (d DatabaseSearcher) Search(ctx context.Context, q string, near *geo.Point, size int) ([]Result, error) {
	reports, err := d.Reports.SearchApproved(ctx, q, near, size)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(reports))
	for _, r := range reports {
		res := Result{
			ID:                 r.ID,
			Name:               r.LocationName,
			Category:           r.Category,
			AccessibilityLevel: r.AccessibilityLevel,
			Lat:                r.Lat,
			Lng:                r.Lng,
		}
		if near != nil {
			dist := geo.Haversine(*near, r.Point())
			res.DistanceM = &dist
		}
		results = append(results, res)
	}
	return results, nil
}
