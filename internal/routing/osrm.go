package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"backend-barrierfree/internal/shared/geo"
)

// Provider computes a path between two points for a transport mode.
type Provider interface {
	Route(ctx context.Context, mode Mode, from, to geo.Point) (Path, error)
}

const defaultTransitSpeedMps = 6.0

// OSRMClient routes walk and car trips against an OSRM HTTP server. OSRM has
// no transit profile, so transit reuses the foot geometry with a flat-speed ETA.
type OSRMClient struct {
	Endpoint        string
	Client          *http.Client
	TransitSpeedMps float64
}

func NewOSRMClient(endpoint string, transitSpeedMps float64) *OSRMClient {
	if transitSpeedMps <= 0 {
		transitSpeedMps = defaultTransitSpeedMps
	}
	return &OSRMClient{
		Endpoint:        strings.TrimRight(endpoint, "/"),
		Client:          &http.Client{Timeout: 5 * time.Second},
		TransitSpeedMps: transitSpeedMps,
	}
}

func profile(mode Mode) string {
	if mode == ModeCar {
		return "driving"
	}
	return "foot"
}

func (o *OSRMClient) Route(ctx context.Context, mode Mode, from, to geo.Point) (Path, error) {
	// /route/v1/{profile}/{lon1},{lat1};{lon2},{lat2}
	url := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		o.Endpoint, profile(mode), from.Lng, from.Lat, to.Lng, to.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Path{}, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return Path{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	var out struct {
		Code   string `json:"code"`
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Path{}, fmt.Errorf("%w: decode: %v", ErrProvider, err)
	}
	if out.Code == "NoRoute" || (out.Code == "Ok" && len(out.Routes) == 0) {
		return Path{}, ErrNoRoute
	}
	if out.Code != "Ok" {
		return Path{}, fmt.Errorf("%w: osrm code %q (http %d)", ErrProvider, out.Code, resp.StatusCode)
	}

	r := out.Routes[0]
	path := Path{Mode: mode, DistanceM: r.Distance, DurationS: r.Duration}
	path.Points = make([]geo.Point, 0, len(r.Geometry.Coordinates))
	for _, c := range r.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		path.Points = append(path.Points, geo.Point{Lat: c[1], Lng: c[0]})
	}
	if mode == ModeTransit {
		path.DurationS = r.Distance / o.TransitSpeedMps
	}
	return path, nil
}
