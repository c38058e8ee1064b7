// Package geo holds the great-circle helpers shared by the scorer, routing and
// report packages.
package geo

import (
	"errors"
	"math"
)

const EarthRadiusM = 6371000.0

var (
	ErrLatitudeRange  = errors.New("latitude must be between -90 and 90")
	ErrLongitudeRange = errors.New("longitude must be between -180 and 180")
)

// Point is an immutable WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return ErrLatitudeRange
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return ErrLongitudeRange
	}
	return nil
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// Haversine distance in meters
func Haversine(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial forward azimuth from a to b in degrees, in [0,360).
func Bearing(a, b Point) float64 {
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLng := toRad(b.Lng - a.Lng)
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Mod(toDeg(math.Atan2(y, x))+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Bounds is an axis-aligned lat/lng box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// BoundsOf returns the box around pts grown by padM meters on every side.
func BoundsOf(pts []Point, padM float64) Bounds {
	if len(pts) == 0 {
		return Bounds{}
	}
	b := Bounds{MinLat: pts[0].Lat, MaxLat: pts[0].Lat, MinLng: pts[0].Lng, MaxLng: pts[0].Lng}
	for _, p := range pts[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
	}
	dLat := toDeg(padM / EarthRadiusM)
	maxAbsLat := math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat))
	cosLat := math.Max(math.Cos(toRad(maxAbsLat)), 0.01)
	dLng := dLat / cosLat

	b.MinLat = math.Max(b.MinLat-dLat, -90)
	b.MaxLat = math.Min(b.MaxLat+dLat, 90)
	b.MinLng = math.Max(b.MinLng-dLng, -180)
	b.MaxLng = math.Min(b.MaxLng+dLng, 180)
	return b
}

func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}
