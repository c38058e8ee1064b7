package report

import (
	"time"

	"backend-barrierfree/internal/proximity"
	"backend-barrierfree/internal/shared/geo"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

type Report struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	LocationName       string     `json:"location_name"`
	Lat                float64    `json:"lat"`
	Lng                float64    `json:"lng"`
	Category           string     `json:"category"`
	AccessibilityLevel string     `json:"accessibility_level"`
	Details            string     `json:"details,omitempty"`
	PhotoURLs          []string   `json:"photo_urls"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	ReviewedAt         *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy         *string    `json:"reviewed_by,omitempty"`
}

func (r Report) Point() geo.Point { return geo.Point{Lat: r.Lat, Lng: r.Lng} }

// Barrier converts an approved report into the scorer's representation.
func (r Report) Barrier() (proximity.Barrier, error) {
	sev, err := proximity.SeverityForLevel(r.AccessibilityLevel)
	if err != nil {
		return proximity.Barrier{}, err
	}
	return proximity.Barrier{ID: r.ID, Name: r.LocationName, Point: r.Point(), Severity: sev}, nil
}

type SubmitRequest struct {
	LocationName       string   `json:"location_name" validate:"required,max=200"`
	Lat                float64  `json:"lat" validate:"gte=-90,lte=90"`
	Lng                float64  `json:"lng" validate:"gte=-180,lte=180"`
	Category           string   `json:"category" validate:"required,oneof=ramp elevator curb stairs parking restroom entrance other"`
	AccessibilityLevel string   `json:"accessibility_level" validate:"required,oneof=good moderate difficult"`
	Details            string   `json:"details" validate:"max=2000"`
	PhotoURLs          []string `json:"photo_urls" validate:"max=5,dive,url"`
}

// EditRequest carries the owner-editable fields; empty values keep the stored ones.
type EditRequest struct {
	Category           string   `json:"category" validate:"omitempty,oneof=ramp elevator curb stairs parking restroom entrance other"`
	AccessibilityLevel string   `json:"accessibility_level" validate:"omitempty,oneof=good moderate difficult"`
	Details            *string  `json:"details" validate:"omitempty,max=2000"`
	PhotoURLs          []string `json:"photo_urls" validate:"omitempty,max=5,dive,url"`
}

type ListFilter struct {
	Bounds  *geo.Bounds
	Near    *geo.Point
	RadiusM float64
	Limit   int
}

type AdminFilter struct {
	Status string
	Level  string
	Query  string
}

type Stats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

type ReviewOutcome struct {
	ID      string `json:"id"`
	Updated bool   `json:"updated"`
	Reason  string `json:"reason,omitempty"`
}
