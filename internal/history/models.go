package history

import "time"

// Entry is one planned trip. Entries are append-only; owners may delete them.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	StartName string    `json:"start_name"`
	StartLat  float64   `json:"start_lat"`
	StartLng  float64   `json:"start_lng"`
	EndName   string    `json:"end_name"`
	EndLat    float64   `json:"end_lat"`
	EndLng    float64   `json:"end_lng"`
	DistanceM float64   `json:"distance_m"`
	DurationS float64   `json:"duration_s"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateRequest struct {
	StartName string  `json:"start_name" validate:"required,max=200"`
	StartLat  float64 `json:"start_lat" validate:"gte=-90,lte=90"`
	StartLng  float64 `json:"start_lng" validate:"gte=-180,lte=180"`
	EndName   string  `json:"end_name" validate:"required,max=200"`
	EndLat    float64 `json:"end_lat" validate:"gte=-90,lte=90"`
	EndLng    float64 `json:"end_lng" validate:"gte=-180,lte=180"`
	DistanceM float64 `json:"distance_m" validate:"gte=0"`
	DurationS float64 `json:"duration_s" validate:"gte=0"`
}
