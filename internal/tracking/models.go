package tracking

import "time"

const (
	StatusActive   = "active"
	StatusFinished = "finished"
)

// Trail is the persisted record of one navigation session.
type Trail struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	TotalDistanceM float64    `json:"total_distance_m"`
	Status         string     `json:"status"`
}

type TrailPoint struct {
	ID         int64     `json:"id"`
	TrailID    string    `json:"trail_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Summary struct {
	TrailID       string  `json:"trail_id"`
	Status        string  `json:"status"`
	PointCount    int     `json:"point_count"`
	DistanceM     float64 `json:"distance_m"`
	DurationSec   int64   `json:"duration_sec"`
	AverageSpeedM float64 `json:"average_speed_mps"`
}
