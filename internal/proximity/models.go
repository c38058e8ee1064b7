package proximity

import (
	"fmt"

	"backend-barrierfree/internal/shared/geo"
)

type Severity string

const (
	SeveritySafe    Severity = "safe"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

func (s Severity) rank() int {
	switch s {
	case SeverityDanger:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// SeverityForLevel maps a report accessibility level onto a route severity.
func SeverityForLevel(level string) (Severity, error) {
	switch level {
	case "good":
		return SeveritySafe, nil
	case "moderate":
		return SeverityWarning, nil
	case "difficult":
		return SeverityDanger, nil
	}
	return "", fmt.Errorf("unknown accessibility level %q", level)
}

// Barrier is the scorer's view of an approved report.
type Barrier struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Point    geo.Point `json:"point"`
	Severity Severity  `json:"severity"`
}

// PointMatch is the classification of a single route point.
type PointMatch struct {
	Severity  Severity `json:"severity"`
	BarrierID string   `json:"barrier_id,omitempty"`
	DistanceM float64  `json:"distance_m,omitempty"`
}

type Segment struct {
	Severity   Severity    `json:"severity"`
	Points     []geo.Point `json:"points"`
	StartIndex int         `json:"start_index"`
	EndIndex   int         `json:"end_index"`
}

type Summary struct {
	SafePct        int       `json:"safe_pct"`
	WarningPct     int       `json:"warning_pct"`
	DangerPct      int       `json:"danger_pct"`
	NearbyBarriers []Barrier `json:"nearby_barriers"`
}

// Arrow is a direction marker placed on a route point.
type Arrow struct {
	Point   geo.Point `json:"point"`
	Bearing float64   `json:"bearing"`
}
