package routing

import (
	"fmt"

	"backend-barrierfree/internal/proximity"
	"backend-barrierfree/internal/shared/geo"
)

type Mode string

const (
	ModeWalk    Mode = "walk"
	ModeCar     Mode = "car"
	ModeTransit Mode = "transit"
)

var AllModes = []Mode{ModeWalk, ModeCar, ModeTransit}

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeWalk, ModeCar, ModeTransit:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Path is the raw geometry a provider returns for one mode.
type Path struct {
	Mode      Mode        `json:"mode"`
	Points    []geo.Point `json:"points"`
	DistanceM float64     `json:"distance_m"`
	DurationS float64     `json:"duration_s"`
}

type PlanRequest struct {
	Start geo.Point `json:"start"`
	End   geo.Point `json:"end"`
	Modes []Mode    `json:"modes"`
}

// Option is one scored route alternative.
type Option struct {
	Mode      Mode                `json:"mode"`
	DistanceM float64             `json:"distance_m"`
	DurationS float64             `json:"duration_s"`
	Points    []geo.Point         `json:"points"`
	Segments  []proximity.Segment `json:"segments"`
	Arrows    []proximity.Arrow   `json:"arrows"`
	proximity.Summary
}

type Plan struct {
	Generation uint64   `json:"generation"`
	Options    []Option `json:"options"`
	// Unavailable lists modes the provider could not route.
	Unavailable []Mode `json:"unavailable,omitempty"`
}
