// Package proximity classifies route polylines by the severity of the
// accessibility barriers reported near them.
package proximity

import (
	"math"
	"sort"
	"time"

	"backend-barrierfree/internal/observability"
	"backend-barrierfree/internal/shared/geo"
)

const DefaultRadiusM = 20.0

// Scorer holds the single "nearby" threshold used for both segment colouring
// and route-level aggregation.
type Scorer struct {
	RadiusM float64
}

func NewScorer(radiusM float64) Scorer {
	if radiusM <= 0 {
		radiusM = DefaultRadiusM
	}
	return Scorer{RadiusM: radiusM}
}

// Classify returns one match per route point. The severity is the worst among
// barriers strictly closer than the radius; the reported barrier is the nearest
// one, ties broken by lowest id.
func (s Scorer) Classify(route []geo.Point, barriers []Barrier) []PointMatch {
	out := make([]PointMatch, len(route))
	for i, p := range route {
		m := PointMatch{Severity: SeveritySafe}
		best := math.Inf(1)
		for _, b := range barriers {
			d := geo.Haversine(p, b.Point)
			if d >= s.RadiusM {
				continue
			}
			if b.Severity.rank() > m.Severity.rank() {
				m.Severity = b.Severity
			}
			if d < best || (d == best && b.ID < m.BarrierID) {
				best = d
				m.BarrierID = b.ID
				m.DistanceM = d
			}
		}
		out[i] = m
	}
	return out
}

// Segments splits the route wherever the point severity changes. Every segment
// after the first begins with the last point of the one before it so the
// rendered polylines join up.
func (s Scorer) Segments(route []geo.Point, barriers []Barrier) []Segment {
	if len(route) == 0 {
		return []Segment{{Severity: SeveritySafe, Points: []geo.Point{}}}
	}
	matches := s.Classify(route, barriers)

	var segs []Segment
	cur := Segment{Severity: matches[0].Severity, Points: []geo.Point{route[0]}}
	for i := 1; i < len(route); i++ {
		if matches[i].Severity != cur.Severity {
			cur.EndIndex = i - 1
			segs = append(segs, cur)
			cur = Segment{
				Severity:   matches[i].Severity,
				Points:     []geo.Point{route[i-1], route[i]},
				StartIndex: i,
			}
			continue
		}
		cur.Points = append(cur.Points, route[i])
	}
	cur.EndIndex = len(route) - 1
	return append(segs, cur)
}

// Summarize counts the distinct barriers near any route point and turns the
// danger/warning counts into whole percentages.
func (s Scorer) Summarize(route []geo.Point, barriers []Barrier) Summary {
	start := time.Now()
	defer func() { observability.ScoreLatency.Observe(time.Since(start).Seconds()) }()

	nearby := make([]Barrier, 0)
	var danger, warning int
	for _, b := range barriers {
		if !s.near(route, b.Point) {
			continue
		}
		nearby = append(nearby, b)
		switch b.Severity {
		case SeverityDanger:
			danger++
		case SeverityWarning:
			warning++
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].ID < nearby[j].ID })

	sum := Summary{SafePct: 100, NearbyBarriers: nearby}
	if total := danger + warning; total > 0 {
		sum.DangerPct = int(math.Round(float64(danger) / float64(total) * 100))
		// derive warning from danger so the two never round past 100
		sum.WarningPct = 100 - sum.DangerPct
		sum.SafePct = 100 - sum.DangerPct - sum.WarningPct
	}
	return sum
}

func (s Scorer) near(route []geo.Point, p geo.Point) bool {
	for _, r := range route {
		if geo.Haversine(r, p) < s.RadiusM {
			return true
		}
	}
	return false
}

// Arrows places a direction marker on every nth point, pointing at the next one.
// Zero-length hops are skipped since they have no bearing.
func Arrows(route []geo.Point, every int) []Arrow {
	if every <= 0 {
		every = 1
	}
	arrows := make([]Arrow, 0, len(route)/every+1)
	for i := 0; i+1 < len(route); i += every {
		if route[i] == route[i+1] {
			continue
		}
		arrows = append(arrows, Arrow{Point: route[i], Bearing: geo.Bearing(route[i], route[i+1])})
	}
	return arrows
}
