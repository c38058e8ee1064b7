// Package tracking persists the positions reported during navigation sessions
// and summarises the distance actually travelled.
package tracking

import (
	"context"
	"errors"
	"time"

	"backend-barrierfree/internal/db"
	"backend-barrierfree/internal/shared/geo"
)

var (
	ErrNotFound  = errors.New("trail not found")
	ErrForbidden = errors.New("trail belongs to another user")
)

type Service struct {
	db  db.Querier
	now func() time.Time
}

func NewService(db db.Querier) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Begin opens a trail keyed by the navigation session id and stores its
// starting position.
func (s *Service) Begin(ctx context.Context, sessionID, userID string, start geo.Point) error {
	if _, err := s.db.Exec(ctx, `
		INSERT INTO nav_trails (id, user_id, started_at, status)
		VALUES ($1,$2,$3,$4)
	`, sessionID, userID, s.now(), StatusActive); err != nil {
		return err
	}
	_, err := s.insertPoint(ctx, sessionID, start)
	return err
}

// Record appends a position and adds the hop from the previous one to the
// trail's running distance.
func (s *Service) Record(ctx context.Context, sessionID string, pos geo.Point) error {
	var last geo.Point
	err := s.db.QueryRow(ctx, `
		SELECT ST_Y(location::geometry), ST_X(location::geometry)
		FROM nav_trail_points
		WHERE trail_id=$1
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`, sessionID).Scan(&last.Lat, &last.Lng)
	hasLast := true
	if err != nil {
		if !db.IsNoRows(err) {
			return err
		}
		hasLast = false
	}

	if _, err := s.insertPoint(ctx, sessionID, pos); err != nil {
		return err
	}
	if !hasLast {
		return nil
	}

	_, err = s.db.Exec(ctx, `
		UPDATE nav_trails
		SET total_distance_m = COALESCE(total_distance_m,0) + $2
		WHERE id=$1
	`, sessionID, geo.Haversine(last, pos))
	return err
}

// Finish closes an active trail. Finishing twice is a no-op.
func (s *Service) Finish(ctx context.Context, sessionID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE nav_trails SET ended_at=$2, status=$3
		WHERE id=$1 AND status=$4
	`, sessionID, s.now(), StatusFinished, StatusActive)
	return err
}

func (s *Service) insertPoint(ctx context.Context, trailID string, p geo.Point) (TrailPoint, error) {
	pt := TrailPoint{TrailID: trailID, Lat: p.Lat, Lng: p.Lng, RecordedAt: s.now()}
	err := s.db.QueryRow(ctx, `
		INSERT INTO nav_trail_points (trail_id, location, recorded_at)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2,$3), 4326)::geography, $4)
		RETURNING id
	`, trailID, p.Lng, p.Lat, pt.RecordedAt).Scan(&pt.ID)
	return pt, err
}

func (s *Service) trail(ctx context.Context, userID, id string) (Trail, error) {
	var t Trail
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, started_at, ended_at, COALESCE(total_distance_m,0), status
		FROM nav_trails WHERE id=$1
	`, id).Scan(&t.ID, &t.UserID, &t.StartedAt, &t.EndedAt, &t.TotalDistanceM, &t.Status)
	if err != nil {
		if db.IsNoRows(err) {
			return Trail{}, ErrNotFound
		}
		return Trail{}, err
	}
	if t.UserID != userID {
		return Trail{}, ErrForbidden
	}
	return t, nil
}

func (s *Service) Summary(ctx context.Context, userID, id string) (Summary, error) {
	t, err := s.trail(ctx, userID, id)
	if err != nil {
		return Summary{}, err
	}

	var pointCount int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM nav_trail_points WHERE trail_id=$1`, id).Scan(&pointCount); err != nil {
		return Summary{}, err
	}

	end := s.now()
	if t.EndedAt != nil {
		end = *t.EndedAt
	}
	duration := end.Sub(t.StartedAt)
	avgSpeed := 0.0
	if duration.Seconds() > 0 {
		avgSpeed = t.TotalDistanceM / duration.Seconds()
	}

	return Summary{
		TrailID:       t.ID,
		Status:        t.Status,
		PointCount:    pointCount,
		DistanceM:     t.TotalDistanceM,
		DurationSec:   int64(duration.Seconds()),
		AverageSpeedM: avgSpeed,
	}, nil
}

func (s *Service) Points(ctx context.Context, userID, id string) ([]TrailPoint, error) {
	if _, err := s.trail(ctx, userID, id); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, trail_id, ST_Y(location::geometry), ST_X(location::geometry), recorded_at
		FROM nav_trail_points WHERE trail_id=$1
		ORDER BY recorded_at, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []TrailPoint{}
	for rows.Next() {
		var p TrailPoint
		if err := rows.Scan(&p.ID, &p.TrailID, &p.Lat, &p.Lng, &p.RecordedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
