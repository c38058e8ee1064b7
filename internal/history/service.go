package history

import (
	"context"
	"errors"

	"backend-barrierfree/internal/db"
	"backend-barrierfree/internal/shared/validate"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var ErrNotFound = errors.New("history entry not found")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Record(ctx context.Context, userID string, req CreateRequest) (Entry, error) {
	if err := validate.Struct(req); err != nil {
		return Entry{}, err
	}
	e := Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartName: req.StartName,
		StartLat:  req.StartLat,
		StartLng:  req.StartLng,
		EndName:   req.EndName,
		EndLat:    req.EndLat,
		EndLng:    req.EndLng,
		DistanceM: req.DistanceM,
		DurationS: req.DurationS,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO route_history (id, user_id, start_name, start_lat, start_lng, end_name, end_lat, end_lng, distance_m, duration_s)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`, e.ID, e.UserID, e.StartName, e.StartLat, e.StartLng, e.EndName, e.EndLat, e.EndLng, e.DistanceM, e.DurationS)
	if err := row.Scan(&e.CreatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// List returns the newest entries first. limit is clamped to [1, MaxLimit].
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, start_name, start_lat, start_lng, end_name, end_lat, end_lng, distance_m, duration_s, created_at
		FROM route_history WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.StartName, &e.StartLat, &e.StartLng, &e.EndName, &e.EndLat, &e.EndLng, &e.DistanceM, &e.DurationS, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM route_history WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
