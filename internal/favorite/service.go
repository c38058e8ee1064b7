package favorite

import (
	"context"
	"errors"
	"strings"

	"backend-barrierfree/internal/db"
	"backend-barrierfree/internal/shared/validate"

	"github.com/google/uuid"
)

var (
	ErrAlreadySaved = errors.New("already in favorites")
	ErrNotFound     = errors.New("favorite not found")
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Add(ctx context.Context, userID string, req CreateRequest) (Favorite, error) {
	req.PlaceName = strings.TrimSpace(req.PlaceName)
	if err := validate.Struct(req); err != nil {
		return Favorite{}, err
	}
	fav := Favorite{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlaceName: req.PlaceName,
		Lat:       req.Lat,
		Lng:       req.Lng,
		Address:   strings.TrimSpace(req.Address),
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO favorites (id, user_id, place_name, lat, lng, address)
		VALUES ($1,$2,$3,$4,$5, NULLIF($6,''))
		RETURNING created_at
	`, fav.ID, fav.UserID, fav.PlaceName, fav.Lat, fav.Lng, fav.Address)
	if err := row.Scan(&fav.CreatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return Favorite{}, ErrAlreadySaved
		}
		return Favorite{}, err
	}
	return fav, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Favorite, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, place_name, lat, lng, COALESCE(address,''), created_at
		FROM favorites WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	favs := []Favorite{}
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ID, &f.UserID, &f.PlaceName, &f.Lat, &f.Lng, &f.Address, &f.CreatedAt); err != nil {
			return nil, err
		}
		favs = append(favs, f)
	}
	return favs, rows.Err()
}

// Delete removes a favorite owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM favorites WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
