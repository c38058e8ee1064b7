package favorite

import "time"

type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PlaceName string    `json:"place_name"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateRequest struct {
	PlaceName string  `json:"place_name" validate:"required,max=200"`
	Lat       float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng       float64 `json:"lng" validate:"gte=-180,lte=180"`
	Address   string  `json:"address" validate:"max=500"`
}
