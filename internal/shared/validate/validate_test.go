package validate

import (
	"errors"
	"testing"
)

type sample struct {
	Name  string   `json:"location_name" validate:"required,max=5"`
	Lat   float64  `json:"lat" validate:"gte=-90,lte=90"`
	Level string   `json:"accessibility_level" validate:"required,oneof=good moderate difficult"`
	URLs  []string `json:"photo_urls" validate:"max=2,dive,url"`
}

func TestStructValid(t *testing.T) {
	if err := Struct(sample{Name: "gate", Lat: 37.5, Level: "good", URLs: []string{"https://x.example/a.jpg"}}); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
}

func TestStructMessages(t *testing.T) {
	cases := []struct {
		in    sample
		field string
		msg   string
	}{
		{sample{Lat: 1, Level: "good"}, "location_name", "location_name is required"},
		{sample{Name: "toolong", Level: "good"}, "location_name", "location_name must be at most 5 characters"},
		{sample{Name: "a", Lat: 91, Level: "good"}, "lat", "latitude must be between -90 and 90"},
		{sample{Name: "a", Level: "easy"}, "accessibility_level", "accessibility_level must be one of: good, moderate, difficult"},
		{sample{Name: "a", Level: "good", URLs: []string{"a", "b", "c"}}, "photo_urls", "photo_urls accepts at most 2 entries"},
		{sample{Name: "a", Level: "good", URLs: []string{"not a url"}}, "photo_urls[0]", "photo_urls[0] must contain valid URLs"},
	}
	for _, c := range cases {
		err := Struct(c.in)
		var verr *Error
		if !errors.As(err, &verr) {
			t.Fatalf("%+v: expected validation error, got %v", c.in, err)
		}
		if verr.Field != c.field || verr.Message != c.msg {
			t.Fatalf("got %q/%q want %q/%q", verr.Field, verr.Message, c.field, c.msg)
		}
	}
}
