// Package models defines the domain types for Flare.
package models

import (
	"time"

	"github.com/starford/flare/internal/geo"
)

// Category classifies a flare on the map.
type Category string

// Flare categories.
const (
	CategoryRegular Category = "regular"
	CategoryBlue    Category = "blue"
	CategoryViolet  Category = "violet"
)

// Categories lists every accepted flare category.
var Categories = []Category{CategoryRegular, CategoryBlue, CategoryViolet}

// KnownPlace is an administratively registered point of interest used as a
// proximity anchor for flares.
type KnownPlace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  geo.Point `json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Place is an external (Mapbox) place a flare was posted from.
type Place struct {
	ID       string    `json:"id"`
	MapboxID string    `json:"mapbox_id"`
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
}

// Flare is a user-submitted geotagged note.
type Flare struct {
	ID           string    `json:"id"`
	Location     geo.Point `json:"location"`
	Note         string    `json:"note"`
	Category     Category  `json:"category"`
	PlaceID      *string   `json:"place_id"`
	KnownPlaceID *string   `json:"known_place_id"`
	PhotoPath    string    `json:"photo_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
