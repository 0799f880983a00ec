package flareservice

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/flare/internal/models"
)

const maxNoteLength = 255

var categoryRule = validation.In(categoryValues()...)

func categoryValues() []any {
	out := make([]any, len(models.Categories))
	for i, c := range models.Categories {
		out[i] = string(c)
	}
	return out
}

// PlaceInput identifies the external place a flare is posted from.
type PlaceInput struct {
	MapboxID string `json:"mapbox_id"`
	Name     string `json:"name"`
}

// Validate validates the place input.
func (p PlaceInput) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MapboxID, validation.Required),
		validation.Field(&p.Name, validation.Required),
	)
}

// CreateFlareInput is a new flare submission.
type CreateFlareInput struct {
	Latitude  *float64    `json:"latitude"`
	Longitude *float64    `json:"longitude"`
	Note      string      `json:"note"`
	Category  string      `json:"category"`
	Place     *PlaceInput `json:"place"`
	Photo     []byte      `json:"-"`
}

// Validate validates the submission. Coordinate ranges are checked separately
// by geo.Point.Validate.
func (in CreateFlareInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Latitude, validation.NotNil),
		validation.Field(&in.Longitude, validation.NotNil),
		validation.Field(&in.Note, validation.Required, validation.RuneLength(1, maxNoteLength)),
		validation.Field(&in.Category, categoryRule),
		validation.Field(&in.Place),
	)
}

func (in CreateFlareInput) category() models.Category {
	if in.Category == "" {
		return models.CategoryRegular
	}
	return models.Category(in.Category)
}

// UpdateFlareInput carries optional note and category changes.
type UpdateFlareInput struct {
	Note     *string `json:"note"`
	Category *string `json:"category"`
}

// Validate validates the update.
func (in UpdateFlareInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Note, validation.NilOrNotEmpty, validation.RuneLength(1, maxNoteLength)),
		validation.Field(&in.Category, validation.NilOrNotEmpty, categoryRule),
	)
}

// ContributeInput replaces a flare's note and optionally its photo.
type ContributeInput struct {
	Note  string `json:"note"`
	Photo []byte `json:"-"`
}

// Validate validates the contribution.
func (in ContributeInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Note, validation.Required, validation.RuneLength(1, maxNoteLength)),
	)
}

// KnownPlaceInput registers a known place.
type KnownPlaceInput struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

// Validate validates the known place input.
func (in KnownPlaceInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, maxNoteLength)),
		validation.Field(&in.Lat, validation.NotNil),
		validation.Field(&in.Lon, validation.NotNil),
	)
}
