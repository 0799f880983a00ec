package api

import (
	"time"

	"github.com/starford/flare/internal/flareservice"
	"github.com/starford/flare/internal/matcher"
	"github.com/starford/flare/internal/models"
)

// FlareDetail is the full flare response type (aliased from the domain layer).
type FlareDetail = flareservice.FlareDetail

// CreateFlareRequest is the JSON request body for creating a flare. Multipart
// submissions use the same field names plus a "photo" file and
// place[mapbox_id] / place[name] fields.
type CreateFlareRequest = flareservice.CreateFlareInput

// UpdateFlareRequest is the request body for updating a flare.
type UpdateFlareRequest = flareservice.UpdateFlareInput

// ContributeRequest is the request body for contributing to a flare.
type ContributeRequest struct {
	Note string `json:"note" example:"Still going on" validate:"required"`
}

// CreateKnownPlaceRequest is the request body for registering a known place.
type CreateKnownPlaceRequest = flareservice.KnownPlaceInput

// KnownPlace is a known place in API responses.
type KnownPlace struct {
	ID        string    `json:"id" example:"3f1c2a9e-6f0e-4d5b-9a59-1a2b3c4d5e6f" validate:"required"`
	Name      string    `json:"name" example:"Liberty Bell" validate:"required"`
	Lat       float64   `json:"lat" example:"39.94961" validate:"required"`
	Lon       float64   `json:"lon" example:"-75.150282" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NearbyKnownPlace is one ranked result of the nearby known places query.
type NearbyKnownPlace struct {
	ID         string  `json:"id" validate:"required"`
	Name       string  `json:"name" validate:"required"`
	Lat        float64 `json:"lat" validate:"required"`
	Lon        float64 `json:"lon" validate:"required"`
	Distance   int64   `json:"distance" example:"120" validate:"required"`
	FlareCount int     `json:"flare_count" example:"3" validate:"required"`
}

// MessageResponse is a plain confirmation message.
type MessageResponse struct {
	Message string `json:"message" example:"Flare deleted"`
}

func toKnownPlace(kp models.KnownPlace) KnownPlace {
	return KnownPlace{
		ID:        kp.ID,
		Name:      kp.Name,
		Lat:       kp.Location.Latitude,
		Lon:       kp.Location.Longitude,
		CreatedAt: kp.CreatedAt,
		UpdatedAt: kp.UpdatedAt,
	}
}

func toNearby(results []matcher.MatchResult) []NearbyKnownPlace {
	out := make([]NearbyKnownPlace, len(results))
	for i, r := range results {
		out[i] = NearbyKnownPlace{
			ID:         r.Place.ID,
			Name:       r.Place.Name,
			Lat:        r.Place.Location.Latitude,
			Lon:        r.Place.Location.Longitude,
			Distance:   r.RoundedDistance(),
			FlareCount: r.FlareCount,
		}
	}
	return out
}
