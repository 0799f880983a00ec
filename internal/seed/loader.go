// Package seed imports administratively maintained known places from a YAML
// file and keeps the store in step with it.
package seed

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"

	"github.com/starford/flare/internal/geo"
	"github.com/starford/flare/internal/models"
)

// File is the on-disk layout of a known places seed file:
//
//	known_places:
//	  - id: 3f1c2a9e-6f0e-4d5b-9a59-1a2b3c4d5e6f
//	    name: Liberty Bell
//	    lat: 39.949610
//	    lon: -75.150282
type File struct {
	KnownPlaces []Entry `yaml:"known_places"`
}

// Entry is a single known place in a seed file.
type Entry struct {
	ID   string  `yaml:"id"`
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// Validate validates the entry.
func (e Entry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ID, validation.Required, is.UUID),
		validation.Field(&e.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&e.Lat, validation.By(func(any) error { return e.point().Validate() })),
	)
}

func (e Entry) point() geo.Point {
	return geo.Point{Latitude: e.Lat, Longitude: e.Lon}
}

// Parse decodes and validates a seed file.
func Parse(data []byte) ([]models.KnownPlace, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("seed: parse: %w", err)
	}

	seen := make(map[string]struct{}, len(f.KnownPlaces))
	out := make([]models.KnownPlace, 0, len(f.KnownPlaces))
	for i, e := range f.KnownPlaces {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("seed: known_places[%d]: %w", i, err)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("seed: known_places[%d]: duplicate id %s", i, e.ID)
		}
		seen[e.ID] = struct{}{}
		out = append(out, models.KnownPlace{ID: e.ID, Name: e.Name, Location: e.point()})
	}
	return out, nil
}
