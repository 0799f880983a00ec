// Package matcher associates points with nearby known places.
//
// Every function here is stateless: candidate sets come in as arguments and
// nothing is retained between calls, so concurrent use needs no locking.
package matcher

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/starford/flare/internal/geo"
	"github.com/starford/flare/internal/models"
)

// Default distances in meters.
const (
	DefaultThreshold = 200.0
	DefaultRadius    = 200.0
)

// ErrInvalidRadius is returned for a negative, NaN, or infinite threshold or radius.
var ErrInvalidRadius = errors.New("invalid radius")

// MatchResult is a known place annotated with its distance from a query point
// and the number of flares around it.
type MatchResult struct {
	Place      models.KnownPlace
	Distance   float64
	FlareCount int
}

// RoundedDistance returns Distance rounded to the nearest meter.
func (r MatchResult) RoundedDistance() int64 {
	return int64(math.Round(r.Distance))
}

// FlareCounter counts flares strictly closer than radius meters to center.
type FlareCounter interface {
	CountWithin(ctx context.Context, center geo.Point, radius float64) (int, error)
}

// Locations is an in-memory FlareCounter over a fixed set of flare points.
type Locations []geo.Point

// CountWithin implements FlareCounter by scanning every location.
func (l Locations) CountWithin(_ context.Context, center geo.Point, radius float64) (int, error) {
	n := 0
	for _, p := range l {
		if geo.Distance(center, p) < radius {
			n++
		}
	}
	return n, nil
}

// FindMatch returns the first known place, in ascending ID order, whose
// distance to point is at most threshold meters. It returns nil when no
// place qualifies. The first qualifying place wins even if a later one is
// closer.
func FindMatch(point geo.Point, places []models.KnownPlace, threshold float64) (*models.KnownPlace, error) {
	if err := point.Validate(); err != nil {
		return nil, err
	}
	if err := validateRadius(threshold); err != nil {
		return nil, err
	}
	if err := validatePlaces(places); err != nil {
		return nil, err
	}

	ordered := slices.Clone(places)
	slices.SortStableFunc(ordered, func(a, b models.KnownPlace) int {
		return cmp.Compare(a.ID, b.ID)
	})

	for i := range ordered {
		if geo.Distance(point, ordered[i].Location) <= threshold {
			match := ordered[i]
			return &match, nil
		}
	}
	return nil, nil
}

// NearbyPlaces returns the known places strictly closer than radius meters to
// point, nearest first with ties broken by ID. Each result carries the number
// of flares strictly within radius of the place itself, as reported by counter.
func NearbyPlaces(ctx context.Context, point geo.Point, radius float64, places []models.KnownPlace, counter FlareCounter) ([]MatchResult, error) {
	if err := point.Validate(); err != nil {
		return nil, err
	}
	if err := validateRadius(radius); err != nil {
		return nil, err
	}
	if err := validatePlaces(places); err != nil {
		return nil, err
	}

	results := make([]MatchResult, 0)
	for _, p := range places {
		d := geo.Distance(point, p.Location)
		if d < radius {
			results = append(results, MatchResult{Place: p, Distance: d})
		}
	}

	slices.SortFunc(results, func(a, b MatchResult) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Place.ID, b.Place.ID)
	})

	for i := range results {
		n, err := counter.CountWithin(ctx, results[i].Place.Location, radius)
		if err != nil {
			return nil, fmt.Errorf("matcher: count flares near %s: %w", results[i].Place.ID, err)
		}
		results[i].FlareCount = n
	}
	return results, nil
}

// validatePlaces rejects candidate sets containing an unusable location.
func validatePlaces(places []models.KnownPlace) error {
	for i := range places {
		if err := places[i].Location.Validate(); err != nil {
			return fmt.Errorf("matcher: known place %s: %w", places[i].ID, err)
		}
	}
	return nil
}

func validateRadius(r float64) error {
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRadius, r)
	}
	return nil
}
