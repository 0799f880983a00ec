package store

import (
	"context"

	"github.com/starford/flare/internal/matcher"
	"github.com/starford/flare/internal/models"
)

// Repository defines the persistence operations used by the service layer.
// Consumers should depend on this interface rather than the concrete *DB type.
type Repository interface {
	matcher.FlareCounter

	CreateKnownPlace(ctx context.Context, kp models.KnownPlace) error
	UpsertKnownPlace(ctx context.Context, kp models.KnownPlace) error
	GetKnownPlace(ctx context.Context, id string) (*models.KnownPlace, error)
	ListKnownPlaces(ctx context.Context) ([]models.KnownPlace, error)
	DeleteKnownPlace(ctx context.Context, id string) error

	FirstOrCreatePlace(ctx context.Context, p models.Place) (*models.Place, error)

	CreateFlare(ctx context.Context, f models.Flare) error
	GetFlare(ctx context.Context, id string) (*FlareRow, error)
	ListFlares(ctx context.Context) ([]FlareRow, error)
	UpdateFlare(ctx context.Context, id string, upd FlareUpdate) error
	DeleteFlare(ctx context.Context, id string) error

	Close() error
}

// Verify *DB satisfies Repository at compile time.
var _ Repository = (*DB)(nil)
