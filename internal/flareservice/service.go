// Package flareservice implements the flare and known place use cases on top
// of the store, the photo storage and the matching engine.
package flareservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/flare/internal/apperr"
	"github.com/starford/flare/internal/geo"
	"github.com/starford/flare/internal/matcher"
	"github.com/starford/flare/internal/models"
	"github.com/starford/flare/internal/storage"
	"github.com/starford/flare/internal/store"
)

// PhotoURLPrefix is the URL path under which stored photos are served.
const PhotoURLPrefix = "/api/photos/"

// Event kinds passed to an EventFunc.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event describes a flare change. KnownPlaceID is the known place the flare
// is associated with, if any, so listeners can refresh that place's counts.
type Event struct {
	Kind         string
	FlareID      string
	KnownPlaceID *string
}

// EventFunc is called after a flare is created, updated or deleted.
type EventFunc func(Event)

// Settings holds the matching distances in meters.
type Settings struct {
	MatchThreshold float64
	DefaultRadius  float64
}

// DefaultSettings returns the standard 200 m threshold and radius.
func DefaultSettings() Settings {
	return Settings{
		MatchThreshold: matcher.DefaultThreshold,
		DefaultRadius:  matcher.DefaultRadius,
	}
}

// PlaceRef is a lightweight reference to an associated place.
type PlaceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FlareDetail is the full representation of a flare.
type FlareDetail struct {
	ID           string          `json:"id"`
	Latitude     float64         `json:"latitude"`
	Longitude    float64         `json:"longitude"`
	Note         string          `json:"note"`
	Category     models.Category `json:"category"`
	PlaceID      *string         `json:"place_id"`
	KnownPlaceID *string         `json:"known_place_id"`
	Place        *PlaceRef       `json:"place"`
	KnownPlace   *PlaceRef       `json:"known_place"`
	PhotoPath    *string         `json:"photo_path"`
	PhotoURL     *string         `json:"photo_url"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Service coordinates store, photo storage and matching.
type Service struct {
	repo     store.Repository
	photos   storage.Provider
	settings Settings
	notify   EventFunc
}

// NewService creates a new flare service. notify may be nil.
func NewService(repo store.Repository, photos storage.Provider, settings Settings, notify EventFunc) *Service {
	return &Service{repo: repo, photos: photos, settings: settings, notify: notify}
}

// Settings returns the matching distances in use.
func (s *Service) Settings() Settings {
	return s.settings
}

// CreateFlare validates the submission, associates it with the first known
// place within the match threshold and persists it.
func (s *Service) CreateFlare(ctx context.Context, in CreateFlareInput) (*FlareDetail, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	point := geo.Point{Latitude: *in.Latitude, Longitude: *in.Longitude}
	if err := point.Validate(); err != nil {
		return nil, err
	}

	places, err := s.repo.ListKnownPlaces(ctx)
	if err != nil {
		return nil, err
	}
	match, err := matcher.FindMatch(point, places, s.settings.MatchThreshold)
	if err != nil {
		return nil, err
	}

	f := models.Flare{
		ID:       uuid.NewString(),
		Location: point,
		Note:     in.Note,
		Category: in.category(),
	}
	if match != nil {
		f.KnownPlaceID = &match.ID
	}

	if len(in.Photo) > 0 {
		rel, err := s.savePhoto(in.Photo)
		if err != nil {
			return nil, err
		}
		f.PhotoPath = rel
	}

	if in.Place != nil {
		p, err := s.repo.FirstOrCreatePlace(ctx, models.Place{
			ID:       uuid.NewString(),
			MapboxID: in.Place.MapboxID,
			Name:     in.Place.Name,
			Location: point,
		})
		if err != nil {
			s.removePhoto(f.PhotoPath)
			return nil, err
		}
		f.PlaceID = &p.ID
	}

	if err := s.repo.CreateFlare(ctx, f); err != nil {
		s.removePhoto(f.PhotoPath)
		return nil, err
	}

	slog.Debug("flare created",
		slog.String("id", f.ID),
		slog.String("location", point.String()),
		slog.Bool("matched", match != nil))

	return s.emitDetail(ctx, EventCreated, f.ID)
}

// GetFlare returns a single flare.
func (s *Service) GetFlare(ctx context.Context, id string) (*FlareDetail, error) {
	row, err := s.repo.GetFlare(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDetail(row), nil
}

// ListFlares returns every flare, newest first.
func (s *Service) ListFlares(ctx context.Context) ([]FlareDetail, error) {
	rows, err := s.repo.ListFlares(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FlareDetail, len(rows))
	for i := range rows {
		out[i] = *toDetail(&rows[i])
	}
	return out, nil
}

// UpdateFlare changes the note and/or category. The known place association
// is fixed at creation and is not re-evaluated.
func (s *Service) UpdateFlare(ctx context.Context, id string, in UpdateFlareInput) (*FlareDetail, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	upd := store.FlareUpdate{Note: in.Note}
	if in.Category != nil {
		c := models.Category(*in.Category)
		upd.Category = &c
	}
	if err := s.repo.UpdateFlare(ctx, id, upd); err != nil {
		return nil, err
	}
	return s.emitDetail(ctx, EventUpdated, id)
}

// Contribute replaces the flare's note and, when a photo is supplied, its photo.
func (s *Service) Contribute(ctx context.Context, id string, in ContributeInput) (*FlareDetail, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	if len(in.Photo) > 0 {
		if _, err := s.replacePhoto(ctx, id, in.Photo); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateFlare(ctx, id, store.FlareUpdate{Note: &in.Note}); err != nil {
		return nil, err
	}
	return s.emitDetail(ctx, EventUpdated, id)
}

// UploadPhoto stores a new photo for the flare, replacing any previous one.
func (s *Service) UploadPhoto(ctx context.Context, id string, data []byte) (*FlareDetail, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: photo is required", apperr.ErrInvalidInput)
	}
	detail, err := s.replacePhoto(ctx, id, data)
	if err != nil {
		return nil, err
	}
	s.emit(Event{Kind: EventUpdated, FlareID: id, KnownPlaceID: detail.KnownPlaceID})
	return detail, nil
}

// DeleteFlare removes a flare and its photo.
func (s *Service) DeleteFlare(ctx context.Context, id string) error {
	row, err := s.repo.GetFlare(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteFlare(ctx, id); err != nil {
		return err
	}
	s.removePhoto(row.PhotoPath)
	s.emit(Event{Kind: EventDeleted, FlareID: id, KnownPlaceID: row.KnownPlaceID})
	return nil
}

// NearbyKnownPlaces returns known places strictly within radius meters of
// point, nearest first, each with the number of flares within radius of it.
// A nil radius uses the configured default.
func (s *Service) NearbyKnownPlaces(ctx context.Context, point geo.Point, radius *float64) ([]matcher.MatchResult, error) {
	r := s.settings.DefaultRadius
	if radius != nil {
		r = *radius
	}
	places, err := s.repo.ListKnownPlaces(ctx)
	if err != nil {
		return nil, err
	}
	return matcher.NearbyPlaces(ctx, point, r, places, s.repo)
}

// FindKnownPlace returns the known place a flare at point would be matched
// to, or nil.
func (s *Service) FindKnownPlace(ctx context.Context, point geo.Point) (*models.KnownPlace, error) {
	places, err := s.repo.ListKnownPlaces(ctx)
	if err != nil {
		return nil, err
	}
	return matcher.FindMatch(point, places, s.settings.MatchThreshold)
}

// CreateKnownPlace registers a new known place under a generated ID.
func (s *Service) CreateKnownPlace(ctx context.Context, in KnownPlaceInput) (*models.KnownPlace, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	point := geo.Point{Latitude: *in.Lat, Longitude: *in.Lon}
	if err := point.Validate(); err != nil {
		return nil, err
	}
	kp := models.KnownPlace{ID: uuid.NewString(), Name: in.Name, Location: point}
	if err := s.repo.CreateKnownPlace(ctx, kp); err != nil {
		return nil, err
	}
	return s.repo.GetKnownPlace(ctx, kp.ID)
}

// GetKnownPlace returns a single known place.
func (s *Service) GetKnownPlace(ctx context.Context, id string) (*models.KnownPlace, error) {
	return s.repo.GetKnownPlace(ctx, id)
}

// ListKnownPlaces returns every known place ordered by ID.
func (s *Service) ListKnownPlaces(ctx context.Context) ([]models.KnownPlace, error) {
	return s.repo.ListKnownPlaces(ctx)
}

// DeleteKnownPlace removes a known place; flares linked to it are unlinked.
func (s *Service) DeleteKnownPlace(ctx context.Context, id string) error {
	return s.repo.DeleteKnownPlace(ctx, id)
}

func (s *Service) replacePhoto(ctx context.Context, id string, data []byte) (*FlareDetail, error) {
	row, err := s.repo.GetFlare(ctx, id)
	if err != nil {
		return nil, err
	}
	rel, err := s.savePhoto(data)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFlare(ctx, id, store.FlareUpdate{PhotoPath: &rel}); err != nil {
		s.removePhoto(rel)
		return nil, err
	}
	s.removePhoto(row.PhotoPath)
	return s.GetFlare(ctx, id)
}

func (s *Service) savePhoto(data []byte) (string, error) {
	rel, err := s.photos.SavePhoto(data)
	if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrTooLarge) {
		return "", fmt.Errorf("%w: photo: %v", apperr.ErrInvalidInput, err)
	}
	return rel, err
}

func (s *Service) removePhoto(rel string) {
	if rel == "" {
		return
	}
	if err := s.photos.Delete(rel); err != nil {
		slog.Warn("remove photo failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

func (s *Service) emit(e Event) {
	if s.notify != nil {
		s.notify(e)
	}
}

// emitDetail reloads the flare and reports the change with its known place.
func (s *Service) emitDetail(ctx context.Context, kind, id string) (*FlareDetail, error) {
	d, err := s.GetFlare(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit(Event{Kind: kind, FlareID: id, KnownPlaceID: d.KnownPlaceID})
	return d, nil
}

func toDetail(row *store.FlareRow) *FlareDetail {
	d := &FlareDetail{
		ID:           row.ID,
		Latitude:     row.Location.Latitude,
		Longitude:    row.Location.Longitude,
		Note:         row.Note,
		Category:     row.Category,
		PlaceID:      row.PlaceID,
		KnownPlaceID: row.KnownPlaceID,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.PlaceID != nil {
		d.Place = &PlaceRef{ID: *row.PlaceID, Name: row.PlaceName}
	}
	if row.KnownPlaceID != nil {
		d.KnownPlace = &PlaceRef{ID: *row.KnownPlaceID, Name: row.KnownPlaceName}
	}
	if row.PhotoPath != "" {
		p := row.PhotoPath
		u := PhotoURLPrefix + p
		d.PhotoPath = &p
		d.PhotoURL = &u
	}
	return d
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
}
