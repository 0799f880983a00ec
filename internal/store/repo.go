package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/flare/internal/apperr"
	"github.com/starford/flare/internal/geo"
	"github.com/starford/flare/internal/models"
)

// FlareRow is a flare joined with the names of its associated places.
type FlareRow struct {
	models.Flare
	PlaceName      string
	KnownPlaceName string
}

// FlareUpdate lists the mutable flare fields; nil fields are left unchanged.
type FlareUpdate struct {
	Note      *string
	Category  *models.Category
	PhotoPath *string
}

func (u FlareUpdate) empty() bool {
	return u.Note == nil && u.Category == nil && u.PhotoPath == nil
}

// CreateKnownPlace inserts a new known place. It returns apperr.ErrAlreadyExists
// when the ID is taken.
func (db *DB) CreateKnownPlace(ctx context.Context, kp models.KnownPlace) error {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO known_places (id, name, lat, lon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, kp.ID, kp.Name, kp.Location.Latitude, kp.Location.Longitude, now, now)
	if err != nil {
		if isConstraint(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("store: insert known place: %w", err)
	}
	return nil
}

// UpsertKnownPlace inserts a known place or updates the name and location of
// an existing one with the same ID.
func (db *DB) UpsertKnownPlace(ctx context.Context, kp models.KnownPlace) error {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO known_places (id, name, lat, lon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			lat        = excluded.lat,
			lon        = excluded.lon,
			updated_at = excluded.updated_at
		WHERE name != excluded.name OR lat != excluded.lat OR lon != excluded.lon
	`, kp.ID, kp.Name, kp.Location.Latitude, kp.Location.Longitude, now, now)
	if err != nil {
		return fmt.Errorf("store: upsert known place: %w", err)
	}
	return nil
}

// GetKnownPlace returns the known place with the given ID.
func (db *DB) GetKnownPlace(ctx context.Context, id string) (*models.KnownPlace, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, lat, lon, created_at, updated_at FROM known_places WHERE id = ?
	`, id)
	kp, err := scanKnownPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get known place: %w", err)
	}
	return kp, nil
}

// ListKnownPlaces returns every known place ordered by ID.
func (db *DB) ListKnownPlaces(ctx context.Context) ([]models.KnownPlace, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, lat, lon, created_at, updated_at FROM known_places ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list known places: %w", err)
	}
	defer rows.Close()

	out := make([]models.KnownPlace, 0)
	for rows.Next() {
		kp, err := scanKnownPlace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *kp)
	}
	return out, rows.Err()
}

// DeleteKnownPlace removes a known place. Flares referencing it keep their
// data with known_place_id set to NULL.
func (db *DB) DeleteKnownPlace(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM known_places WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete known place: %w", err)
	}
	return requireAffected(res)
}

// FirstOrCreatePlace returns the place with p.MapboxID, inserting p if none exists.
func (db *DB) FirstOrCreatePlace(ctx context.Context, p models.Place) (*models.Place, error) {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO places (id, mapbox_id, name, latitude, longitude)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(mapbox_id) DO NOTHING
	`, p.ID, p.MapboxID, p.Name, p.Location.Latitude, p.Location.Longitude)
	if err != nil {
		return nil, fmt.Errorf("store: insert place: %w", err)
	}

	var out models.Place
	err = db.conn.QueryRowContext(ctx, `
		SELECT id, mapbox_id, name, latitude, longitude FROM places WHERE mapbox_id = ?
	`, p.MapboxID).Scan(&out.ID, &out.MapboxID, &out.Name, &out.Location.Latitude, &out.Location.Longitude)
	if err != nil {
		return nil, fmt.Errorf("store: get place: %w", err)
	}
	return &out, nil
}

// CreateFlare inserts a new flare.
func (db *DB) CreateFlare(ctx context.Context, f models.Flare) error {
	if f.Category == "" {
		f.Category = models.CategoryRegular
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = f.CreatedAt
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO flares (id, latitude, longitude, note, category, place_id, known_place_id, photo_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.Location.Latitude, f.Location.Longitude, f.Note, string(f.Category),
		f.PlaceID, f.KnownPlaceID, f.PhotoPath, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("store: insert flare: %w: %v", apperr.ErrInvalidInput, err)
		}
		return fmt.Errorf("store: insert flare: %w", err)
	}
	return nil
}

const flareSelect = `
	SELECT f.id, f.latitude, f.longitude, f.note, f.category, f.place_id, f.known_place_id,
	       f.photo_path, f.created_at, f.updated_at,
	       COALESCE(p.name, ''), COALESCE(k.name, '')
	FROM flares f
	LEFT JOIN places p ON p.id = f.place_id
	LEFT JOIN known_places k ON k.id = f.known_place_id
`

// GetFlare returns a flare with its place names.
func (db *DB) GetFlare(ctx context.Context, id string) (*FlareRow, error) {
	row := db.conn.QueryRowContext(ctx, flareSelect+` WHERE f.id = ?`, id)
	fr, err := scanFlare(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get flare: %w", err)
	}
	return fr, nil
}

// ListFlares returns all flares, newest first.
func (db *DB) ListFlares(ctx context.Context) ([]FlareRow, error) {
	rows, err := db.conn.QueryContext(ctx, flareSelect+` ORDER BY f.created_at DESC, f.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list flares: %w", err)
	}
	defer rows.Close()

	out := make([]FlareRow, 0)
	for rows.Next() {
		fr, err := scanFlare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *fr)
	}
	return out, rows.Err()
}

// UpdateFlare applies the non-nil fields of upd. The known place association
// is never touched.
func (db *DB) UpdateFlare(ctx context.Context, id string, upd FlareUpdate) error {
	if upd.empty() {
		var exists int
		err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM flares WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("store: update flare: %w", err)
		}
		return nil
	}

	var (
		sets []string
		args []any
	)
	if upd.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *upd.Note)
	}
	if upd.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, string(*upd.Category))
	}
	if upd.PhotoPath != nil {
		sets = append(sets, "photo_path = ?")
		args = append(args, *upd.PhotoPath)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE flares SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("store: update flare: %w", err)
	}
	return requireAffected(res)
}

// DeleteFlare removes a flare.
func (db *DB) DeleteFlare(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM flares WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete flare: %w", err)
	}
	return requireAffected(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKnownPlace(s scanner) (*models.KnownPlace, error) {
	var kp models.KnownPlace
	if err := s.Scan(&kp.ID, &kp.Name, &kp.Location.Latitude, &kp.Location.Longitude, &kp.CreatedAt, &kp.UpdatedAt); err != nil {
		return nil, err
	}
	return &kp, nil
}

func scanFlare(s scanner) (*FlareRow, error) {
	var (
		fr           FlareRow
		category     string
		placeID      sql.NullString
		knownPlaceID sql.NullString
	)
	err := s.Scan(&fr.ID, &fr.Location.Latitude, &fr.Location.Longitude, &fr.Note, &category,
		&placeID, &knownPlaceID, &fr.PhotoPath, &fr.CreatedAt, &fr.UpdatedAt,
		&fr.PlaceName, &fr.KnownPlaceName)
	if err != nil {
		return nil, err
	}
	fr.Category = models.Category(category)
	if placeID.Valid {
		fr.PlaceID = &placeID.String
	}
	if knownPlaceID.Valid {
		fr.KnownPlaceID = &knownPlaceID.String
	}
	return &fr, nil
}

func scanPoints(rows *sql.Rows) ([]geo.Point, error) {
	out := make([]geo.Point, 0)
	for rows.Next() {
		var p geo.Point
		if err := rows.Scan(&p.Latitude, &p.Longitude); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
