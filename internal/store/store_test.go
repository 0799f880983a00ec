package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/flare/internal/apperr"
	"github.com/starford/flare/internal/geo"
	"github.com/starford/flare/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "flare-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"known_places", "places", "flares"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestPing(t *testing.T) {
	db := testDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	db.Close()
	if err := db.Ping(context.Background()); err == nil {
		t.Error("Ping after Close should fail")
	}
}

func TestKnownPlaceCRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	kp := models.KnownPlace{ID: "b", Name: "Bridge", Location: geo.Point{Latitude: 40, Longitude: -75}}
	if err := db.CreateKnownPlace(ctx, kp); err != nil {
		t.Fatalf("CreateKnownPlace: %v", err)
	}
	if err := db.CreateKnownPlace(ctx, kp); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate create err = %v, want ErrAlreadyExists", err)
	}
	_ = db.CreateKnownPlace(ctx, models.KnownPlace{ID: "a", Name: "Arch", Location: geo.Point{Latitude: 1, Longitude: 2}})

	got, err := db.GetKnownPlace(ctx, "b")
	if err != nil {
		t.Fatalf("GetKnownPlace: %v", err)
	}
	if got.Name != "Bridge" || got.Location != kp.Location {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	list, err := db.ListKnownPlaces(ctx)
	if err != nil {
		t.Fatalf("ListKnownPlaces: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("list = %+v, want ordered [a b]", list)
	}

	if err := db.DeleteKnownPlace(ctx, "b"); err != nil {
		t.Fatalf("DeleteKnownPlace: %v", err)
	}
	if _, err := db.GetKnownPlace(ctx, "b"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
	if err := db.DeleteKnownPlace(ctx, "b"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestUpsertKnownPlace(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	kp := models.KnownPlace{ID: "x", Name: "Old", Location: geo.Point{Latitude: 1, Longitude: 1}}
	if err := db.UpsertKnownPlace(ctx, kp); err != nil {
		t.Fatal(err)
	}
	kp.Name = "New"
	kp.Location.Latitude = 2
	if err := db.UpsertKnownPlace(ctx, kp); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetKnownPlace(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "New" || got.Location.Latitude != 2 {
		t.Errorf("got %+v", got)
	}
}

func TestFirstOrCreatePlace(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first, err := db.FirstOrCreatePlace(ctx, models.Place{ID: "p1", MapboxID: "mb.1", Name: "Cafe", Location: geo.Point{Latitude: 3, Longitude: 4}})
	if err != nil {
		t.Fatal(err)
	}
	second, err := db.FirstOrCreatePlace(ctx, models.Place{ID: "p2", MapboxID: "mb.1", Name: "Other", Location: geo.Point{Latitude: 5, Longitude: 6}})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != "p1" || second.ID != "p1" || second.Name != "Cafe" {
		t.Errorf("first = %+v, second = %+v", first, second)
	}
}

func TestFlareLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_ = db.CreateKnownPlace(ctx, models.KnownPlace{ID: "kp", Name: "Square", Location: geo.Point{Latitude: 40, Longitude: -75}})
	f := models.Flare{
		ID:           "f1",
		Location:     geo.Point{Latitude: 40.001, Longitude: -75},
		Note:         "hello",
		KnownPlaceID: ptr("kp"),
	}
	if err := db.CreateFlare(ctx, f); err != nil {
		t.Fatalf("CreateFlare: %v", err)
	}

	got, err := db.GetFlare(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFlare: %v", err)
	}
	if got.Category != models.CategoryRegular {
		t.Errorf("category = %q, want regular", got.Category)
	}
	if got.KnownPlaceID == nil || *got.KnownPlaceID != "kp" || got.KnownPlaceName != "Square" {
		t.Errorf("known place = %v %q", got.KnownPlaceID, got.KnownPlaceName)
	}
	if got.PlaceID != nil {
		t.Errorf("place id = %v, want nil", *got.PlaceID)
	}

	blue := models.CategoryBlue
	if err := db.UpdateFlare(ctx, "f1", FlareUpdate{Note: ptr("edited"), Category: &blue}); err != nil {
		t.Fatalf("UpdateFlare: %v", err)
	}
	got, _ = db.GetFlare(ctx, "f1")
	if got.Note != "edited" || got.Category != models.CategoryBlue {
		t.Errorf("after update = %+v", got.Flare)
	}
	if got.KnownPlaceID == nil || *got.KnownPlaceID != "kp" {
		t.Error("update must not change known place")
	}

	if err := db.UpdateFlare(ctx, "missing", FlareUpdate{Note: ptr("x")}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update missing err = %v", err)
	}
	if err := db.UpdateFlare(ctx, "missing", FlareUpdate{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("empty update missing err = %v", err)
	}

	if err := db.DeleteFlare(ctx, "f1"); err != nil {
		t.Fatalf("DeleteFlare: %v", err)
	}
	if _, err := db.GetFlare(ctx, "f1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
}

func TestUpdateFlare_EmptyUpdate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.CreateFlare(ctx, models.Flare{ID: "f", Note: "n"}); err != nil {
		t.Fatal(err)
	}

	if err := db.UpdateFlare(ctx, "f", FlareUpdate{}); err != nil {
		t.Errorf("empty update of existing flare: %v", err)
	}
	if err := db.UpdateFlare(ctx, "missing", FlareUpdate{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("empty update of missing flare err = %v, want ErrNotFound", err)
	}

	db.Close()
	err := db.UpdateFlare(ctx, "f", FlareUpdate{})
	if err == nil || errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("empty update on closed db err = %v, want a query error", err)
	}
	if !strings.HasPrefix(err.Error(), "store: update flare: ") {
		t.Errorf("err = %q, want store: update flare prefix", err)
	}
}

func TestDeleteKnownPlaceNullsFlareReference(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_ = db.CreateKnownPlace(ctx, models.KnownPlace{ID: "kp", Name: "Gone"})
	if err := db.CreateFlare(ctx, models.Flare{ID: "f", Note: "n", KnownPlaceID: ptr("kp")}); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteKnownPlace(ctx, "kp"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetFlare(ctx, "f")
	if err != nil {
		t.Fatal(err)
	}
	if got.KnownPlaceID != nil {
		t.Errorf("known place id = %q, want nil", *got.KnownPlaceID)
	}
}

func TestCreateFlare_UnknownKnownPlace(t *testing.T) {
	db := testDB(t)
	err := db.CreateFlare(context.Background(), models.Flare{ID: "f", Note: "n", KnownPlaceID: ptr("nope")})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestListFlares_NewestFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 13, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		if err := db.CreateFlare(ctx, models.Flare{ID: id, Note: id, CreatedAt: ts, UpdatedAt: ts}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := db.ListFlares(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].ID != "new" || list[2].ID != "old" {
		t.Errorf("order = %v", []string{list[0].ID, list[1].ID, list[2].ID})
	}
}

func TestCountWithin(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	center := geo.Point{Latitude: 40, Longitude: -75}

	pts := []geo.Point{
		center,
		{Latitude: 40 + geo.LatitudeSpan(150), Longitude: -75},
		{Latitude: 40 - geo.LatitudeSpan(199), Longitude: -75},
		{Latitude: 40 + geo.LatitudeSpan(250), Longitude: -75},
		{Latitude: 40, Longitude: -74.99},
	}
	for i, p := range pts {
		if err := db.CreateFlare(ctx, models.Flare{ID: string(rune('a' + i)), Location: p, Note: "n"}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.CountWithin(ctx, center, 200)
	if err != nil {
		t.Fatalf("CountWithin: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestCountWithin_StrictBoundary(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	center := geo.Point{Latitude: 10, Longitude: 10}
	edge := geo.Point{Latitude: 10 + geo.LatitudeSpan(100), Longitude: 10}
	_ = db.CreateFlare(ctx, models.Flare{ID: "edge", Location: edge, Note: "n"})

	n, err := db.CountWithin(ctx, center, geo.Distance(center, edge))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0 for a flare exactly on the radius", n)
	}
}
