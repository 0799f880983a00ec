// Package testutil provides shared test helpers for setting up databases and photo storage.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/flare/internal/store"
	"github.com/starford/flare/internal/storage"
)

// PNG is a minimal payload that content sniffing reports as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "flare-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestPhotos creates a temporary photo directory with a storage.Provider.
func TestPhotos(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	photos, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, photos
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
