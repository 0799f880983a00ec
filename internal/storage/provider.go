// Package storage defines the flare photo file-system abstraction.
package storage

import "errors"

// MaxPhotoBytes is the largest accepted photo upload.
const MaxPhotoBytes = 5 << 20

// PhotoDir is the directory, relative to the storage root, holding flare photos.
const PhotoDir = "flare_photos"

var (
	// ErrUnsupportedType is returned for uploads that are not a supported image.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrTooLarge is returned for uploads over MaxPhotoBytes.
	ErrTooLarge = errors.New("photo too large")
	// ErrInvalidPath is returned for empty, absolute or escaping photo paths.
	ErrInvalidPath = errors.New("invalid photo path")
)

// Provider is the interface for photo file operations. Paths are relative to
// the storage root and use forward slashes.
type Provider interface {
	// SavePhoto stores an image under a freshly generated name and returns its path.
	SavePhoto(data []byte) (string, error)
	// Resolve returns the absolute file path for a stored photo.
	Resolve(path string) (string, error)
	// Delete removes a stored photo.
	Delete(path string) error
}
