package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flare/internal/apperr"
	"github.com/starford/flare/internal/storage"
)

// maxFormBytes bounds a multipart body: one photo plus the text fields.
const maxFormBytes = storage.MaxPhotoBytes + 1<<20

// PhotoHandler serves stored flare photos.
type PhotoHandler struct {
	photos storage.Provider
}

// NewPhotoHandler creates a PhotoHandler reading from photos.
func NewPhotoHandler(photos storage.Provider) *PhotoHandler {
	return &PhotoHandler{photos: photos}
}

// ServePhoto handles GET /api/photos/*.
//
//	@Summary		Serve a stored flare photo
//	@Tags			photos
//	@Produce		octet-stream
//	@Param			path	path	string	true	"Photo path, e.g. flare_photos/<uuid>.jpg"
//	@Success		200		"Photo content"
//	@Failure		404		{object}	errResponse
//	@Router			/photos/{path} [get]
func (ph *PhotoHandler) ServePhoto(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	rel, err := url.PathUnescape(raw)
	if err != nil || rel == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid photo path"))
		return
	}
	abs, err := ph.photos.Resolve(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		if errors.Is(err, storage.ErrInvalidPath) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid photo path"))
			return
		}
		slog.Error("resolve photo failed", slog.String("path", rel), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, abs)
}

// isMultipart reports whether the request carries a multipart form body.
func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// parseForm parses a multipart body limited to maxFormBytes.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: %w", apperr.ErrInvalidInput, storage.ErrTooLarge)
		}
		return fmt.Errorf("%w: invalid multipart form", apperr.ErrInvalidInput)
	}
	return nil
}

// formPhoto reads the named file field from a parsed multipart form. A
// missing field yields nil data and no error.
func formPhoto(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidInput, field, err)
	}
	defer file.Close()

	// One byte over the limit lets the storage layer report ErrTooLarge.
	data, err := io.ReadAll(io.LimitReader(file, storage.MaxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	return data, nil
}
