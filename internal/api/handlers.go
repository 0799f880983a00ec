package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flare/internal/apperr"
	"github.com/starford/flare/internal/flareservice"
)

// maxJSONBytes bounds JSON request bodies.
const maxJSONBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *flareservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *flareservice.Service) *Handler {
	return &Handler{svc: svc}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body", apperr.ErrInvalidInput)
	}
	return nil
}

// formFloat parses an optional numeric form or query value.
func formFloat(name, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", apperr.ErrInvalidInput, name)
	}
	return &v, nil
}

// ListFlares handles GET /api/flares.
//
//	@Summary		List flares, newest first
//	@Tags			flares
//	@Produce		json
//	@Success		200	{array}	FlareDetail
//	@Router			/flares [get]
func (h *Handler) ListFlares(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListFlares(r.Context())
	if err != nil {
		writeError(w, "list flares", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetFlare handles GET /api/flares/{id}.
//
//	@Summary		Get a single flare
//	@Tags			flares
//	@Produce		json
//	@Param			id	path		string	true	"Flare ID"
//	@Success		200	{object}	FlareDetail
//	@Failure		404	{object}	errResponse
//	@Router			/flares/{id} [get]
func (h *Handler) GetFlare(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	flare, err := h.svc.GetFlare(r.Context(), id)
	if err != nil {
		writeError(w, "get flare", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, flare)
}

// CreateFlare handles POST /api/flares. It accepts a JSON body or a
// multipart form with an optional "photo" file.
//
//	@Summary		Create a flare and match it to a known place
//	@Tags			flares
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			body	body		CreateFlareRequest	true	"Flare to create"
//	@Success		201		{object}	FlareDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flares [post]
func (h *Handler) CreateFlare(w http.ResponseWriter, r *http.Request) {
	var (
		in  CreateFlareRequest
		err error
	)
	if isMultipart(r) {
		in, err = createInputFromForm(w, r)
	} else {
		err = decodeJSON(w, r, &in)
	}
	if err != nil {
		writeError(w, "create flare", err)
		return
	}
	flare, err := h.svc.CreateFlare(r.Context(), in)
	if err != nil {
		writeError(w, "create flare", err)
		return
	}
	writeJSON(w, http.StatusCreated, flare)
}

func createInputFromForm(w http.ResponseWriter, r *http.Request) (CreateFlareRequest, error) {
	var in CreateFlareRequest
	if err := parseForm(w, r); err != nil {
		return in, err
	}
	var err error
	if in.Latitude, err = formFloat("latitude", r.FormValue("latitude")); err != nil {
		return in, err
	}
	if in.Longitude, err = formFloat("longitude", r.FormValue("longitude")); err != nil {
		return in, err
	}
	in.Note = r.FormValue("note")
	in.Category = r.FormValue("category")
	mapboxID, name := r.FormValue("place[mapbox_id]"), r.FormValue("place[name]")
	if mapboxID != "" || name != "" {
		in.Place = &flareservice.PlaceInput{MapboxID: mapboxID, Name: name}
	}
	in.Photo, err = formPhoto(r, "photo")
	return in, err
}

// UpdateFlare handles PUT /api/flares/{id}.
//
//	@Summary		Update a flare's note or category
//	@Tags			flares
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Flare ID"
//	@Param			body	body		UpdateFlareRequest	true	"Fields to change"
//	@Success		200		{object}	FlareDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flares/{id} [put]
func (h *Handler) UpdateFlare(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateFlareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "update flare", err)
		return
	}
	flare, err := h.svc.UpdateFlare(r.Context(), id, req)
	if err != nil {
		writeError(w, "update flare", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, flare)
}

// DeleteFlare handles DELETE /api/flares/{id}.
//
//	@Summary		Delete a flare
//	@Tags			flares
//	@Produce		json
//	@Param			id	path		string	true	"Flare ID"
//	@Success		200	{object}	MessageResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flares/{id} [delete]
func (h *Handler) DeleteFlare(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteFlare(r.Context(), id); err != nil {
		writeError(w, "delete flare", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Flare deleted"})
}

// UploadPhoto handles POST /api/flares/{id}/images.
//
//	@Summary		Attach a photo to a flare
//	@Tags			flares
//	@Accept			mpfd
//	@Produce		json
//	@Param			id		path		string	true	"Flare ID"
//	@Param			photo	formData	file	true	"Image (png, jpeg, gif, webp; max 5 MiB)"
//	@Success		200		{object}	FlareDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flares/{id}/images [post]
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := parseForm(w, r); err != nil {
		writeError(w, "upload photo", err)
		return
	}
	data, err := formPhoto(r, "photo")
	if err != nil {
		writeError(w, "upload photo", err, slog.String("id", id))
		return
	}
	flare, err := h.svc.UploadPhoto(r.Context(), id, data)
	if err != nil {
		writeError(w, "upload photo", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, flare)
}

// Contribute handles POST /api/flares/{id}/contribute.
//
//	@Summary		Replace a flare's note, optionally with a new photo
//	@Tags			flares
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			id		path		string				true	"Flare ID"
//	@Param			body	body		ContributeRequest	true	"New note"
//	@Success		200		{object}	FlareDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flares/{id}/contribute [post]
func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in flareservice.ContributeInput
	if isMultipart(r) {
		if err := parseForm(w, r); err != nil {
			writeError(w, "contribute", err)
			return
		}
		in.Note = r.FormValue("note")
		photo, err := formPhoto(r, "photo")
		if err != nil {
			writeError(w, "contribute", err, slog.String("id", id))
			return
		}
		in.Photo = photo
	} else {
		var req ContributeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, "contribute", err)
			return
		}
		in.Note = req.Note
	}
	flare, err := h.svc.Contribute(r.Context(), id, in)
	if err != nil {
		writeError(w, "contribute", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, flare)
}
