package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flare/internal/apperr"
	"github.com/starford/flare/internal/geo"
)

// NearbyKnownPlaces handles GET /api/flares/nearby/known-places.
//
//	@Summary		Known places near a point, nearest first, with flare counts
//	@Tags			known-places
//	@Produce		json
//	@Param			latitude	query		number	true	"Latitude in degrees"
//	@Param			longitude	query		number	true	"Longitude in degrees"
//	@Param			radius		query		number	false	"Radius in meters (default 200)"
//	@Success		200			{array}		NearbyKnownPlace
//	@Failure		400			{object}	errResponse
//	@Router			/flares/nearby/known-places [get]
func (h *Handler) NearbyKnownPlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := formFloat("latitude", q.Get("latitude"))
	if err != nil {
		writeError(w, "nearby known places", err)
		return
	}
	lon, err := formFloat("longitude", q.Get("longitude"))
	if err != nil {
		writeError(w, "nearby known places", err)
		return
	}
	if lat == nil || lon == nil {
		writeError(w, "nearby known places", fmt.Errorf("%w: latitude and longitude are required", apperr.ErrInvalidInput))
		return
	}
	radius, err := formFloat("radius", q.Get("radius"))
	if err != nil {
		writeError(w, "nearby known places", err)
		return
	}

	results, err := h.svc.NearbyKnownPlaces(r.Context(), geo.Point{Latitude: *lat, Longitude: *lon}, radius)
	if err != nil {
		writeError(w, "nearby known places", err)
		return
	}
	writeJSON(w, http.StatusOK, toNearby(results))
}

// ListKnownPlaces handles GET /api/known-places.
//
//	@Summary		List known places
//	@Tags			known-places
//	@Produce		json
//	@Success		200	{array}	KnownPlace
//	@Router			/known-places [get]
func (h *Handler) ListKnownPlaces(w http.ResponseWriter, r *http.Request) {
	places, err := h.svc.ListKnownPlaces(r.Context())
	if err != nil {
		writeError(w, "list known places", err)
		return
	}
	out := make([]KnownPlace, len(places))
	for i, kp := range places {
		out[i] = toKnownPlace(kp)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetKnownPlace handles GET /api/known-places/{id}.
//
//	@Summary		Get a known place
//	@Tags			known-places
//	@Produce		json
//	@Param			id	path		string	true	"Known place ID"
//	@Success		200	{object}	KnownPlace
//	@Failure		404	{object}	errResponse
//	@Router			/known-places/{id} [get]
func (h *Handler) GetKnownPlace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	kp, err := h.svc.GetKnownPlace(r.Context(), id)
	if err != nil {
		writeError(w, "get known place", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, toKnownPlace(*kp))
}

// CreateKnownPlace handles POST /api/known-places.
//
//	@Summary		Register a known place
//	@Tags			known-places
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateKnownPlaceRequest	true	"Known place"
//	@Success		201		{object}	KnownPlace
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/known-places [post]
func (h *Handler) CreateKnownPlace(w http.ResponseWriter, r *http.Request) {
	var req CreateKnownPlaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "create known place", err)
		return
	}
	kp, err := h.svc.CreateKnownPlace(r.Context(), req)
	if err != nil {
		writeError(w, "create known place", err)
		return
	}
	writeJSON(w, http.StatusCreated, toKnownPlace(*kp))
}

// DeleteKnownPlace handles DELETE /api/known-places/{id}.
//
//	@Summary		Delete a known place
//	@Tags			known-places
//	@Param			id	path	string	true	"Known place ID"
//	@Success		204	"Known place deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/known-places/{id} [delete]
func (h *Handler) DeleteKnownPlace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteKnownPlace(r.Context(), id); err != nil {
		writeError(w, "delete known place", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
