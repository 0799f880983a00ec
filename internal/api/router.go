package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flare/internal/flareservice"
	"github.com/starford/flare/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// Reads are public; mutations and the event stream sit behind the Bearer
// token middleware when authEnabled is true.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *flareservice.Service, photos storage.Provider, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	ph := NewPhotoHandler(photos)

	r := chi.NewRouter()

	// Public reads.
	r.With(NoCache).Get("/flares", h.ListFlares)
	r.Get("/flares/nearby/known-places", h.NearbyKnownPlaces)
	r.Get("/flares/{id}", h.GetFlare)
	r.Get("/known-places", h.ListKnownPlaces)
	r.Get("/known-places/{id}", h.GetKnownPlace)
	r.Get("/photos/*", ph.ServePhoto)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		r.With(NoCache).Post("/flares", h.CreateFlare)
		r.Put("/flares/{id}", h.UpdateFlare)
		r.Delete("/flares/{id}", h.DeleteFlare)
		r.Post("/flares/{id}/images", h.UploadPhoto)
		r.Post("/flares/{id}/contribute", h.Contribute)

		r.Post("/known-places", h.CreateKnownPlace)
		r.Delete("/known-places/{id}", h.DeleteKnownPlace)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
