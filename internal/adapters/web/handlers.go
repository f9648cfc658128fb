package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/garystarr-surgi/wholesale-management/internal/app"
	"github.com/garystarr-surgi/wholesale-management/internal/core"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc           app.ApplicationService
	defaultPolicy core.SurplusPolicy
	router        chi.Router
}

// NewHandler creates and wires the chi router with all routes.
// defaultPolicy is applied when a request does not name one.
func NewHandler(svc app.ApplicationService, allowedOrigins string, defaultPolicy core.SurplusPolicy) http.Handler {
	h := &Handler{svc: svc, defaultPolicy: defaultPolicy}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	r.Route("/api/wholesale", func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/availability", h.availability)
		r.Post("/availability", h.availability)
		r.Get("/warehouses", h.warehouses)
		r.Get("/items/{code}", h.itemDetail)
		r.Post("/offer-prices", h.updateOfferPrices)
	})

	h.router = r
	return r
}

// health returns service status and the configured surplus policy.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
		Policy string `json:"policy"`
	}
	writeJSON(w, response{Status: "ok", Policy: string(h.defaultPolicy)})
}

// decodeJSON decodes the request body into v and returns false + writes an
// appropriate error response on failure. Returns HTTP 413 when the body
// exceeds the middleware size limit; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
