package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/garystarr-surgi/wholesale-management/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps core errors to HTTP statuses: ErrNotFound → 404,
// InvalidParamError → 400, anything else → 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *core.InvalidParamError
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &invalid):
		writeError(w, r, err.Error(), "INVALID_PARAM", http.StatusBadRequest)
	default:
		writeError(w, r, err.Error(), "INTERNAL", http.StatusInternalServerError)
	}
}
