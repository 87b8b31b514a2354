package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xinyao2002/payfrontwithback/internal/auth"
	"github.com/xinyao2002/payfrontwithback/internal/service"
	"github.com/xinyao2002/payfrontwithback/internal/storage"
)

// writeJSON writes a success response with the standard JSON encoding.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr writes an error response as {"error": "..."} with the status
// code mapped from the error taxonomy.
func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes:
// absent bill/split → 404, malformed request → 400, bad credentials → 401,
// anything else (lock/connectivity trouble included) → 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrEmailExists):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
