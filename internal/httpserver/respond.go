package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"chatline/internal/domain"
)

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the domain error taxonomy onto HTTP status codes.
// Expired-link errors additionally carry the account email so the client
// can offer a resend.
func writeError(w http.ResponseWriter, err error) {
	var expired *domain.ExpiredLinkError
	if errors.As(err, &expired) {
		writeJSON(w, http.StatusGone, map[string]string{
			"error": expired.Error(),
			"email": expired.Email,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
