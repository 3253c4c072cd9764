package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	storeerr "github.com/eternalsentinel/sentinel/internal/storeerr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes a JSON error response.
func RespondError(w http.ResponseWriter, status int, err string, message string) {
	Respond(w, status, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

// RespondStoreError maps a tagged store error to the §7 response code and
// writes the corresponding error envelope. Callers that need a different
// status for a given error (e.g. 404 for a missing user vs. a missing
// check-in) should handle it before falling through to this helper.
func RespondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storeerr.ErrNotFound):
		RespondError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, storeerr.ErrAlreadyResolved):
		RespondError(w, http.StatusBadRequest, "already_resolved", "this item has already been resolved")
	case errors.Is(err, storeerr.ErrExpired):
		Respond(w, http.StatusBadRequest, map[string]any{
			"error":   "expired",
			"message": "this item has expired",
			"expired": true,
		})
	case errors.Is(err, storeerr.ErrConflict):
		RespondError(w, http.StatusBadRequest, "conflict", err.Error())
	case errors.Is(err, storeerr.ErrStoreUnavailable):
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "store temporarily unavailable, retry")
	default:
		slog.Error("unhandled store error", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
	}
}
