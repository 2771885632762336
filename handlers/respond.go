package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/LWS49/reading-list-api/apperr"
	"github.com/LWS49/reading-list-api/store"
)

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeValidationErrors answers a failed payload validation with the full
// violation list; no partial acceptance.
func writeValidationErrors(w http.ResponseWriter, violations []ValidationError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":   "validation failed",
		"details": violations,
	})
}

// respondError is the single terminal mapping from typed errors to HTTP
// statuses. Anything untyped is logged and answered with a generic 500.
func respondError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		writeError(w, ae.Status, ae.Message)
		return
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
