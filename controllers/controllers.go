package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"dockline_server/models"
)

// writeJSON encodes a payload with the right content type.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

// writeError maps the service error taxonomy onto HTTP statuses.
// Validation and authorization failures surface verbatim; anything
// unexpected is hidden behind a 500.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation *models.ValidationError
		forbidden  *models.ForbiddenError
		notFound   *models.NotFoundError
		conflict   *models.ConflictError
		upload     *models.UploadError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error()})
	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": forbidden.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": conflict.Error()})
	case errors.As(err, &upload):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": upload.Error()})
	default:
		log.Printf("❌ Internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Dockline chat API"})
}
