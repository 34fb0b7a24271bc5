// Package handlers implements the HTTP handlers of the onboarding API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/averma/kyc-verify/internal/customer"
	"github.com/averma/kyc-verify/internal/onboarding"
	"github.com/averma/kyc-verify/internal/store"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors onto HTTP statuses. Validation
// and precondition problems are client errors; extraction failures are
// reported as a retryable condition, never a plain 500.
func respondServiceError(w http.ResponseWriter, err error) {
	var precondition *customer.ErrStagePrecondition

	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "customer not found")
	case errors.Is(err, customer.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &precondition):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, onboarding.ErrExtractionFailed):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     "could not process the capture, please resubmit this stage",
			"retryable": true,
		})
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
