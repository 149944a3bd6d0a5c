package handler

import (
	"encoding/json"
	"net/http"

	"doclens/internal/apperror"

	"github.com/rs/zerolog"
)

// respondJSON writes payload with the given status.
func respondJSON(w http.ResponseWriter, logger zerolog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError maps err onto its HTTP status and a JSON error body. The
// internal cause is logged, never returned to the client.
func respondError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	appErr := apperror.From(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("code", appErr.Code).Msg("Request failed")
	} else {
		logger.Warn().Err(err).Str("code", appErr.Code).Msg("Request rejected")
	}
	if appErr.Allow != "" {
		w.Header().Set("Allow", appErr.Allow)
	}
	respondJSON(w, logger, appErr.StatusCode, map[string]string{"error": appErr.Message})
}
