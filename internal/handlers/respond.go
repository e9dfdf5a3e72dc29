package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/karhabti/karhabti-api/internal/apperr"
)

// envelope is the uniform response body shape.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string, fieldErrors []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Message: message, Errors: fieldErrors})
}

// writeError translates an error from the core into an HTTP response,
// preserving its kind: NotFound 404, Conflict 409, validation 400 with
// per-field messages, everything store-side 500.
func writeError(w http.ResponseWriter, err error) {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		msgs := make([]string, len(ve.Fields))
		for i, f := range ve.Fields {
			msgs[i] = f.Field + ": " + f.Message
		}
		writeFailure(w, http.StatusBadRequest, "Validation error", msgs)
		return
	}

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "Not found", nil)
	case errors.Is(err, apperr.ErrConflict):
		writeFailure(w, http.StatusConflict, err.Error(), nil)
	case apperr.IsInvariantViolation(err):
		// Already logged with its details by the consistency manager.
		writeFailure(w, http.StatusInternalServerError, "Internal inconsistency detected", nil)
	default:
		log.WithError(err).Error("request failed")
		writeFailure(w, http.StatusInternalServerError, "Server error", nil)
	}
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
