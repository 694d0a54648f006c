package api

import (
	"encoding/json"
	"net/http"

	"github.com/mviana/labtrack/internal/errors"
	"github.com/mviana/labtrack/internal/logger"
)

// handleError centralizes error handling for HTTP responses
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	appErr, ok := err.(*errors.AppError)
	if !ok {
		// Wrap unknown errors as internal errors
		appErr = errors.NewInternalError(err)
	}

	if appErr.Status >= 500 {
		log.Error("server error: %v", appErr)
	} else if appErr.Status >= 400 {
		log.Warn("client error: %v", appErr)
	} else {
		log.Debug("error: %v", appErr)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	// The message never carries wrapped internal detail, only Code/Message.
	encodeErr := json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error: &errorEnvelope{
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	})
	if encodeErr != nil {
		log.Error("failed to encode error response: %v", encodeErr)
	}
}
