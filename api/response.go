package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/datasundae/pragi/internal/fault"
)

// writeJSON writes a JSON response with the given status code.
// Note: If encoding fails after WriteHeader is called, there's no way to
// notify the client since the status code is already sent. The error is
// logged for debugging but doesn't affect the response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// writeFault maps a pipeline error onto an HTTP status and error code.
// Internal details of unclassified errors are not exposed to clients.
func writeFault(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fault.ErrValidation), errors.Is(err, fault.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, fault.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, fault.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", "upstream model rate limited")
	case errors.Is(err, fault.ErrServiceBusy):
		writeError(w, http.StatusServiceUnavailable, "service_busy", "upstream model busy, retries exhausted")
	case errors.Is(err, fault.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "upstream model unavailable")
	case errors.Is(err, fault.ErrDeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "deadline_exceeded", "request deadline exceeded")
	case errors.Is(err, fault.ErrStorage):
		writeError(w, http.StatusBadGateway, "storage_error", "storage backend failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
