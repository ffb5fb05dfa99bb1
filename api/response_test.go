package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasundae/pragi/internal/fault"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusCreated, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "value", body["key"])
}

func TestWriteFault(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("%w: bad input", fault.ErrValidation), http.StatusBadRequest, "invalid_request"},
		{"invalid request", fault.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
		{"not found", fault.ErrNotFound, http.StatusNotFound, "not_found"},
		{"rate limited", fault.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"service busy", fault.ErrServiceBusy, http.StatusServiceUnavailable, "service_busy"},
		{"service unavailable", fault.ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"deadline", fault.ErrDeadlineExceeded, http.StatusGatewayTimeout, "deadline_exceeded"},
		{"storage", fault.ErrStorage, http.StatusBadGateway, "storage_error"},
		{"unclassified", errors.New("mystery"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeFault(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode, resp.Error)
		})
	}
}

func TestWriteFaultHidesUnclassifiedDetails(t *testing.T) {
	w := httptest.NewRecorder()
	writeFault(w, errors.New("password=hunter2"))

	assert.NotContains(t, w.Body.String(), "hunter2")
}
