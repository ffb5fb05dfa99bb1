package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/ingest"
	"github.com/datasundae/pragi/internal/log"
)

type fakeIngester struct {
	result ingest.Result
	err    error
	gotReq ingest.Request
	calls  int
}

func (f *fakeIngester) Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error) {
	f.calls++
	f.gotReq = req
	if f.err != nil {
		return ingest.Result{}, f.err
	}
	return f.result, nil
}

func ingestMux(ingester Ingester) *http.ServeMux {
	mux := http.NewServeMux()
	NewIngestHandler(ingester, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestIngestHandler_Success(t *testing.T) {
	ingester := &fakeIngester{result: ingest.Result{DocID: "doc-1", FileHash: "abc"}}
	mux := ingestMux(ingester)

	body := `{"filename": "aion.pdf", "text": "content", "metadata": {"type": "book"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp IngestResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "doc-1", resp.DocID)
	assert.Equal(t, "abc", resp.FileHash)

	assert.Equal(t, "aion.pdf", ingester.gotReq.Filename)
	assert.Equal(t, "content", ingester.gotReq.Text)
	assert.Equal(t, "book", ingester.gotReq.Metadata["type"])
}

func TestIngestHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing filename", `{"text": "content"}`},
		{"missing text", `{"filename": "a.pdf"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingester := &fakeIngester{}
			mux := ingestMux(ingester)

			req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, ingester.calls)
		})
	}
}

func TestIngestHandler_PipelineErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", fmt.Errorf("%w: bad dimension", fault.ErrValidation), http.StatusBadRequest},
		{"storage", fault.ErrStorage, http.StatusBadGateway},
		{"embedder busy", fault.ErrServiceBusy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := ingestMux(&fakeIngester{err: tt.err})

			body := `{"filename": "a.pdf", "text": "content"}`
			req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
