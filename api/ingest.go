package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/datasundae/pragi/internal/ingest"
	"github.com/datasundae/pragi/internal/log"
)

// MaxDocumentLength bounds the ingested document body (1 MiB).
const MaxDocumentLength = 1 << 20

// Ingester adds documents to the knowledge base.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// IngestHandler handles the ingest endpoint.
type IngestHandler struct {
	ingester Ingester
	logger   log.Logger
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(ingester Ingester, logger log.Logger) *IngestHandler {
	return &IngestHandler{ingester: ingester, logger: logger}
}

// RegisterRoutes registers ingest routes on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ingest", h.ingest)
}

// IngestRequest is the request body for an ingestion.
type IngestRequest struct {
	ID       string         `json:"id,omitempty"`
	Filename string         `json:"filename"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IngestResponse is the response body for a completed ingestion.
type IngestResponse struct {
	DocID    string `json:"doc_id"`
	FileHash string `json:"file_hash"`
}

func (h *IngestHandler) ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxDocumentLength+4096)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "filename is required")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	if len(req.Text) > MaxDocumentLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "document too large (max 1 MiB)")
		return
	}

	result, err := h.ingester.Ingest(r.Context(), ingest.Request{
		ID:       req.ID,
		Filename: req.Filename,
		Text:     req.Text,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.logger.Error("ingestion failed", "error", err, "filename", req.Filename)
		writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, IngestResponse{DocID: result.DocID, FileHash: result.FileHash})
}
