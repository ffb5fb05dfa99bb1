package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/datasundae/pragi/internal/log"
	"github.com/datasundae/pragi/internal/retriever"
	"github.com/datasundae/pragi/internal/vecstore"
)

// Search validation constants.
const (
	MaxQueryLength = 10000
	MaxSearchK     = 100
)

// Searcher runs similarity search over the knowledge base.
type Searcher interface {
	Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]vecstore.Result, error)
}

// SearchHandler handles the search endpoint.
type SearchHandler struct {
	searcher Searcher
	logger   log.Logger
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(searcher Searcher, logger log.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, logger: logger}
}

// RegisterRoutes registers search routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", h.search)
}

// SearchRequest is the request body for a search.
// K and Threshold of zero mean the configured defaults.
type SearchRequest struct {
	Query     string         `json:"query"`
	K         int            `json:"k,omitempty"`
	Threshold float64        `json:"threshold,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
}

// SearchResult is one hit in a search response.
type SearchResult struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Similarity float64        `json:"similarity"`
	CreatedAt  time.Time      `json:"created_at"`
}

// SearchResponse is the response body for a search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if len(req.Query) > MaxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 10000 characters)")
		return
	}
	if req.K < 0 || req.K > MaxSearchK {
		writeError(w, http.StatusBadRequest, "invalid_request", "k out of range (max 100)")
		return
	}

	var opts []retriever.Option
	if req.K > 0 {
		opts = append(opts, retriever.WithTopK(req.K))
	}
	if req.Threshold != 0 {
		opts = append(opts, retriever.WithThreshold(req.Threshold))
	}
	if len(req.Filter) > 0 {
		opts = append(opts, retriever.WithFilter(req.Filter))
	}

	results, err := h.searcher.Retrieve(r.Context(), req.Query, opts...)
	if err != nil {
		h.logger.Error("search failed", "error", err)
		writeFault(w, err)
		return
	}

	resp := SearchResponse{Results: make([]SearchResult, 0, len(results)), Total: len(results)}
	for _, res := range results {
		resp.Results = append(resp.Results, SearchResult{
			ID:         res.Document.ID,
			Text:       res.Document.Text,
			Metadata:   res.Document.Metadata,
			Similarity: res.Similarity,
			CreatedAt:  res.Document.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
