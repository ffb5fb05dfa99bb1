package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/datasundae/pragi/internal/answer"
	"github.com/datasundae/pragi/internal/gateway"
	"github.com/datasundae/pragi/internal/log"
	"github.com/datasundae/pragi/internal/retriever"
)

// MaxMessageLength bounds the chat message body.
const MaxMessageLength = 10000

// Answerer produces knowledge-grounded answers.
type Answerer interface {
	Ask(ctx context.Context, query string, opts ...retriever.Option) (answer.Answer, error)
}

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	answerer Answerer
	logger   log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(answerer Answerer, logger log.Logger) *ChatHandler {
	return &ChatHandler{answerer: answerer, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.chat)
}

// ChatRequest is the request body for a chat turn.
type ChatRequest struct {
	Message   string  `json:"message"`
	K         int     `json:"k,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// ChatSource identifies one document that backed the answer.
type ChatSource struct {
	ID         string         `json:"id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Similarity float64        `json:"similarity"`
}

// ChatResponse is the response body for a chat turn.
type ChatResponse struct {
	Response   string        `json:"response"`
	HasContext bool          `json:"has_context"`
	Sources    []ChatSource  `json:"sources,omitempty"`
	Usage      gateway.Usage `json:"usage"`
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if len(req.Message) > MaxMessageLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "message too long (max 10000 characters)")
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

	ans, err := h.answerer.Ask(r.Context(), req.Message, opts...)
	if err != nil {
		h.logger.Error("chat failed", "error", err)
		writeFault(w, err)
		return
	}

	resp := ChatResponse{
		Response:   ans.Text,
		HasContext: ans.HasContext,
		Usage:      ans.Usage,
	}
	for _, src := range ans.Sources {
		resp.Sources = append(resp.Sources, ChatSource{
			ID:         src.Document.ID,
			Metadata:   src.Document.Metadata,
			Similarity: src.Similarity,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
