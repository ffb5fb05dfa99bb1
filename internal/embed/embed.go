// Package embed maps text to fixed-dimension vectors via an external
// embedding model. The model itself is a pluggable dependency; this package
// defines the interface the pipeline consumes and a Gemini-backed
// implementation.
package embed

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/log"
)

// Embedder maps text to a fixed-dimension numeric vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Gemini is an Embedder backed by the Gemini embedding API.
// The output dimensionality is pinned to the index dimension so every
// vector matches the documents table schema.
type Gemini struct {
	client    *genai.Client
	model     string
	dimension int32
	logger    log.Logger
}

// NewGemini creates a Gemini embedder.
func NewGemini(client *genai.Client, model string, dimension int, logger log.Logger) (*Gemini, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Gemini{
		client:    client,
		model:     model,
		dimension: int32(dimension),
		logger:    logger,
	}, nil
}

// Embed returns the embedding vector for text.
// Empty or whitespace-only text fails with fault.ErrValidation.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text must not be empty", fault.ErrValidation)
	}

	dim := g.dimension
	resp, err := g.client.Models.EmbedContent(ctx, g.model,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &dim},
	)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	vec := resp.Embeddings[0].Values
	if len(vec) != int(g.dimension) {
		return nil, fmt.Errorf("embedder returned %d dimensions, want %d", len(vec), g.dimension)
	}

	g.logger.Debug("embedded text", "model", g.model, "chars", len(text))
	return vec, nil
}
