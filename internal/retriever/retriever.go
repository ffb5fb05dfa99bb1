// Package retriever turns a natural-language query into ranked, relevant
// documents: embed the query, search the vector index, drop weak matches.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/log"
	"github.com/datasundae/pragi/internal/vecstore"
)

// Index is the nearest-neighbor search the retriever depends on.
type Index interface {
	Search(ctx context.Context, queryVec []float32, k int, filter map[string]any) ([]vecstore.Result, error)
}

// Embedder produces the query embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Defaults are the retrieval parameters applied when a Retrieve call
// passes no overriding option.
type Defaults struct {
	TopK      int
	Threshold float64
}

// DefaultRetrieval is the standard tuning: ten nearest neighbors, weak
// matches below 0.3 cosine similarity dropped.
var DefaultRetrieval = Defaults{TopK: 10, Threshold: 0.3}

func (d Defaults) validate() error {
	if d.TopK <= 0 {
		return fmt.Errorf("%w: default top-k must be positive, got %d", fault.ErrValidation, d.TopK)
	}
	if d.Threshold < -1 || d.Threshold > 1 {
		return fmt.Errorf("%w: default threshold must be in [-1, 1], got %g", fault.ErrValidation, d.Threshold)
	}
	return nil
}

// Option configures a single retrieval call.
type Option func(*options)

type options struct {
	topK      int
	threshold float64
	filter    map[string]any
}

// WithTopK sets how many candidates the index search returns before the
// similarity threshold is applied.
func WithTopK(k int) Option {
	return func(o *options) { o.topK = k }
}

// WithThreshold sets the minimum similarity a result must reach to be kept.
func WithThreshold(threshold float64) Option {
	return func(o *options) { o.threshold = threshold }
}

// WithFilter restricts the search to documents whose metadata contains
// every given key/value pair.
func WithFilter(filter map[string]any) Option {
	return func(o *options) { o.filter = filter }
}

// Retriever embeds queries and searches the index.
type Retriever struct {
	index    Index
	embedder Embedder
	defaults Defaults
	logger   log.Logger
}

// New creates a Retriever with the given per-call defaults.
func New(index Index, embedder Embedder, defaults Defaults, logger log.Logger) (*Retriever, error) {
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if err := defaults.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{index: index, embedder: embedder, defaults: defaults, logger: logger}, nil
}

// Retrieve embeds query, searches the index for the top candidates and
// returns those at or above the similarity threshold, preserving the
// index's similarity-descending order. An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...Option) ([]vecstore.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", fault.ErrValidation)
	}

	o := options{topK: r.defaults.TopK, threshold: r.defaults.Threshold}
	for _, opt := range opts {
		opt(&o)
	}
	if o.topK <= 0 {
		return nil, fmt.Errorf("%w: top-k must be positive, got %d", fault.ErrValidation, o.topK)
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := r.index.Search(ctx, queryVec, o.topK, o.filter)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	results := candidates[:0:0]
	for _, c := range candidates {
		if c.Similarity >= o.threshold {
			results = append(results, c)
		}
	}

	r.logger.Debug("retrieved documents",
		"query_length", len(query),
		"candidates", len(candidates),
		"kept", len(results),
		"threshold", o.threshold)
	return results, nil
}
