// Package prompt assembles retrieved documents into a token-budgeted
// context block for the completion model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/tokenizer"
	"github.com/datasundae/pragi/internal/vecstore"
)

// Budget bounds the assembled context. MaxDocTokens caps each document's
// text before formatting; MaxTotalTokens caps the formatted chunks as a
// whole. MaxDocTokens must not exceed MaxTotalTokens.
type Budget struct {
	MaxTotalTokens int
	MaxDocTokens   int
}

// PackedContext is the result of packing: the chunks that fit, in input
// order, and their combined token count.
type PackedContext struct {
	Chunks      []string
	TotalTokens int
}

// Text joins the packed chunks into the context block handed to the model.
func (p PackedContext) Text() string {
	return strings.Join(p.Chunks, "\n\n")
}

// Packer formats and budget-packs retrieval results. Packing is
// deterministic: the same results, budget and tokenizer always produce the
// same chunks.
type Packer struct {
	tok tokenizer.Tokenizer
}

// NewPacker creates a Packer using tok for all token accounting.
func NewPacker(tok tokenizer.Tokenizer) (*Packer, error) {
	if tok == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	return &Packer{tok: tok}, nil
}

// Pack formats each result into a source-attributed chunk and greedily packs
// whole chunks in input order. The first chunk that would push the total
// over budget stops packing; it and all later chunks are excluded. A chunk
// is never split.
func (p *Packer) Pack(results []vecstore.Result, budget Budget) (PackedContext, error) {
	if budget.MaxTotalTokens <= 0 {
		return PackedContext{}, fmt.Errorf("%w: max total tokens must be positive, got %d",
			fault.ErrValidation, budget.MaxTotalTokens)
	}
	if budget.MaxDocTokens <= 0 {
		return PackedContext{}, fmt.Errorf("%w: max document tokens must be positive, got %d",
			fault.ErrValidation, budget.MaxDocTokens)
	}
	if budget.MaxDocTokens > budget.MaxTotalTokens {
		return PackedContext{}, fmt.Errorf("%w: max document tokens %d exceeds total budget %d",
			fault.ErrValidation, budget.MaxDocTokens, budget.MaxTotalTokens)
	}

	packed := PackedContext{Chunks: make([]string, 0, len(results))}
	for _, res := range results {
		chunk := p.formatChunk(res, budget.MaxDocTokens)
		cost := p.tok.Count(chunk)
		if packed.TotalTokens+cost > budget.MaxTotalTokens {
			break
		}
		packed.Chunks = append(packed.Chunks, chunk)
		packed.TotalTokens += cost
	}
	return packed, nil
}

// formatChunk renders one result with its source attribution header. The
// document text is truncated to maxDocTokens on a token boundary, with an
// ellipsis marking the cut.
func (p *Packer) formatChunk(res vecstore.Result, maxDocTokens int) string {
	text := res.Document.Text
	if p.tok.Count(text) > maxDocTokens {
		text = p.tok.Truncate(text, maxDocTokens) + "..."
	}

	title := metadataString(res.Document.Metadata, "title", "Unknown Title")
	author := metadataString(res.Document.Metadata, "author", "Unknown Author")
	page := metadataString(res.Document.Metadata, "page", "Unknown")

	return fmt.Sprintf("From '%s' by %s\nPage: %s\nSimilarity Score: %.4f\n\n%s",
		title, author, page, res.Similarity, text)
}

// metadataString reads a metadata value as display text, falling back when
// the key is absent or empty. Non-string scalars (page numbers, typically)
// are rendered with their default formatting.
func metadataString(metadata map[string]any, key, fallback string) string {
	value, ok := metadata[key]
	if !ok || value == nil {
		return fallback
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
