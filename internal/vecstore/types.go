package vecstore

import (
	"fmt"
	"time"

	"github.com/datasundae/pragi/internal/fault"
)

// Document is a stored text fragment with its embedding and metadata.
type Document struct {
	ID        string         // Opaque identifier; assigned on upsert when absent
	Text      string         // Never empty or whitespace-only
	Metadata  map[string]any // JSON-shaped metadata (string/number/bool/list/map values)
	Embedding []float32      // Length equals the index-wide configured dimension
	CreatedAt time.Time
}

// Result is a single search hit with its cosine similarity score in [-1, 1].
type Result struct {
	Document   Document
	Similarity float64
}

// filterKeys is the set of metadata keys the search filter supports.
// Unsupported keys are rejected, not silently ignored.
var filterKeys = map[string]struct{}{
	"title":    {},
	"author":   {},
	"page":     {},
	"type":     {},
	"source":   {},
	"person":   {},
	"filename": {},
}

// validateFilter checks that every filter key is supported and every value
// is a scalar suitable for exact-match comparison.
func validateFilter(filter map[string]any) error {
	for key, value := range filter {
		if _, ok := filterKeys[key]; !ok {
			return fmt.Errorf("%w: unsupported filter key %q", fault.ErrValidation, key)
		}
		switch value.(type) {
		case string, bool, int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("%w: filter value for %q must be a scalar, got %T",
				fault.ErrValidation, key, value)
		}
	}
	return nil
}
