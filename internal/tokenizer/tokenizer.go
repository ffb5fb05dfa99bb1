// Package tokenizer counts and truncates text in model token units so
// context packing can enforce token budgets.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer measures text in tokens. Count and Truncate must agree: for any
// text and n, Count(Truncate(text, n)) <= n.
type Tokenizer interface {
	// Count returns the number of tokens in text.
	Count(text string) int
	// Truncate returns a prefix of text holding at most n tokens. The cut
	// falls on a token boundary, never inside a token.
	Truncate(text string, n int) string
}

// Tiktoken tokenizes with the BPE encoding of a specific model, matching
// how the completion model itself counts tokens.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken returns a Tiktoken for the given model name, falling back to
// the cl100k_base encoding when the model is unknown to the library.
func NewTiktoken(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("loading tokenizer encoding: %w", err)
		}
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *Tiktoken) Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	ids := t.enc.Encode(text, nil, nil)
	if len(ids) <= n {
		return text
	}
	return t.enc.Decode(ids[:n])
}

// Simple tokenizes on whitespace. It needs no encoding data files, so it
// serves as an offline fallback; its counts are coarser than BPE counts.
type Simple struct{}

func (Simple) Count(text string) int {
	return len(strings.Fields(text))
}

func (Simple) Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	fields := strings.Fields(text)
	if len(fields) <= n {
		return text
	}
	return strings.Join(fields[:n], " ")
}
