// Package answer orchestrates the question-answering pipeline: retrieve
// relevant documents, pack them into a token-budgeted context and ask the
// language model.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/gateway"
	"github.com/datasundae/pragi/internal/log"
	"github.com/datasundae/pragi/internal/prompt"
	"github.com/datasundae/pragi/internal/retriever"
	"github.com/datasundae/pragi/internal/vecstore"
)

const (
	systemPreamble = "You are a helpful AI assistant with access to a knowledge base. " +
		"Use the following context to answer the user's question. " +
		"If the context does not contain the answer, say so instead of guessing.\n\n"
	noContextNotice = "No specific information found in the knowledge base for this query."
)

// Retriever finds documents relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]vecstore.Result, error)
}

// Packer assembles retrieval results into a budgeted context block.
type Packer interface {
	Pack(results []vecstore.Result, budget prompt.Budget) (prompt.PackedContext, error)
}

// Completer produces chat completions.
type Completer interface {
	Complete(ctx context.Context, req gateway.Request) (gateway.Completion, error)
}

// Answer is the model's grounded reply. HasContext reports whether any
// knowledge base content backed the answer; Sources lists the documents
// retrieval found for the query.
type Answer struct {
	Text       string
	HasContext bool
	Sources    []vecstore.Result
	Usage      gateway.Usage
}

// Service runs the pipeline.
type Service struct {
	retriever Retriever
	packer    Packer
	completer Completer
	budget    prompt.Budget
	logger    log.Logger
}

// New creates a Service. budget bounds the packed context for every query.
func New(retriever Retriever, packer Packer, completer Completer, budget prompt.Budget, logger log.Logger) (*Service, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if packer == nil {
		return nil, fmt.Errorf("packer is required")
	}
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		retriever: retriever,
		packer:    packer,
		completer: completer,
		budget:    budget,
		logger:    logger,
	}, nil
}

// Ask answers query from the knowledge base. When retrieval finds nothing
// above the similarity threshold the model is still asked, with a system
// message stating that the knowledge base had nothing relevant; the model
// answers from general knowledge and HasContext is false.
func (s *Service) Ask(ctx context.Context, query string, opts ...retriever.Option) (Answer, error) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, fmt.Errorf("%w: query must not be empty", fault.ErrValidation)
	}

	results, err := s.retriever.Retrieve(ctx, query, opts...)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving context: %w", err)
	}

	packed, err := s.packer.Pack(results, s.budget)
	if err != nil {
		return Answer{}, fmt.Errorf("packing context: %w", err)
	}

	system := systemPreamble + noContextNotice
	hasContext := len(packed.Chunks) > 0
	if hasContext {
		system = systemPreamble + packed.Text()
	}

	completion, err := s.completer.Complete(ctx, gateway.Request{
		Messages: []gateway.Message{
			{Role: gateway.RoleSystem, Content: system},
			{Role: gateway.RoleUser, Content: query},
		},
	})
	if err != nil {
		return Answer{}, fmt.Errorf("generating answer: %w", err)
	}

	s.logger.Debug("answered query",
		"query_length", len(query),
		"sources", len(packed.Chunks),
		"context_tokens", packed.TotalTokens,
		"has_context", hasContext)

	sources := results
	if !hasContext {
		sources = nil
	}

	return Answer{
		Text:       completion.Text,
		HasContext: hasContext,
		Sources:    sources,
		Usage:      completion.Usage,
	}, nil
}
