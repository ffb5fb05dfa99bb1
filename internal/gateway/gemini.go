package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/log"
)

// Gemini is a Client backed by the Gemini API.
type Gemini struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int32
	logger          log.Logger
}

// NewGemini creates a Gemini client for the given model. temperature and
// maxOutputTokens are defaults applied when a request leaves them zero.
func NewGemini(client *genai.Client, model string, temperature float32, maxOutputTokens int32, logger log.Logger) (*Gemini, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Gemini{
		client:          client,
		model:           model,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
		logger:          logger,
	}, nil
}

// Complete performs a single completion attempt. System messages become the
// system instruction; user and assistant turns map to the API's user and
// model roles.
func (g *Gemini) Complete(ctx context.Context, req Request) (Completion, error) {
	contents, system, err := convertMessages(req.Messages)
	if err != nil {
		return Completion{}, err
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = g.temperature
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = g.maxOutputTokens
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: maxTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return Completion{}, classifyAPIError(err)
	}

	text := resp.Text()
	if text == "" {
		return Completion{}, fmt.Errorf("%w: model returned an empty completion", fault.ErrServiceUnavailable)
	}

	completion := Completion{Text: text}
	if resp.UsageMetadata != nil {
		completion.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	g.logger.Debug("completion generated",
		"model", g.model,
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens)
	return completion, nil
}

// convertMessages splits messages into API contents and a combined system
// instruction. Unknown roles are rejected.
func convertMessages(messages []Message) ([]*genai.Content, string, error) {
	contents := make([]*genai.Content, 0, len(messages))
	var system []string
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			return nil, "", fmt.Errorf("%w: unknown message role %q", fault.ErrValidation, msg.Role)
		}
	}
	if len(contents) == 0 {
		return nil, "", fmt.Errorf("%w: request needs at least one user or assistant message", fault.ErrValidation)
	}
	return contents, strings.Join(system, "\n\n"), nil
}

// classifyAPIError maps API failures onto the package's sentinel errors so
// callers can decide whether to retry.
func classifyAPIError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("generating completion: %w", err)
	}
	switch apiErr.Code {
	case 429:
		return fmt.Errorf("%w: %s", fault.ErrRateLimited, apiErr.Message)
	case 400:
		return fmt.Errorf("%w: %s", fault.ErrInvalidRequest, apiErr.Message)
	case 503:
		return fmt.Errorf("%w: %s", fault.ErrServiceUnavailable, apiErr.Message)
	default:
		return fmt.Errorf("generating completion (status %d): %w", apiErr.Code, err)
	}
}
