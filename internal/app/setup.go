package app

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/datasundae/pragi/db"
	"github.com/datasundae/pragi/internal/answer"
	"github.com/datasundae/pragi/internal/config"
	"github.com/datasundae/pragi/internal/database"
	"github.com/datasundae/pragi/internal/embed"
	"github.com/datasundae/pragi/internal/gateway"
	"github.com/datasundae/pragi/internal/ingest"
	"github.com/datasundae/pragi/internal/ingestlog"
	"github.com/datasundae/pragi/internal/log"
	"github.com/datasundae/pragi/internal/prompt"
	"github.com/datasundae/pragi/internal/retriever"
	"github.com/datasundae/pragi/internal/tokenizer"
	"github.com/datasundae/pragi/internal/vecstore"
)

// Setup creates and initializes the application. Migrations are applied
// before the pool opens. Call Close() to release resources; on a setup
// failure everything already initialized is cleaned up here.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if err := cfg.ValidateAI(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.DBPool = pool

	client, err := provideGenAIClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.Index, err = vecstore.New(pool, cfg.EmbeddingDimension, logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}

	embedder, err := embed.NewGemini(client, cfg.EmbedderModel, cfg.EmbeddingDimension, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	a.Retriever, err = retriever.New(a.Index, embedder, retriever.Defaults{
		TopK:      cfg.DefaultK,
		Threshold: cfg.SimilarityThreshold,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	packer, err := prompt.NewPacker(provideTokenizer(cfg, logger))
	if err != nil {
		return nil, fmt.Errorf("creating context packer: %w", err)
	}

	gw, err := provideGateway(client, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Answer, err = answer.New(a.Retriever, packer, gw,
		prompt.Budget{MaxTotalTokens: cfg.MaxTotalTokens, MaxDocTokens: cfg.MaxDocTokens}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating answer service: %w", err)
	}

	a.Tracker, err = ingestlog.New(cfg.IngestLogDir, logger)
	if err != nil {
		return nil, fmt.Errorf("creating ingestion tracker: %w", err)
	}

	a.Ingest, err = ingest.New(a.Index, embedder, a.Tracker, logger)
	if err != nil {
		return nil, fmt.Errorf("creating ingest service: %w", err)
	}

	return a, nil
}

// provideGenAIClient creates the Gemini API client shared by the embedder
// and the completion gateway.
func provideGenAIClient(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return client, nil
}

// provideTokenizer returns the BPE tokenizer for the configured model,
// falling back to whitespace counting when the encoding data cannot load
// (an offline machine, typically). Whitespace counts run coarser, so packed
// contexts stay within budget either way.
func provideTokenizer(cfg *config.Config, logger log.Logger) tokenizer.Tokenizer {
	tok, err := tokenizer.NewTiktoken(cfg.TokenizerModel)
	if err != nil {
		logger.Warn("tokenizer encoding unavailable, falling back to whitespace counting",
			"model", cfg.TokenizerModel, "error", err)
		return tokenizer.Simple{}
	}
	return tok
}

// provideGateway builds the retrying completion gateway around the Gemini
// client.
func provideGateway(client *genai.Client, cfg *config.Config, logger log.Logger) (*gateway.Gateway, error) {
	gemini, err := gateway.NewGemini(client, cfg.ModelName, cfg.Temperature, cfg.MaxOutputTokens, logger)
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}

	gw, err := gateway.New(gemini, gateway.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BackoffBase: cfg.BackoffBase,
		BackoffCap:  cfg.BackoffCap,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating completion gateway: %w", err)
	}
	return gw, nil
}
