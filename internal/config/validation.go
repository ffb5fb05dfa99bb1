package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration validation.
// Checked with errors.Is(); wrapped with contextual detail at the call site.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidDimension indicates the embedding dimension is not positive.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidK indicates the default result count is not positive.
	ErrInvalidK = errors.New("invalid default k")

	// ErrInvalidThreshold indicates the similarity threshold is outside [-1, 1].
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidBudget indicates a token budget is non-positive or the
	// per-document budget exceeds the total budget.
	ErrInvalidBudget = errors.New("invalid token budget")

	// ErrInvalidRetry indicates the retry attempt count or backoff schedule
	// is invalid.
	ErrInvalidRetry = errors.New("invalid retry configuration")

	// ErrInvalidTemperature indicates the temperature is outside [0, 2].
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrMissingAPIKey indicates the Gemini API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")
)

// Validate checks all pipeline configuration values. It does not require an
// API key; commands that reach the completion or embedding service must also
// call ValidateAI.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidDimension, c.EmbeddingDimension)
	}
	if c.DefaultK <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidK, c.DefaultK)
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: %g (must be in [-1, 1])", ErrInvalidThreshold, c.SimilarityThreshold)
	}

	if c.MaxTotalTokens <= 0 {
		return fmt.Errorf("%w: max_total_tokens %d (must be positive)", ErrInvalidBudget, c.MaxTotalTokens)
	}
	if c.MaxDocTokens <= 0 {
		return fmt.Errorf("%w: max_doc_tokens %d (must be positive)", ErrInvalidBudget, c.MaxDocTokens)
	}
	if c.MaxDocTokens > c.MaxTotalTokens {
		return fmt.Errorf("%w: max_doc_tokens %d exceeds max_total_tokens %d",
			ErrInvalidBudget, c.MaxDocTokens, c.MaxTotalTokens)
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("%w: retry_max_attempts %d (must be at least 1)", ErrInvalidRetry, c.RetryMaxAttempts)
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("%w: backoff_base %v (must be positive)", ErrInvalidRetry, c.BackoffBase)
	}
	if c.BackoffCap < c.BackoffBase {
		return fmt.Errorf("%w: backoff_cap %v is below backoff_base %v",
			ErrInvalidRetry, c.BackoffCap, c.BackoffBase)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %g (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}

	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	return nil
}

// ValidateAI checks the settings required to reach the embedding and
// completion service.
func (c *Config) ValidateAI() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set PRAGI_GEMINI_API_KEY", ErrMissingAPIKey)
	}
	return nil
}
