// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables with the PRAGI_ prefix (runtime override)
//  2. Config file (~/.pragi/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Retrieval: embedding dimension, default k, similarity threshold
//   - Context: total and per-document token budgets
//   - Gateway: completion model, retry attempts, backoff schedule
//   - Storage: PostgreSQL connection, ingestion log directory
//
// Sensitive values (the database password, API keys) are never logged.
// Validation lives in validation.go with sentinel errors checked via
// errors.Is().
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for the retrieval-and-context-assembly pipeline. The similarity
// threshold and token budgets mirror the values the service shipped with;
// they are configuration, not constants, because no behavior depends on
// them being fixed.
const (
	// DefaultEmbeddingDimension matches the documents table schema
	// (vector(384)). Changing it requires a migration.
	DefaultEmbeddingDimension = 384

	// DefaultK is the number of nearest neighbors fetched per query.
	DefaultK = 10

	// DefaultSimilarityThreshold drops weakly related results.
	DefaultSimilarityThreshold = 0.3

	// DefaultMaxTotalTokens bounds the assembled context.
	DefaultMaxTotalTokens = 20000

	// DefaultMaxDocTokens bounds a single document's contribution.
	DefaultMaxDocTokens = 4000

	// DefaultRetryMaxAttempts is the total attempt budget for the
	// completion gateway (first call plus retries).
	DefaultRetryMaxAttempts = 3

	// DefaultBackoffBase is the initial retry delay.
	DefaultBackoffBase = 4 * time.Second

	// DefaultBackoffCap caps the exponential retry delay.
	DefaultBackoffCap = 10 * time.Second
)

// Config stores application configuration.
type Config struct {
	// Retrieval configuration
	EmbeddingDimension  int     `mapstructure:"embedding_dimension"`
	DefaultK            int     `mapstructure:"default_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`

	// Context assembly budgets
	MaxTotalTokens int `mapstructure:"max_total_tokens"`
	MaxDocTokens   int `mapstructure:"max_doc_tokens"`

	// Completion gateway
	GeminiAPIKey     string        `mapstructure:"gemini_api_key"`
	ModelName        string        `mapstructure:"model_name"`
	EmbedderModel    string        `mapstructure:"embedder_model"`
	Temperature      float32       `mapstructure:"temperature"`
	MaxOutputTokens  int32         `mapstructure:"max_output_tokens"`
	RetryMaxAttempts int           `mapstructure:"retry_max_attempts"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffCap       time.Duration `mapstructure:"backoff_cap"`

	// Tokenizer model used for token counting and truncation.
	TokenizerModel string `mapstructure:"tokenizer_model"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	// IngestLogDir is the directory holding ingestion_log.json and
	// ingestion_report.md.
	IngestLogDir string `mapstructure:"ingest_log_dir"`

	// HTTP server
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from defaults, the optional config file and the
// environment, in ascending priority.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PRAGI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			// A missing config file is fine; anything else is not.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for all recognized options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("embedding_dimension", DefaultEmbeddingDimension)
	v.SetDefault("default_k", DefaultK)
	v.SetDefault("similarity_threshold", DefaultSimilarityThreshold)
	v.SetDefault("max_total_tokens", DefaultMaxTotalTokens)
	v.SetDefault("max_doc_tokens", DefaultMaxDocTokens)

	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", "gemini-embedding-001")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_output_tokens", 1000)
	v.SetDefault("retry_max_attempts", DefaultRetryMaxAttempts)
	v.SetDefault("backoff_base", DefaultBackoffBase)
	v.SetDefault("backoff_cap", DefaultBackoffCap)

	v.SetDefault("tokenizer_model", "gpt-4")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "pragi")
	v.SetDefault("postgres_dbname", "pragi")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("ingest_log_dir", defaultIngestLogDir())
	v.SetDefault("addr", "127.0.0.1:5009")
}

// configDir returns ~/.pragi, creating nothing.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".pragi"), nil
}

func defaultIngestLogDir() string {
	dir, err := configDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "processed")
}

// quoteDSNValue quotes a value for PostgreSQL key=value DSN format.
// Within single quotes, backslashes and single quotes are escaped.
func quoteDSNValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// PostgresConnectionString returns the PostgreSQL DSN for the pgx driver.
// The password is single-quoted to handle special characters.
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresUser,
		quoteDSNValue(c.PostgresPassword),
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

// PostgresURL returns the postgres:// URL form used by golang-migrate.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser),
		url.QueryEscape(c.PostgresPassword),
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}
