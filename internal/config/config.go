// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.raggy/config.yaml, or ./config.yaml)
//  3. Default values
//
// Categories:
//   - AI: chat model, embedder model, generation temperature
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: top-k, partition key, vector search toggle
//   - Ingest: corpus batching and retry limits
//   - Telemetry: OTLP trace exporter endpoint
//
// Validation is fail-fast: Load returns an error before any component is
// constructed when a required value is missing or out of range. Sensitive
// values are masked in MarshalJSON/String so a Config can be logged safely.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Sentinel errors, checked with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required model API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the chat model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidPartitionKey indicates the document partition key is empty.
	ErrInvalidPartitionKey = errors.New("invalid partition key")

	// ErrInvalidBatchSize indicates the ingest batch size is out of range.
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrInvalidMaxRetries indicates the ingest retry limit is out of range.
	ErrInvalidMaxRetries = errors.New("invalid max retries")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultChatModel is the default provider-qualified chat model.
	DefaultChatModel = "googleai/gemini-2.5-flash"

	// DefaultEmbedderModel is the default embedder model. gemini-embedding-001
	// supports output truncation to 768 dimensions; the documents schema in
	// db/migrations uses 768.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultTemperature keeps generation near-deterministic. Grounded factual
	// answers should not vary stylistically between runs.
	DefaultTemperature = 0.2

	// DefaultTopK is the number of passages retrieved per turn.
	DefaultTopK = 5

	// DefaultPartitionKey groups ingested documents in the store.
	DefaultPartitionKey = "docs"

	// DefaultBatchSize is the ingest embedding batch size.
	DefaultBatchSize = 8

	// DefaultMaxRetries bounds retry attempts per ingest operation.
	DefaultMaxRetries = 5
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding new
// secrets, update MarshalJSON as well.
type Config struct {
	// AI model configuration
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature   float64 `mapstructure:"temperature" json:"temperature"`

	// Retrieval configuration
	TopK         int    `mapstructure:"top_k" json:"top_k"`
	PartitionKey string `mapstructure:"partition_key" json:"partition_key"`
	VectorSearch bool   `mapstructure:"vector_search" json:"vector_search"`
	EnableTools  bool   `mapstructure:"enable_tools" json:"enable_tools"`

	// Ingest configuration
	BatchSize  int    `mapstructure:"batch_size" json:"batch_size"`
	MaxRetries int    `mapstructure:"max_retries" json:"max_retries"`
	CorpusPath string `mapstructure:"corpus_path" json:"corpus_path"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Telemetry configuration
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".raggy")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when present.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// AI defaults
	viper.SetDefault("model_name", DefaultChatModel)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("temperature", DefaultTemperature)

	// Retrieval defaults
	viper.SetDefault("top_k", DefaultTopK)
	viper.SetDefault("partition_key", DefaultPartitionKey)
	viper.SetDefault("vector_search", true)
	viper.SetDefault("enable_tools", false)

	// Ingest defaults
	viper.SetDefault("batch_size", DefaultBatchSize)
	viper.SetDefault("max_retries", DefaultMaxRetries)
	viper.SetDefault("corpus_path", "data/corpus.jsonl")

	// PostgreSQL defaults for local development
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "raggy")
	viper.SetDefault("postgres_password", "raggy_dev_password")
	viper.SetDefault("postgres_db_name", "raggy")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Telemetry defaults
	viper.SetDefault("otlp_endpoint", "localhost:4318")
	viper.SetDefault("service_name", "raggy")
	viper.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by the model plugin, not via viper; its
// presence is checked in Validate.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "RAGGY_MODEL_NAME")
	mustBind("embedder_model", "RAGGY_EMBEDDER_MODEL")
	mustBind("top_k", "RAGGY_TOP_K")
	mustBind("partition_key", "RAGGY_PARTITION_KEY")
	mustBind("vector_search", "RAGGY_VECTOR_SEARCH")
	mustBind("enable_tools", "RAGGY_ENABLE_TOOLS")
	mustBind("corpus_path", "RAGGY_CORPUS_PATH")
	mustBind("otlp_endpoint", "RAGGY_OTLP_ENDPOINT")
	mustBind("service_name", "RAGGY_SERVICE_NAME")
	mustBind("environment", "RAGGY_ENVIRONMENT")
}

// maskedValue is the placeholder for masked sensitive data. Full-width blocks
// avoid accidental substring matches against real secret fragments.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully masked;
// longer ones keep the first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
