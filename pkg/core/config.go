package core

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for the Lila agent.
//
// It includes settings for:
//   - Telegram transport (bot token, polling)
//   - LLM provider (chat and utility models)
//   - Embedding provider (for the long-term index)
//   - Memory behaviour (data directory, token budget)
//   - Long-term index storage backend
type Config struct {
	// Telegram contains Telegram transport configuration.
	Telegram TelegramConfig `json:"telegram"`

	// LLM contains language model configuration.
	LLM LLMConfig `json:"llm"`

	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// Memory contains memory subsystem configuration.
	Memory MemoryConfig `json:"memory"`

	// Storage contains long-term index storage configuration.
	Storage StorageConfig `json:"storage"`
}

// TelegramConfig contains configuration for the Telegram transport.
type TelegramConfig struct {
	// Token is the Telegram Bot API token.
	Token string `json:"token"`

	// PollTimeoutSeconds is the long-poll timeout for getUpdates.
	PollTimeoutSeconds int `json:"poll_timeout_seconds"`
}

// LLMConfig contains configuration for the language model provider.
//
// Two models are used: ChatModel generates user-visible replies, and
// FastModel runs the cheaper background calls (summarization, boundary
// classification, profile extraction).
type LLMConfig struct {
	// APIKey is the API key for the provider.
	APIKey string `json:"api_key"`

	// ChatModel is the model used to generate replies (e.g. "gpt-4").
	ChatModel string `json:"chat_model"`

	// FastModel is the model used for summarization and classification
	// (e.g. "gpt-3.5-turbo").
	FastModel string `json:"fast_model"`

	// BaseURL is the base URL for the API (optional, uses the provider
	// default if empty).
	BaseURL string `json:"base_url,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
type EmbedderConfig struct {
	// APIKey is the API key for the provider.
	APIKey string `json:"api_key"`

	// Model is the embedding model name (e.g. "text-embedding-ada-002").
	Model string `json:"model"`

	// Dimensions is the dimension of the produced vectors.
	Dimensions int `json:"dimensions"`

	// BaseURL is the base URL for the API (optional).
	BaseURL string `json:"base_url,omitempty"`
}

// MemoryConfig contains configuration for the memory subsystem.
type MemoryConfig struct {
	// DataDir is the root directory for per-user memory files.
	DataDir string `json:"data_dir"`

	// TokenBudget is the rolling summary buffer budget, including the
	// summary text itself.
	TokenBudget int `json:"token_budget"`
}

// StorageConfig contains configuration for the long-term index backend.
//
// Supported providers: sqlite, postgres, mysql.
type StorageConfig struct {
	// Provider is the backend name (sqlite, postgres, mysql).
	Provider string `json:"provider"`

	// DBPath is the database file path (sqlite only).
	DBPath string `json:"db_path,omitempty"`

	// DSN is the connection string (postgres and mysql).
	DSN string `json:"dsn,omitempty"`

	// Table is the table holding long-term entries.
	Table string `json:"table"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// A .env file in the working directory is loaded first if present
// (missing .env is not an error).
//
// Recognized variables:
//   - TELEGRAM_BOT_TOKEN
//   - OPENAI_API_KEY, OPENAI_BASE_URL
//   - LILA_CHAT_MODEL (default "gpt-4")
//   - LILA_FAST_MODEL (default "gpt-3.5-turbo")
//   - LILA_EMBEDDING_MODEL (default "text-embedding-ada-002")
//   - LILA_EMBEDDING_DIMS (default 1536)
//   - LILA_DATA_DIR (default "./data")
//   - LILA_TOKEN_BUDGET (default 6000)
//   - LILA_STORAGE_PROVIDER (default "sqlite")
//   - LILA_STORAGE_DB_PATH (default "<data dir>/ltm.db")
//   - LILA_STORAGE_DSN
//   - LILA_STORAGE_TABLE (default "segments")
//   - LILA_POLL_TIMEOUT (default 30)
func LoadConfigFromEnv() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("LILA_DATA_DIR", "./data")

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:              os.Getenv("TELEGRAM_BOT_TOKEN"),
			PollTimeoutSeconds: getEnvInt("LILA_POLL_TIMEOUT", 30),
		},
		LLM: LLMConfig{
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			ChatModel: getEnv("LILA_CHAT_MODEL", "gpt-4"),
			FastModel: getEnv("LILA_FAST_MODEL", "gpt-3.5-turbo"),
			BaseURL:   os.Getenv("OPENAI_BASE_URL"),
		},
		Embedder: EmbedderConfig{
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			Model:      getEnv("LILA_EMBEDDING_MODEL", "text-embedding-ada-002"),
			Dimensions: getEnvInt("LILA_EMBEDDING_DIMS", 1536),
			BaseURL:    os.Getenv("OPENAI_BASE_URL"),
		},
		Memory: MemoryConfig{
			DataDir:     dataDir,
			TokenBudget: getEnvInt("LILA_TOKEN_BUDGET", 6000),
		},
		Storage: StorageConfig{
			Provider: getEnv("LILA_STORAGE_PROVIDER", "sqlite"),
			DBPath:   getEnv("LILA_STORAGE_DB_PATH", dataDir+"/ltm.db"),
			DSN:      os.Getenv("LILA_STORAGE_DSN"),
			Table:    getEnv("LILA_STORAGE_TABLE", "segments"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: llm api key is required", ErrInvalidConfig)
	}
	if c.LLM.ChatModel == "" || c.LLM.FastModel == "" {
		return fmt.Errorf("%w: chat and fast models are required", ErrInvalidConfig)
	}
	if c.Embedder.Model == "" {
		return fmt.Errorf("%w: embedding model is required", ErrInvalidConfig)
	}
	if c.Embedder.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive", ErrInvalidConfig)
	}
	if c.Memory.DataDir == "" {
		return fmt.Errorf("%w: data dir is required", ErrInvalidConfig)
	}
	if c.Memory.TokenBudget <= 0 {
		return fmt.Errorf("%w: token budget must be positive", ErrInvalidConfig)
	}
	switch c.Storage.Provider {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("%w: sqlite storage requires a db path", ErrInvalidConfig)
		}
	case "postgres", "mysql":
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: %s storage requires a dsn", ErrInvalidConfig, c.Storage.Provider)
		}
	default:
		return fmt.Errorf("%w: unsupported storage provider %q", ErrInvalidConfig, c.Storage.Provider)
	}
	if c.Storage.Table == "" {
		return fmt.Errorf("%w: storage table is required", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
