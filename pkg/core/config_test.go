package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lila-ai/lila-go/pkg/core"
)

func validConfig() *core.Config {
	return &core.Config{
		Telegram: core.TelegramConfig{
			Token:              "bot-token",
			PollTimeoutSeconds: 30,
		},
		LLM: core.LLMConfig{
			APIKey:    "test-key",
			ChatModel: "gpt-4",
			FastModel: "gpt-3.5-turbo",
		},
		Embedder: core.EmbedderConfig{
			APIKey:     "test-key",
			Model:      "text-embedding-ada-002",
			Dimensions: 1536,
		},
		Memory: core.MemoryConfig{
			DataDir:     "./data",
			TokenBudget: 6000,
		},
		Storage: core.StorageConfig{
			Provider: "sqlite",
			DBPath:   "./data/ltm.db",
			Table:    "segments",
		},
	}
}

func TestConfigValidate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*core.Config)
	}{
		{"missing api key", func(c *core.Config) { c.LLM.APIKey = "" }},
		{"missing chat model", func(c *core.Config) { c.LLM.ChatModel = "" }},
		{"missing fast model", func(c *core.Config) { c.LLM.FastModel = "" }},
		{"missing embedding model", func(c *core.Config) { c.Embedder.Model = "" }},
		{"zero dimensions", func(c *core.Config) { c.Embedder.Dimensions = 0 }},
		{"missing data dir", func(c *core.Config) { c.Memory.DataDir = "" }},
		{"zero token budget", func(c *core.Config) { c.Memory.TokenBudget = 0 }},
		{"sqlite without db path", func(c *core.Config) { c.Storage.DBPath = "" }},
		{"unknown provider", func(c *core.Config) { c.Storage.Provider = "redis" }},
		{"missing table", func(c *core.Config) { c.Storage.Table = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestConfigValidate_DSNBackends(t *testing.T) {
	for _, provider := range []string{"postgres", "mysql"} {
		t.Run(provider, func(t *testing.T) {
			cfg := validConfig()
			cfg.Storage.Provider = provider
			cfg.Storage.DBPath = ""

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInvalidConfig)

			cfg.Storage.DSN = "host=localhost"
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")
	t.Setenv("LILA_DATA_DIR", "/tmp/lila-test")

	cfg, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", cfg.LLM.ChatModel)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.FastModel)
	assert.Equal(t, "text-embedding-ada-002", cfg.Embedder.Model)
	assert.Equal(t, 1536, cfg.Embedder.Dimensions)
	assert.Equal(t, 6000, cfg.Memory.TokenBudget)
	assert.Equal(t, "sqlite", cfg.Storage.Provider)
	assert.Equal(t, "/tmp/lila-test/ltm.db", cfg.Storage.DBPath)
	assert.Equal(t, "segments", cfg.Storage.Table)
	assert.Equal(t, 30, cfg.Telegram.PollTimeoutSeconds)
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("LILA_CHAT_MODEL", "gpt-4-turbo")
	t.Setenv("LILA_TOKEN_BUDGET", "2000")
	t.Setenv("LILA_STORAGE_PROVIDER", "postgres")
	t.Setenv("LILA_STORAGE_DSN", "host=localhost user=lila")

	cfg, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4-turbo", cfg.LLM.ChatModel)
	assert.Equal(t, 2000, cfg.Memory.TokenBudget)
	assert.Equal(t, "postgres", cfg.Storage.Provider)
}

func TestLoadConfigFromEnv_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := core.LoadConfigFromEnv()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
