package agent

import (
	"fmt"
	"log/slog"

	"github.com/lila-ai/lila-go/pkg/core"
	openaiEmbedder "github.com/lila-ai/lila-go/pkg/embedder/openai"
	openaiLLM "github.com/lila-ai/lila-go/pkg/llm/openai"
	"github.com/lila-ai/lila-go/pkg/storage"
	mysqlStore "github.com/lila-ai/lila-go/pkg/storage/mysql"
	postgresStore "github.com/lila-ai/lila-go/pkg/storage/postgres"
	sqliteStore "github.com/lila-ai/lila-go/pkg/storage/sqlite"
	"github.com/lila-ai/lila-go/pkg/tokenizer"
)

// NewFromConfig builds a fully wired orchestrator from configuration:
// OpenAI chat and fast models, the OpenAI embedder, the tiktoken
// counter for the chat model, and the configured long-term index
// backend.
func NewFromConfig(cfg *core.Config, logger *slog.Logger) (*Lila, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chat, err := openaiLLM.NewClient(&openaiLLM.Config{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.ChatModel,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	fast, err := openaiLLM.NewClient(&openaiLLM.Config{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.FastModel,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	emb, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{
		APIKey:     cfg.Embedder.APIKey,
		Model:      cfg.Embedder.Model,
		BaseURL:    cfg.Embedder.BaseURL,
		Dimensions: cfg.Embedder.Dimensions,
	})
	if err != nil {
		return nil, err
	}

	counter, err := tokenizer.NewCounter(cfg.LLM.ChatModel)
	if err != nil {
		return nil, err
	}

	store, err := OpenVectorStore(cfg)
	if err != nil {
		return nil, err
	}

	return New(cfg, chat, fast, emb, store, counter, logger)
}

// OpenVectorStore opens the long-term index backend named by the
// configuration.
func OpenVectorStore(cfg *core.Config) (storage.VectorStore, error) {
	switch cfg.Storage.Provider {
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath: cfg.Storage.DBPath,
			Table:  cfg.Storage.Table,
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			DSN:        cfg.Storage.DSN,
			Table:      cfg.Storage.Table,
			Dimensions: cfg.Embedder.Dimensions,
		})
	case "mysql":
		return mysqlStore.NewClient(&mysqlStore.Config{
			DSN:   cfg.Storage.DSN,
			Table: cfg.Storage.Table,
		})
	default:
		return nil, fmt.Errorf("%w: unsupported storage provider %q", core.ErrInvalidConfig, cfg.Storage.Provider)
	}
}
