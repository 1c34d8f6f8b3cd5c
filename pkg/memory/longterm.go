package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/lila-ai/lila-go/pkg/embedder"
	"github.com/lila-ai/lila-go/pkg/storage"
)

// Recollection is a long-term memory returned by a similarity query.
type Recollection struct {
	// Text is the stored segment summary.
	Text string

	// CreatedAt is when the segment was promoted.
	CreatedAt time.Time

	// Score is the similarity to the query (0.0-1.0).
	Score float64
}

// LongTermIndex is the similarity-searchable archive of closed
// conversation segments, one logical index per user on a shared
// backend. Entries are write-once; only a whole-user erase removes
// them.
//
// The read path degrades rather than fails: an unreadable backend is
// treated as "no long-term memory yet", because a cold index is always
// an acceptable recovery state.
type LongTermIndex struct {
	store    storage.VectorStore
	embedder embedder.Provider
	node     *snowflake.Node
	logger   *slog.Logger
}

// NewLongTermIndex creates an index over the given backend and
// embedding provider.
func NewLongTermIndex(store storage.VectorStore, emb embedder.Provider, logger *slog.Logger) (*LongTermIndex, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LongTermIndex{store: store, embedder: emb, node: node, logger: logger}, nil
}

// Add embeds text and appends it to the user's index with a creation
// timestamp.
func (i *LongTermIndex) Add(ctx context.Context, userID, text string) error {
	vector, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	return i.store.Insert(ctx, &storage.Entry{
		ID:        i.node.Generate().Int64(),
		UserID:    userID,
		Content:   text,
		Embedding: vector,
		CreatedAt: time.Now(),
	})
}

// Query embeds the context text and returns the top-k most similar
// stored segments. Backend read failures return no recollections, not
// an error.
func (i *LongTermIndex) Query(ctx context.Context, userID, contextText string, k int) ([]Recollection, error) {
	vector, err := i.embedder.Embed(ctx, contextText)
	if err != nil {
		return nil, err
	}
	entries, err := i.store.Search(ctx, userID, vector, k)
	if err != nil {
		i.logger.Warn("long-term index unreadable, treating as cold",
			"user_id", userID, "error", err)
		return nil, nil
	}
	recollections := make([]Recollection, 0, len(entries))
	for _, e := range entries {
		recollections = append(recollections, Recollection{
			Text:      e.Content,
			CreatedAt: e.CreatedAt,
			Score:     e.Score,
		})
	}
	return recollections, nil
}

// Exists reports whether the user has any long-term memory. Backend
// failures report false.
func (i *LongTermIndex) Exists(ctx context.Context, userID string) (bool, error) {
	count, err := i.store.CountUser(ctx, userID)
	if err != nil {
		return false, nil
	}
	return count > 0, nil
}

// Erase removes every long-term entry for the user. Erasing a user
// with no entries is a no-op.
func (i *LongTermIndex) Erase(ctx context.Context, userID string) error {
	return i.store.DeleteUser(ctx, userID)
}
