// Package storage provides the vector store interface and types for the
// long-term memory index.
//
// Entries are closed conversation segments owned by a single user. The
// store is append-only from the index's point of view: entries are never
// updated, and are deleted only by a whole-user erase.
package storage

import (
	"context"
	"math"
	"sort"
	"time"
)

// Entry is one long-term memory record: the summary of a closed
// conversation segment together with its embedding.
type Entry struct {
	// ID is the unique identifier of the entry.
	ID int64

	// UserID identifies the user who owns this entry.
	UserID string

	// Content is the segment summary text.
	Content string

	// Embedding is the vector embedding of Content.
	Embedding []float64

	// CreatedAt is when the segment was promoted to long-term memory.
	CreatedAt time.Time

	// Score is the similarity score populated by Search (0.0-1.0).
	Score float64
}

// VectorStore defines the interface for long-term index backends.
//
// All operations are scoped to a single user; entries belonging to
// different users never mix in results.
type VectorStore interface {
	// Insert appends a new entry.
	Insert(ctx context.Context, entry *Entry) error

	// Search returns up to limit entries for userID ranked by cosine
	// similarity to the query embedding, best first.
	Search(ctx context.Context, userID string, embedding []float64, limit int) ([]*Entry, error)

	// CountUser returns the number of entries stored for userID.
	CountUser(ctx context.Context, userID string) (int, error)

	// DeleteUser removes every entry owned by userID. Deleting a user
	// with no entries is a no-op.
	DeleteUser(ctx context.Context, userID string) error

	// Reset removes all entries for all users.
	Reset(ctx context.Context) error

	// Close closes the backend and releases resources.
	Close() error
}

// CosineSimilarity computes the cosine similarity of two vectors.
//
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankByScore sorts entries by descending score and truncates to limit.
// A limit <= 0 means no truncation.
func RankByScore(entries []*Entry, limit int) []*Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
