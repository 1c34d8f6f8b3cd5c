// Package sqlite provides the SQLite backend for the long-term index.
//
// SQLite is the default backend: a single local database file, vectors
// stored as JSON strings in TEXT columns, and similarity computed in
// memory. Suitable for a single-node bot deployment.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lila-ai/lila-go/pkg/storage"
)

// Client implements storage.VectorStore using SQLite.
type Client struct {
	db    *sql.DB
	table string
}

// Config contains configuration for the SQLite backend.
type Config struct {
	// DBPath is the path to the database file. Parent directories are
	// created on demand.
	DBPath string

	// Table is the table holding long-term entries.
	Table string
}

// NewClient opens (creating if necessary) a SQLite-backed index.
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	client := &Client{db: db, table: cfg.Table}
	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)
	`, c.table)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlite: initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id)
	`, c.table, c.table)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("sqlite: initTables: %w", err)
	}
	return nil
}

// Insert appends a new entry.
func (c *Client) Insert(ctx context.Context, entry *storage.Entry) error {
	embeddingJSON, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("sqlite: Insert: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.table)
	_, err = c.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Content, string(embeddingJSON), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: Insert: %w", err)
	}
	return nil
}

// Search loads the user's entries and ranks them by cosine similarity
// in memory. SQLite has no vector index, so ranking happens client-side.
func (c *Client) Search(ctx context.Context, userID string, embedding []float64, limit int) ([]*storage.Entry, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, content, embedding, created_at
		FROM %s
		WHERE user_id = ?
		ORDER BY id
	`, c.table)

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*storage.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entry.Score = storage.CosineSimilarity(embedding, entry.Embedding)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: Search: %w", err)
	}

	return storage.RankByScore(entries, limit), nil
}

// CountUser returns the number of entries stored for userID.
func (c *Client) CountUser(ctx context.Context, userID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = ?`, c.table)
	var count int
	if err := c.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: CountUser: %w", err)
	}
	return count, nil
}

// DeleteUser removes every entry owned by userID.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = ?`, c.table)
	if _, err := c.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("sqlite: DeleteUser: %w", err)
	}
	return nil
}

// Reset removes all entries for all users.
func (c *Client) Reset(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s`, c.table)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlite: Reset: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

func scanEntry(rows *sql.Rows) (*storage.Entry, error) {
	var (
		entry         storage.Entry
		embeddingJSON string
		createdAt     time.Time
	)
	if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Content, &embeddingJSON, &createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: scan: %w", err)
	}
	if err := json.Unmarshal([]byte(embeddingJSON), &entry.Embedding); err != nil {
		return nil, fmt.Errorf("sqlite: scan embedding: %w", err)
	}
	entry.CreatedAt = createdAt
	return &entry, nil
}
