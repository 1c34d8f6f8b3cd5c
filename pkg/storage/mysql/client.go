// Package mysql provides the MySQL backend for the long-term index.
//
// Vectors are stored as JSON strings and similarity is computed in
// memory, so this backend works on any stock MySQL-compatible server
// without vector extensions.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/lila-ai/lila-go/pkg/storage"
)

// Client implements storage.VectorStore using MySQL.
type Client struct {
	db    *sql.DB
	table string
}

// Config contains configuration for the MySQL backend.
type Config struct {
	// DSN is the go-sql-driver connection string. parseTime=true is
	// required so created_at scans into time.Time.
	DSN string

	// Table is the table holding long-term entries.
	Table string
}

// NewClient connects to MySQL and prepares the index table.
func NewClient(cfg *Config) (*Client, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
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
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			embedding LONGTEXT NOT NULL,
			created_at DATETIME NOT NULL,
			INDEX idx_user (user_id)
		)
	`, c.table)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("mysql: initTables: %w", err)
	}
	return nil
}

// Insert appends a new entry.
func (c *Client) Insert(ctx context.Context, entry *storage.Entry) error {
	embeddingJSON, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("mysql: Insert: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.table)
	_, err = c.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Content, string(embeddingJSON), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("mysql: Insert: %w", err)
	}
	return nil
}

// Search loads the user's entries and ranks them by cosine similarity
// in memory.
func (c *Client) Search(ctx context.Context, userID string, embedding []float64, limit int) ([]*storage.Entry, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, content, embedding, created_at
		FROM %s
		WHERE user_id = ?
		ORDER BY id
	`, c.table)

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("mysql: Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*storage.Entry
	for rows.Next() {
		var (
			entry         storage.Entry
			embeddingJSON string
			createdAt     time.Time
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Content, &embeddingJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("mysql: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &entry.Embedding); err != nil {
			return nil, fmt.Errorf("mysql: scan embedding: %w", err)
		}
		entry.CreatedAt = createdAt
		entry.Score = storage.CosineSimilarity(embedding, entry.Embedding)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: Search: %w", err)
	}

	return storage.RankByScore(entries, limit), nil
}

// CountUser returns the number of entries stored for userID.
func (c *Client) CountUser(ctx context.Context, userID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = ?`, c.table)
	var count int
	if err := c.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("mysql: CountUser: %w", err)
	}
	return count, nil
}

// DeleteUser removes every entry owned by userID.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = ?`, c.table)
	if _, err := c.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("mysql: DeleteUser: %w", err)
	}
	return nil
}

// Reset removes all entries for all users.
func (c *Client) Reset(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s`, c.table)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("mysql: Reset: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}
