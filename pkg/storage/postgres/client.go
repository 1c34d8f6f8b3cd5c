// Package postgres provides the PostgreSQL + pgvector backend for the
// long-term index.
//
// Use this backend when the bot runs with more than one replica or when
// the index outgrows a local file: similarity ranking runs inside the
// database via pgvector's cosine distance operator.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/lila-ai/lila-go/pkg/storage"
)

// Client implements storage.VectorStore using PostgreSQL with pgvector.
type Client struct {
	db         *sql.DB
	table      string
	dimensions int
}

// Config contains configuration for the PostgreSQL backend.
type Config struct {
	// DSN is the connection string (lib/pq key=value or URL form).
	DSN string

	// Table is the table holding long-term entries.
	Table string

	// Dimensions is the embedding vector dimension, used to declare the
	// pgvector column.
	Dimensions int
}

// NewClient connects to PostgreSQL and prepares the index table.
func NewClient(cfg *Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	client := &Client{db: db, table: cfg.Table, dimensions: cfg.Dimensions}
	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) initTables(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("postgres: initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`, c.table, c.dimensions)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id)
	`, c.table, c.table)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("postgres: initTables: create index: %w", err)
	}
	return nil
}

// Insert appends a new entry.
func (c *Client) Insert(ctx context.Context, entry *storage.Entry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.table)
	_, err := c.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Content, vectorToString(entry.Embedding), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: Insert: %w", err)
	}
	return nil
}

// Search ranks the user's entries by cosine similarity using pgvector's
// <=> operator (cosine distance).
func (c *Client) Search(ctx context.Context, userID string, embedding []float64, limit int) ([]*storage.Entry, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, content, embedding, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE user_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`, c.table)

	rows, err := c.db.QueryContext(ctx, query, vectorToString(embedding), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*storage.Entry
	for rows.Next() {
		var (
			entry     storage.Entry
			vectorStr string
			createdAt time.Time
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Content, &vectorStr, &createdAt, &entry.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		entry.Embedding, err = stringToVector(vectorStr)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan embedding: %w", err)
		}
		entry.CreatedAt = createdAt
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: Search: %w", err)
	}
	return entries, nil
}

// CountUser returns the number of entries stored for userID.
func (c *Client) CountUser(ctx context.Context, userID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1`, c.table)
	var count int
	if err := c.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: CountUser: %w", err)
	}
	return count, nil
}

// DeleteUser removes every entry owned by userID.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, c.table)
	if _, err := c.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("postgres: DeleteUser: %w", err)
	}
	return nil
}

// Reset removes all entries for all users.
func (c *Client) Reset(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s`, c.table)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: Reset: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// vectorToString formats a vector in pgvector literal form: "[0.1,0.2,...]".
func vectorToString(vec []float64) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// stringToVector parses a pgvector literal back into a vector.
func stringToVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		vec[i] = v
	}
	return vec, nil
}
