// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tadoru/tadoru/internal/models"
)

// SQLiteStorage implements Storage using SQLite in WAL mode.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		slot INTEGER PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT,
		description TEXT,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		total_chunks INTEGER NOT NULL,
		captured_at TIMESTAMP,
		capture_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_url ON chunks(url);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceChunks deletes the rows for removed slots and inserts chunks in one
// transaction.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, url string, removed []int64, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if len(removed) > 0 {
		query := fmt.Sprintf(`DELETE FROM chunks WHERE slot IN (%s)`, placeholders(len(removed)))
		if _, err := tx.ExecContext(ctx, query, int64Args(removed)...); err != nil {
			return fmt.Errorf("delete replaced chunks: %w", err)
		}
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO chunks (slot, url, title, description, content, chunk_index, total_chunks, captured_at, capture_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, ch := range chunks {
			if _, err := stmt.ExecContext(ctx,
				ch.Slot, ch.URL, ch.Title, ch.Description, ch.Text,
				ch.Index, ch.TotalChunks, ch.CapturedAt, ch.CaptureID,
			); err != nil {
				return fmt.Errorf("insert chunk slot %d: %w", ch.Slot, err)
			}
		}
	}
	return tx.Commit()
}

// GetBySlots returns chunks for the given slots, keyed by slot.
func (s *SQLiteStorage) GetBySlots(ctx context.Context, slots []int64) (map[int64]*models.Chunk, error) {
	result := make(map[int64]*models.Chunk, len(slots))
	if len(slots) == 0 {
		return result, nil
	}
	query := fmt.Sprintf(
		`SELECT slot, url, title, description, content, chunk_index, total_chunks, captured_at, capture_id
		 FROM chunks WHERE slot IN (%s)`, placeholders(len(slots)))
	rows, err := s.db.QueryContext(ctx, query, int64Args(slots)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.Slot, &ch.URL, &ch.Title, &ch.Description, &ch.Text,
			&ch.Index, &ch.TotalChunks, &ch.CapturedAt, &ch.CaptureID); err != nil {
			return nil, err
		}
		result[ch.Slot] = &ch
	}
	return result, rows.Err()
}

// SlotsByURL returns the slots of all chunks for url ordered by chunk_index.
func (s *SQLiteStorage) SlotsByURL(ctx context.Context, url string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slot FROM chunks WHERE url = ? ORDER BY chunk_index`, url)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []int64
	for rows.Next() {
		var slot int64
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// CountChunks returns the total number of chunk rows.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountPages returns the number of distinct URLs with live chunks.
func (s *SQLiteStorage) CountPages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT url) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(vals []int64) []interface{} {
	args := make([]interface{}, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}
