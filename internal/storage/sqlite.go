// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rblake2320/multi-agent-rag/internal/models"
)

// SQLiteStorage implements Storage using one SQLite database per domain.
type SQLiteStorage struct {
	db     *sql.DB
	domain string
}

// NewSQLiteStorage opens or creates the SQLite database at dbPath for the
// given domain and initializes the schema. Parent directories are created if
// they do not exist.
func NewSQLiteStorage(domain, dbPath string) (*SQLiteStorage, error) {
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

	return &SQLiteStorage{db: db, domain: domain}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		source_id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		text TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (source_id) REFERENCES documents(source_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source_id ON chunks(source_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_source_chunk ON chunks(source_id, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertDocument inserts a document, replacing any existing row with the same
// source ID.
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *models.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (source_id, text, metadata, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(source_id) DO UPDATE SET text=excluded.text, metadata=excluded.metadata`,
		doc.SourceID, doc.Text, string(metadataJSON), doc.CreatedAt,
	)
	return err
}

// GetDocument returns a document by source ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, sourceID string) (*models.Document, error) {
	var doc models.Document
	var metadataJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT source_id, text, metadata, created_at FROM documents WHERE source_id = ?`, sourceID,
	).Scan(&doc.SourceID, &doc.Text, &metadataJSON, &doc.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %s", sourceID)
	}
	if err != nil {
		return nil, err
	}
	doc.Domain = s.domain
	if err := unmarshalMetadata(metadataJSON, &doc.Metadata); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns documents ordered by source ID.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, text, metadata, created_at FROM documents
		 ORDER BY source_id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var metadataJSON string
		if err := rows.Scan(&doc.SourceID, &doc.Text, &metadataJSON, &doc.CreatedAt); err != nil {
			return nil, err
		}
		doc.Domain = s.domain
		if err := unmarshalMetadata(metadataJSON, &doc.Metadata); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and, via cascade, its chunks.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE source_id = ?`, sourceID)
	return err
}

// BatchUpsertChunks inserts chunks in one transaction, replacing rows that
// share a chunk ID. The transaction makes the per-chunk replacement atomic
// with respect to readers.
func (s *SQLiteStorage) BatchUpsertChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, source_id, text, chunk_index, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET text=excluded.text, metadata=excluded.metadata`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for chunk %s: %w", chunk.ID, err)
		}
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.SourceID, chunk.Text, chunk.Index, string(metadataJSON), chunk.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}
	return tx.Commit()
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	var chunk models.Chunk
	var metadataJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_id, text, chunk_index, metadata, created_at FROM chunks WHERE id = ?`, id,
	).Scan(&chunk.ID, &chunk.SourceID, &chunk.Text, &chunk.Index, &metadataJSON, &chunk.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	chunk.Domain = s.domain
	if err := unmarshalMetadata(metadataJSON, &chunk.Metadata); err != nil {
		return nil, err
	}
	return &chunk, nil
}

// GetChunksBySourceID returns a document's chunks ordered by chunk index.
func (s *SQLiteStorage) GetChunksBySourceID(ctx context.Context, sourceID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, text, chunk_index, metadata, created_at FROM chunks
		 WHERE source_id = ? ORDER BY chunk_index`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var metadataJSON string
		if err := rows.Scan(&chunk.ID, &chunk.SourceID, &chunk.Text, &chunk.Index, &metadataJSON, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		chunk.Domain = s.domain
		if err := unmarshalMetadata(metadataJSON, &chunk.Metadata); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// ChunkIDsBySourceID returns the IDs of a document's chunks ordered by chunk index.
func (s *SQLiteStorage) ChunkIDsBySourceID(ctx context.Context, sourceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE source_id = ? ORDER BY chunk_index`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteChunksBySourceID removes all chunks of a document.
func (s *SQLiteStorage) DeleteChunksBySourceID(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, sourceID)
	return err
}

// CountDocuments returns the number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func unmarshalMetadata(metadataJSON string, out *map[string]interface{}) error {
	if metadataJSON == "" || metadataJSON == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(metadataJSON), out); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return nil
}
