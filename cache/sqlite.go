package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/chapterkb/dbopen"
)

// Schema creates the chapter_cache table.
const Schema = `CREATE TABLE IF NOT EXISTS chapter_cache (
	chapter_key  TEXT PRIMARY KEY,
	chapter_id   TEXT NOT NULL,
	extracted_at TEXT NOT NULL,
	record       BLOB NOT NULL
);`

// SQLiteStore keeps one row per chapter. A save is a single upsert.
type SQLiteStore struct {
	DB     *sql.DB
	logger *slog.Logger
	owned  bool
}

// OpenSQLite opens (creating if needed) the database at path. opts are
// applied after the defaults.
func OpenSQLite(path string, logger *slog.Logger, opts ...dbopen.Option) (*SQLiteStore, error) {
	opts = append([]dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(Schema)}, opts...)
	db, err := dbopen.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	s := NewSQLiteStore(db, logger)
	s.owned = true
	return s, nil
}

// NewSQLiteStore wraps an open database that already has Schema applied.
// Close does not close db.
func NewSQLiteStore(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{DB: db, logger: logger}
}

// Save upserts the record of chapterID.
func (s *SQLiteStore) Save(ctx context.Context, chapterID string, c *ExtractedContent) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", chapterID, err)
	}
	_, err = dbopen.Exec(ctx, s.DB, `
		INSERT INTO chapter_cache (chapter_key, chapter_id, extracted_at, record)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chapter_key) DO UPDATE SET
			chapter_id = excluded.chapter_id,
			extracted_at = excluded.extracted_at,
			record = excluded.record`,
		Key(chapterID), chapterID, c.ExtractedAt.UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return fmt.Errorf("cache: save %s: %w", chapterID, err)
	}
	s.logger.Debug("cache: saved", "chapter", chapterID, "bytes", len(data))
	return nil
}

// Load reads the record of chapterID.
func (s *SQLiteStore) Load(ctx context.Context, chapterID string) (*ExtractedContent, error) {
	var data []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT record FROM chapter_cache WHERE chapter_key = ?`, Key(chapterID)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, chapterID)
	}
	if err != nil {
		return nil, fmt.Errorf("cache: load %s: %w", chapterID, err)
	}
	var c ExtractedContent
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, chapterID, err)
	}
	return &c, nil
}

// Close closes the database if the store opened it.
func (s *SQLiteStore) Close() error {
	if s.owned {
		return s.DB.Close()
	}
	return nil
}
