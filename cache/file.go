package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore keeps one JSON file per chapter in a directory. Writes go to a
// temporary file in the same directory which is synced and renamed over the
// record, so readers never observe a partial record.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: mkdir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the directory holding the records.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(chapterID string) string {
	return filepath.Join(s.dir, Key(chapterID)+".json")
}

// Save writes c as the record of chapterID.
func (s *FileStore) Save(ctx context.Context, chapterID string, c *ExtractedContent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", chapterID, err)
	}

	tmp, err := os.CreateTemp(s.dir, Key(chapterID)+".*.tmp")
	if err != nil {
		return fmt.Errorf("cache: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path(chapterID)); err != nil {
		return fmt.Errorf("cache: rename: %w", err)
	}
	s.logger.Debug("cache: saved", "chapter", chapterID, "bytes", len(data))
	return nil
}

// Load reads the record of chapterID.
func (s *FileStore) Load(ctx context.Context, chapterID string) (*ExtractedContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.path(chapterID)
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, chapterID)
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", p, err)
	}
	var c ExtractedContent
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, p, err)
	}
	return &c, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
