// CLAUDE:SUMMARY Persistence of one ExtractedContent record per chapter, with file and SQLite backends.
// Package cache stores the extraction result of each chapter.
//
// A record is written whole and replaces any previous record for the same
// chapter; there is no partial update, deletion or expiry. Load reports a
// missing record as ErrNotFound and an unreadable one as ErrCorrupt. Callers
// treat both as a miss and re-extract.
package cache

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/chapterkb/chunk"
	"github.com/hazyhaar/chapterkb/index"
)

var (
	ErrNotFound = errors.New("cache: not found")
	ErrCorrupt  = errors.New("cache: corrupt record")
)

// ExtractedContent is everything extraction produced for one chapter.
type ExtractedContent struct {
	ChapterID   string            `json:"chapter_id"`
	ExtractedAt time.Time         `json:"extracted_at"`
	FullText    string            `json:"full_text"`
	TotalPages  int               `json:"total_pages"`
	PageTextMap map[int]string    `json:"page_text_map"`
	Chunks      []chunk.Chunk     `json:"chunks"`
	SearchIndex index.Index       `json:"search_index"`
	Images      []chunk.PageImage `json:"images,omitempty"`
	Method      string            `json:"method,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// Image returns the rendered image of page, with its bytes.
func (c *ExtractedContent) Image(page int) (chunk.PageImage, bool) {
	for _, img := range c.Images {
		if img.Page == page {
			return img, true
		}
	}
	return chunk.PageImage{}, false
}

// Store persists ExtractedContent records keyed by chapter id.
type Store interface {
	Save(ctx context.Context, chapterID string, c *ExtractedContent) error
	Load(ctx context.Context, chapterID string) (*ExtractedContent, error)
	Close() error
}

// Key normalises a chapter id (a PDF filename) into a record key:
// "anchors.pdf" becomes "anchors_extracted". Directory parts are dropped.
func Key(chapterID string) string {
	base := filepath.Base(filepath.ToSlash(chapterID))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + "_extracted"
}
