// CLAUDE:SUMMARY Configuration struct and defaults for the PDF extraction pipeline.
package docpipe

import (
	"context"
	"log/slog"
)

// Recognizer turns one encoded page image into text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// PageImager renders every page of a PDF to encoded image bytes, in page order.
type PageImager interface {
	PageImages(ctx context.Context, data []byte) ([][]byte, error)
}

// Config configures the extraction pipeline.
type Config struct {
	// MaxFileSize is the maximum file size to process (default: 100 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// MinTextChars is the number of non-space characters below which the
	// next method is tried (default: 100).
	MinTextChars int `json:"min_text_chars" yaml:"min_text_chars"`

	// CharsPerPage estimates the page count of text that comes without page
	// structure (default: 3000).
	CharsPerPage int `json:"chars_per_page" yaml:"chars_per_page"`

	// OCR and Pages enable the OCR method when both are set.
	OCR   Recognizer `json:"-" yaml:"-"`
	Pages PageImager `json:"-" yaml:"-"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.MinTextChars <= 0 {
		c.MinTextChars = 100
	}
	if c.CharsPerPage <= 0 {
		c.CharsPerPage = 3000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
