//go:build ocr

// Package ocr recognises text in rendered page images with Tesseract, through
// gosseract. Build with -tags ocr; Tesseract and its language data must be
// installed (apt-get install tesseract-ocr).
package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Engine wraps one Tesseract client. Calls are serialised.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates an Engine for the given languages ("eng", "eng+fra").
// Close it when done.
func New(language string) (*Engine, error) {
	client := gosseract.NewClient()
	if language == "" {
		language = "eng"
	}
	if err := client.SetLanguage(strings.Split(language, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("ocr: set language %q: %w", language, err)
	}
	return &Engine{client: client}, nil
}

// Close releases Tesseract resources. It is safe to call on a nil Engine.
func (e *Engine) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}

// Recognize returns the trimmed text of an encoded image (JPEG, PNG, TIFF).
func (e *Engine) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("ocr: set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return strings.TrimSpace(text), nil
}
