//go:build !ocr

// Package ocr recognises text in rendered page images with Tesseract.
//
// This is the stub used without the "ocr" build tag: New always fails with
// ErrNotEnabled. Rebuild with -tags ocr to enable it.
package ocr

import (
	"context"
	"errors"
)

// ErrNotEnabled is returned when OCR support was not compiled in.
var ErrNotEnabled = errors.New("ocr: support not enabled; rebuild with -tags ocr")

// Engine is a stub that recognises nothing.
type Engine struct{}

// New returns ErrNotEnabled.
func New(language string) (*Engine, error) {
	return nil, ErrNotEnabled
}

// Close is a no-op. It is safe to call on a nil Engine.
func (e *Engine) Close() error {
	return nil
}

// Recognize returns ErrNotEnabled.
func (e *Engine) Recognize(ctx context.Context, image []byte) (string, error) {
	return "", ErrNotEnabled
}
