//go:build !ocr

package ocr

import (
	"context"
	"errors"
	"testing"
)

func TestNewReturnsError(t *testing.T) {
	e, err := New("eng")
	if !errors.Is(err, ErrNotEnabled) {
		t.Errorf("expected ErrNotEnabled, got: %v", err)
	}
	if e != nil {
		t.Error("expected nil engine when OCR is disabled")
	}
}

func TestCloseOnNilEngine(t *testing.T) {
	var e *Engine
	if err := e.Close(); err != nil {
		t.Errorf("Close on nil engine should not error: %v", err)
	}
}

func TestRecognizeStub(t *testing.T) {
	var e *Engine
	if _, err := e.Recognize(context.Background(), nil); !errors.Is(err, ErrNotEnabled) {
		t.Errorf("expected ErrNotEnabled, got: %v", err)
	}
}
