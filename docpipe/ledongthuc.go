package docpipe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractLedongthuc reads the plain text of each page with ledongthuc/pdf.
// A document that reports no pages is read as one flat text.
func extractLedongthuc(ctx context.Context, data []byte) (*pageSet, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	n := r.NumPage()
	if n == 0 {
		rd, err := r.GetPlainText()
		if err != nil {
			return nil, fmt.Errorf("plain text: %w", err)
		}
		flat, err := io.ReadAll(rd)
		if err != nil {
			return nil, fmt.Errorf("plain text: %w", err)
		}
		return &pageSet{flat: string(flat)}, nil
	}

	ps := &pageSet{pages: make(map[int]string, n), total: n}
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			ps.warnings = append(ps.warnings, fmt.Sprintf("page %d: %v", i, err))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			ps.pages[i] = text
		}
	}
	return ps, nil
}
