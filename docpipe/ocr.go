package docpipe

import (
	"context"
	"fmt"
)

// extractOCR renders every page and recognises its text. A page that fails
// recognition is skipped with a warning.
func (p *Pipeline) extractOCR(ctx context.Context, data []byte) (*pageSet, error) {
	images, err := p.cfg.Pages.PageImages(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	ps := &pageSet{pages: make(map[int]string, len(images)), total: len(images)}
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := p.cfg.OCR.Recognize(ctx, img)
		if err != nil {
			ps.warnings = append(ps.warnings, fmt.Sprintf("page %d: %v", i+1, err))
			continue
		}
		if text != "" {
			ps.pages[i+1] = text
		}
	}
	return ps, nil
}
