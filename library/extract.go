// CLAUDE:SUMMARY ExtractChapter runs extraction, reconstruction, rendering, chunking and indexing, then caches the record.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/hazyhaar/chapterkb/cache"
	"github.com/hazyhaar/chapterkb/chunk"
	"github.com/hazyhaar/chapterkb/horosafe"
	"github.com/hazyhaar/chapterkb/index"
	"github.com/hazyhaar/chapterkb/reconstruct"
)

// ExtractChapter extracts a chapter and caches the result. An existing
// record is returned as is unless force is set. Concurrent calls for the
// same chapter share one extraction.
func (l *Library) ExtractChapter(ctx context.Context, id string, force bool) (*ExtractionSummary, error) {
	id, path, err := l.resolve(id)
	if err != nil {
		return nil, err
	}
	if !force {
		c, err := l.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			s := l.summarize(c)
			s.Cached = true
			return s, nil
		}
	}

	c, err := l.extractShared(ctx, id, path)
	if err != nil {
		return nil, err
	}
	return l.summarize(c), nil
}

// extractShared runs one extraction per chapter for all concurrent callers.
// The extraction ignores caller cancellation; each caller returns when its
// own ctx is done.
func (l *Library) extractShared(ctx context.Context, id, path string) (*cache.ExtractedContent, error) {
	ch := l.group.DoChan(id, func() (any, error) {
		return l.extract(context.WithoutCancel(ctx), id, path)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cache.ExtractedContent), nil
	}
}

// extract runs the pipeline on one PDF. Parse failures yield an empty but
// valid record; only I/O, cancellation and cache errors are returned.
func (l *Library) extract(ctx context.Context, id, path string) (*cache.ExtractedContent, error) {
	start := time.Now()
	data, err := horosafe.ReadFileLimited(path, l.cfg.Extract.MaxFileSize)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrChapterNotFound, id)
	case errors.Is(err, horosafe.ErrTooLarge):
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgument, id, err)
	case err != nil:
		return nil, fmt.Errorf("library: read %s: %w", id, err)
	}

	res := l.extractor.ExtractPDF(ctx, data)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &cache.ExtractedContent{
		ChapterID:   id,
		ExtractedAt: time.Now().UTC(),
		FullText:    reconstruct.Reconstruct(res.Text),
		TotalPages:  res.TotalPages,
		PageTextMap: make(map[int]string, len(res.PageTexts)),
		Method:      res.Method,
		Warnings:    slices.Clone(res.Warnings),
	}
	for p, t := range res.PageTexts {
		c.PageTextMap[p] = reconstruct.Reconstruct(t)
	}

	if l.renderer != nil {
		images, err := l.renderer.Render(ctx, data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.logger.Warn("library: render failed", "chapter", id, "error", err)
			c.Warnings = append(c.Warnings, "render: "+err.Error())
		}
		if err := cache.WriteImages(l.cfg.Cache.Dir, id, images); err != nil {
			l.logger.Warn("library: write images failed", "chapter", id, "error", err)
			c.Warnings = append(c.Warnings, err.Error())
		}
		c.Images = images
	}

	c.Chunks = chunk.Split(c.FullText, c.PageTextMap, c.TotalPages, chunk.Options{Size: l.cfg.Chunk.Size})
	if len(c.Images) > 0 {
		chunk.AttachImages(c.Chunks, c.Images, l.cfg.Chunk.MaxImages)
	}
	c.SearchIndex = index.Build(chunk.Texts(c.Chunks))

	mu := l.lock(id)
	mu.Lock()
	err = l.store.Save(ctx, id, c)
	mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("library: save %s: %w", id, err)
	}

	l.logger.Info("library: extracted",
		"chapter", id,
		"method", c.Method,
		"pages", c.TotalPages,
		"chars", len(c.FullText),
		"chunks", len(c.Chunks),
		"images", len(c.Images),
		"warnings", len(c.Warnings),
		"duration", time.Since(start),
	)
	return c, nil
}

func (l *Library) summarize(c *cache.ExtractedContent) *ExtractionSummary {
	topics := []string{}
	for _, ch := range c.Chunks {
		for _, t := range ch.Topics {
			if !slices.Contains(topics, t) {
				topics = append(topics, t)
			}
		}
	}
	return &ExtractionSummary{
		ChapterID:   c.ChapterID,
		Title:       l.citations.ChapterTitle(c.ChapterID),
		ExtractedAt: c.ExtractedAt,
		TotalPages:  c.TotalPages,
		TextLength:  len(c.FullText),
		ChunkCount:  len(c.Chunks),
		ImageCount:  len(c.Images),
		Method:      c.Method,
		Topics:      topics,
		Warnings:    c.Warnings,
		Citation:    l.full(c.ChapterID, nil),
	}
}

// content returns the cached record of id, extracting it first when
// autoExtract is set. Without autoExtract a miss is ErrNotExtracted.
func (l *Library) content(ctx context.Context, id string, autoExtract bool) (string, *cache.ExtractedContent, error) {
	id, path, err := l.resolve(id)
	if err != nil {
		return "", nil, err
	}
	c, err := l.load(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if c != nil {
		return id, c, nil
	}
	if !autoExtract {
		return "", nil, fmt.Errorf("%w: %s", ErrNotExtracted, id)
	}
	c, err = l.extractShared(ctx, id, path)
	if err != nil {
		return "", nil, err
	}
	return id, c, nil
}

func joinNonEmpty(parts []string, sep string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
