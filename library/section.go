// CLAUDE:SUMMARY GetChapterSection, GetChapterText and GetVisualContent: reads over one cached chapter.
package library

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/chapterkb/chunk"
	"github.com/hazyhaar/chapterkb/query"
)

const (
	DefaultTextLength = 1000
	MaxTextLength     = 50_000
	pageContextWidth  = 500
)

// GetChapterSection returns the first chunks of a chapter that match topic,
// concatenated: one for brief, two for detailed, three for comprehensive.
// Chunks are taken in document order, not by score. The chapter must have
// been extracted. A topic with no searchable words matches nothing.
func (l *Library) GetChapterSection(ctx context.Context, id, topic, level string) (*SectionResponse, error) {
	if level == "" {
		level = LevelBrief
	}
	n, ok := levelChunks[level]
	if !ok {
		return nil, fmt.Errorf("%w: context level %q (want brief, detailed or comprehensive)", ErrInvalidArgument, level)
	}
	words := query.Tokenize(topic)
	id, c, err := l.content(ctx, id, false)
	if err != nil {
		return nil, err
	}

	resp := &SectionResponse{
		ChapterID:     id,
		Topic:         topic,
		ContextLevel:  level,
		ChunkIDs:      []int{},
		ShortCitation: l.short(id),
	}
	var picked []chunk.Chunk
	for _, ch := range c.Chunks {
		if len(words) == 0 || len(picked) == n {
			break
		}
		if query.Matches(ch, words) {
			picked = append(picked, ch)
		}
	}
	if len(picked) == 0 {
		resp.Citation = l.inline(id, nil)
		resp.Message = fmt.Sprintf("No content about %q found in %s.", topic, id)
		return resp, nil
	}

	texts := make([]string, len(picked))
	for i, ch := range picked {
		texts[i] = ch.Text
		resp.ChunkIDs = append(resp.ChunkIDs, ch.ID)
	}
	resp.Content = joinNonEmpty(texts, "\n\n")
	resp.StartPage = picked[0].StartPage
	resp.EndPage = picked[len(picked)-1].EndPage
	resp.SectionHeading = picked[0].SectionHeading
	resp.Citation = l.inline(id, resp.SectionHeading)
	return resp, nil
}

// GetChapterText returns length bytes of the chapter's full text from
// start, moved to rune boundaries. The chapter is extracted when uncached.
func (l *Library) GetChapterText(ctx context.Context, id string, start, length int) (*TextResponse, error) {
	if start < 0 {
		return nil, fmt.Errorf("%w: start %d", ErrInvalidArgument, start)
	}
	if length <= 0 {
		length = DefaultTextLength
	}
	length = min(length, MaxTextLength)

	id, c, err := l.content(ctx, id, true)
	if err != nil {
		return nil, err
	}
	text := c.FullText
	start = runeFloor(text, min(start, len(text)))
	end := runeFloor(text, min(start+length, len(text)))

	resp := &TextResponse{
		ChapterID:   id,
		Text:        text[start:end],
		Start:       start,
		End:         end,
		TotalLength: len(text),
		HasMore:     end < len(text),
		Citation:    l.inline(id, nil),
	}
	pm := chunk.NewPageMap(c.PageTextMap, c.TotalPages)
	resp.StartPage = pm.Page(start)
	resp.EndPage = pm.Page(max(end-1, start))
	return resp, nil
}

// GetVisualContent returns rendered pages of a chapter with their text.
// Pages default to those of the chunks matching topic, else to the first
// pages, at most Chunk.MaxImages either way.
func (l *Library) GetVisualContent(ctx context.Context, id string, pages []int, topic string) (*VisualResponse, error) {
	if l.renderer == nil {
		return nil, ErrImagesDisabled
	}
	id, c, err := l.content(ctx, id, false)
	if err != nil {
		return nil, err
	}
	limit := l.cfg.Chunk.MaxImages
	if limit <= 0 {
		limit = chunk.DefaultMaxImages
	}
	words := query.Tokenize(topic)

	if len(pages) == 0 {
		pages = l.defaultPages(c.Chunks, c.TotalPages, words, limit)
	}

	resp := &VisualResponse{ChapterID: id, Pages: []VisualPage{}, Citation: l.inline(id, nil)}
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, ok := l.pageImage(c, p)
		if !ok {
			continue
		}
		resp.Pages = append(resp.Pages, VisualPage{
			Page:        p,
			Image:       img,
			TextContext: query.Snippet(c.PageTextMap[p], words, pageContextWidth),
		})
	}
	if len(resp.Pages) == 0 {
		resp.Message = fmt.Sprintf("No rendered pages available for %s.", id)
	}
	return resp, nil
}

func (l *Library) defaultPages(chunks []chunk.Chunk, total int, words []string, limit int) []int {
	var pages []int
	if len(words) > 0 {
		for _, ch := range chunks {
			if !query.Matches(ch, words) {
				continue
			}
			for _, img := range ch.Images {
				if !slices.Contains(pages, img.Page) {
					pages = append(pages, img.Page)
				}
			}
		}
	}
	if len(pages) == 0 {
		for p := 1; p <= total; p++ {
			pages = append(pages, p)
		}
	}
	if len(pages) > limit {
		pages = pages[:limit]
	}
	return pages
}

func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// parsePages parses "1,3,5-7" into page numbers.
func parsePages(s string) ([]int, error) {
	var pages []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("%w: page %q", ErrInvalidArgument, part)
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("%w: page %q", ErrInvalidArgument, part)
			}
		}
		if a < 1 || b < a || b-a > 1000 {
			return nil, fmt.Errorf("%w: page %q", ErrInvalidArgument, part)
		}
		for p := a; p <= b; p++ {
			pages = append(pages, p)
		}
	}
	return pages, nil
}
