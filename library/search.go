// CLAUDE:SUMMARY SearchContent: ranks cached chapters and decorates results with citations, snippets and images.
package library

import (
	"context"
	"fmt"
	"os"

	"github.com/hazyhaar/chapterkb/cache"
	"github.com/hazyhaar/chapterkb/chunk"
	"github.com/hazyhaar/chapterkb/query"
)

// SearchContent ranks the cached chapters against q. maxResults is clamped
// to [1, 5], 0 meaning 3. Uncached chapters only match on metadata. A query
// with no usable words matches nothing.
func (l *Library) SearchContent(ctx context.Context, q string, maxResults int, includeImages bool) (*SearchResponse, error) {
	names, err := l.listPDFs()
	if err != nil {
		return nil, err
	}

	contents := make(map[string]*cache.ExtractedContent)
	src := func(yield func(query.ChapterData, error) bool) {
		for _, name := range names {
			c, err := l.load(ctx, name)
			if err != nil {
				if !yield(query.ChapterData{ID: name}, err) {
					return
				}
				continue
			}
			contents[name] = c
			if !yield(query.ChapterData{ID: name, Content: c, Metadata: l.metadata(name, c)}, nil) {
				return
			}
		}
	}

	ranked, err := l.engine.Search(ctx, src, q, query.Options{
		MaxResults:    maxResults,
		MetadataBoost: l.cfg.Search.MetadataBoost,
		SkipStopwords: l.cfg.Search.SkipStopwords,
	})
	if err != nil {
		return nil, err
	}

	words := query.Tokenize(q)
	resp := &SearchResponse{Query: q, Results: []SearchResult{}}
	for _, r := range ranked {
		sr := SearchResult{
			ChapterID:     r.ChapterID,
			ChapterTitle:  r.Metadata.Title,
			Score:         r.BestScore,
			MetadataScore: r.MetadataScore,
			FullCitation:  l.full(r.ChapterID, nil),
			ShortCitation: l.short(r.ChapterID),
			Matches:       []MatchResult{},
		}
		var section *string
		for _, m := range r.Matches {
			if section == nil {
				section = m.SectionHeading
			}
			mr := MatchResult{
				ChunkID:        m.ID,
				Score:          m.Score,
				Snippet:        query.Snippet(m.Text, words, l.cfg.Search.SnippetWidth),
				StartPage:      m.StartPage,
				EndPage:        m.EndPage,
				SectionHeading: m.SectionHeading,
				Topics:         m.Topics,
			}
			if includeImages {
				mr.Images = l.imagesWithData(contents[r.ChapterID], m.Images)
			}
			sr.Matches = append(sr.Matches, mr)
		}
		sr.Citation = l.inline(r.ChapterID, section)
		resp.Results = append(resp.Results, sr)
	}
	resp.TotalResults = len(resp.Results)
	if resp.TotalResults == 0 {
		if len(words) == 0 {
			resp.Message = fmt.Sprintf("No searchable words in %q. Use words longer than two letters.", q)
		} else {
			resp.Message = fmt.Sprintf("No results found for %q. Extract chapters first or try other terms.", q)
		}
	}
	return resp, nil
}

// imagesWithData resolves chunk image references to images with bytes, from
// the record or, failing that, from the image file.
func (l *Library) imagesWithData(c *cache.ExtractedContent, refs []chunk.PageImage) []chunk.PageImage {
	out := make([]chunk.PageImage, 0, len(refs))
	for _, ref := range refs {
		img, ok := l.pageImage(c, ref.Page)
		if !ok {
			continue
		}
		out = append(out, img)
	}
	return out
}

func (l *Library) pageImage(c *cache.ExtractedContent, page int) (chunk.PageImage, bool) {
	if c == nil {
		return chunk.PageImage{}, false
	}
	img, ok := c.Image(page)
	if !ok {
		return img, false
	}
	if len(img.Data) == 0 && img.SourcePath != "" {
		data, err := os.ReadFile(img.SourcePath)
		if err != nil {
			l.logger.Warn("library: image file unreadable", "chapter", c.ChapterID, "page", page, "error", err)
			return img, false
		}
		img.Data = data
	}
	return img, true
}
