// CLAUDE:SUMMARY Chapter listing, sidecar metadata loading and default keyword derivation.
package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bbalet/stopwords"
	"github.com/jdkato/prose/v2"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/chapterkb/cache"
	"github.com/hazyhaar/chapterkb/horosafe"
	"github.com/hazyhaar/chapterkb/query"
)

// ListChapters returns every PDF of the chapters directory. A chapter whose
// metadata or cache record cannot be read is listed as not extracted.
func (l *Library) ListChapters(ctx context.Context) ([]ChapterInfo, error) {
	names, err := l.listPDFs()
	if err != nil {
		return nil, err
	}
	out := make([]ChapterInfo, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := l.load(ctx, name)
		if err != nil {
			l.logger.Warn("library: list: cache read failed", "chapter", name, "error", err)
		}
		md := l.metadata(name, c)
		info := ChapterInfo{
			Filename:    name,
			Title:       md.Title,
			Description: md.Description,
			Keywords:    md.Keywords,
		}
		if info.Keywords == nil {
			info.Keywords = []string{}
		}
		if c != nil {
			at := c.ExtractedAt
			info.ExtractionStatus = ExtractionStatus{
				Extracted:   true,
				ExtractedAt: &at,
				TotalPages:  c.TotalPages,
				TextLength:  len(c.FullText),
				ChunkCount:  len(c.Chunks),
			}
		}
		out = append(out, info)
	}
	return out, nil
}

var sidecarExts = []string{".yaml", ".yml", ".json"}

const maxSidecarSize = 1 << 20

// metadata reads the sidecar of the chapter and fills what it leaves empty:
// the title from the file name, keywords from the cached text.
func (l *Library) metadata(id string, c *cache.ExtractedContent) query.Metadata {
	md, err := readSidecar(l.cfg.ChaptersDir, id)
	if err != nil {
		l.logger.Warn("library: bad metadata file", "chapter", id, "error", err)
	}
	if md.Title == "" {
		md.Title = l.citations.ChapterTitle(id)
	}
	if len(md.Keywords) == 0 && c != nil {
		md.Keywords = l.keywords.get(c)
	}
	return md
}

// readSidecar loads <stem>.yaml, <stem>.yml or <stem>.json next to the PDF.
// JSON is read by the YAML decoder. A missing sidecar is not an error.
func readSidecar(dir, id string) (query.Metadata, error) {
	stem := strings.TrimSuffix(id, filepath.Ext(id))
	for _, ext := range sidecarExts {
		data, err := horosafe.ReadFileLimited(filepath.Join(dir, stem+ext), maxSidecarSize)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return query.Metadata{}, err
		}
		var md query.Metadata
		if err := yaml.Unmarshal(data, &md); err != nil {
			return query.Metadata{}, fmt.Errorf("%s: %w", stem+ext, err)
		}
		return md, nil
	}
	return query.Metadata{}, nil
}

const (
	keywordCount  = 8
	keywordSample = 20_000 // bytes of text tagged
)

// keywordCache memoizes derived keywords per chapter and extraction time.
type keywordCache struct {
	mu sync.Mutex
	m  map[string]keywordEntry
}

type keywordEntry struct {
	at       time.Time
	keywords []string
}

func (k *keywordCache) get(c *cache.ExtractedContent) []string {
	k.mu.Lock()
	e, ok := k.m[c.ChapterID]
	k.mu.Unlock()
	if ok && e.at.Equal(c.ExtractedAt) {
		return e.keywords
	}

	kw := DeriveKeywords(c.FullText, keywordCount)
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]keywordEntry)
	}
	k.m[c.ChapterID] = keywordEntry{at: c.ExtractedAt, keywords: kw}
	k.mu.Unlock()
	return kw
}

// DeriveKeywords returns the n most frequent common nouns of the start of
// text, most frequent first. Ties sort alphabetically.
func DeriveKeywords(text string, n int) []string {
	if len(text) > keywordSample {
		cut := keywordSample
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	doc, err := prose.NewDocument(text, prose.WithExtraction(false), prose.WithSegmentation(false))
	if err != nil {
		return nil
	}

	counts := make(map[string]int)
	for _, tok := range doc.Tokens() {
		if tok.Tag != "NN" && tok.Tag != "NNS" {
			continue
		}
		w := strings.ToLower(tok.Text)
		if utf8.RuneCountInString(w) < 4 || !isAlpha(w) {
			continue
		}
		if strings.TrimSpace(stopwords.CleanString(w, "en", false)) == "" {
			continue
		}
		counts[w]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	slices.SortFunc(words, func(a, b string) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(a, b)
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && r != '-' {
			return false
		}
	}
	return true
}
