// CLAUDE:SUMMARY Relevance ranking of cached chapter chunks by term frequency, topic match and metadata boost.
// Package query ranks cached chapters against a free-text query.
//
// Matching scans chunk text directly; the persisted word index is not
// consulted. Scores are heuristic:
//
//	chunk score = seed + 10 × occurrences of each query word + 20 per topic equal to a query word
//
// where seed is the chapter's metadata score when boosting is enabled.
package query

import (
	"cmp"
	"context"
	"iter"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/bbalet/stopwords"

	"github.com/hazyhaar/chapterkb/cache"
	"github.com/hazyhaar/chapterkb/chunk"
	"github.com/hazyhaar/chapterkb/index"
)

const (
	DefaultMaxResults   = 3
	MaxResultsLimit     = 5
	DefaultSnippetWidth = 500
	ChunksPerChapter    = 2

	wordWeight        = 10
	topicWeight       = 20
	keywordWeight     = 50
	titleWeight       = 30
	descriptionWeight = 20
)

// Metadata is the descriptive record of a chapter (its sidecar file).
type Metadata struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
}

// ChapterData is one searchable chapter. Content is nil for chapters that
// have not been extracted; they can only match on metadata.
type ChapterData struct {
	ID       string
	Content  *cache.ExtractedContent
	Metadata Metadata
}

// Source yields the chapters to search. A non-nil error skips that chapter.
type Source = iter.Seq2[ChapterData, error]

// ScoredMatch is a chunk with its score for one query.
type ScoredMatch struct {
	chunk.Chunk
	Score float64 `json:"score"`
}

// ChapterResult is one ranked chapter: its best chunks, best first.
type ChapterResult struct {
	ChapterID     string        `json:"chapter_id"`
	BestScore     float64       `json:"best_score"`
	MetadataScore float64       `json:"metadata_score"`
	Matches       []ScoredMatch `json:"matches"`
	Metadata      Metadata      `json:"metadata"`
}

// Options configures a search.
type Options struct {
	MaxResults    int  // clamped to [1, 5]; 0 means 3
	MetadataBoost bool // seed chunk scores with the metadata score
	// SkipStopwords leaves English stopwords out of the metadata score.
	SkipStopwords bool
}

func (o *Options) defaults() {
	if o.MaxResults == 0 {
		o.MaxResults = DefaultMaxResults
	}
	o.MaxResults = min(max(o.MaxResults, 1), MaxResultsLimit)
}

// Engine runs searches.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an Engine. A nil logger means slog.Default().
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Tokenize lower-cases q and returns its words longer than two characters.
func Tokenize(q string) []string {
	return index.Words(q)
}

// Search ranks the chapters of src against q. A query without usable words
// matches nothing. Only cancellation is reported as an error.
func (e *Engine) Search(ctx context.Context, src Source, q string, opts Options) ([]ChapterResult, error) {
	opts.defaults()
	words := Tokenize(q)
	if len(words) == 0 {
		return nil, nil
	}
	counters := wordCounters(words)

	var results []ChapterResult
	for data, err := range src {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		if err != nil {
			e.logger.Warn("query: chapter skipped", "chapter", data.ID, "error", err)
			continue
		}
		if r, ok := scoreChapter(data, words, counters, opts); ok {
			results = append(results, r)
		}
	}

	slices.SortStableFunc(results, func(a, b ChapterResult) int {
		return cmp.Compare(b.BestScore, a.BestScore)
	})
	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	e.logger.Debug("query: search", "query", q, "words", len(words), "results", len(results))
	return results, nil
}

func scoreChapter(data ChapterData, words []string, counters []*regexp.Regexp, opts Options) (ChapterResult, bool) {
	var seed float64
	if opts.MetadataBoost {
		mw := words
		if opts.SkipStopwords {
			mw = slices.DeleteFunc(slices.Clone(words), isStopword)
		}
		seed = MetadataScore(data.Metadata, mw)
	}

	var matches []ScoredMatch
	if data.Content != nil {
		for _, c := range data.Content.Chunks {
			if Matches(c, words) {
				matches = append(matches, ScoredMatch{Chunk: c, Score: scoreChunk(c, words, counters, seed)})
			}
		}
	}

	r := ChapterResult{ChapterID: data.ID, MetadataScore: seed, Metadata: data.Metadata}
	if len(matches) == 0 {
		if seed <= 0 {
			return r, false
		}
		r.BestScore = seed
		return r, true
	}

	slices.SortStableFunc(matches, func(a, b ScoredMatch) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(matches) > ChunksPerChapter {
		matches = matches[:ChunksPerChapter]
	}
	r.Matches = matches
	r.BestScore = matches[0].Score
	return r, true
}

// Matches reports whether any query word occurs in the chunk text or equals
// one of its topics.
func Matches(c chunk.Chunk, words []string) bool {
	lower := strings.ToLower(c.Text)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
		for _, t := range c.Topics {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

// ScoreChunk scores one chunk for the query words, starting from seed.
func ScoreChunk(c chunk.Chunk, words []string, seed float64) float64 {
	return scoreChunk(c, words, wordCounters(words), seed)
}

func scoreChunk(c chunk.Chunk, words []string, counters []*regexp.Regexp, seed float64) float64 {
	score := seed
	for _, re := range counters {
		score += wordWeight * float64(len(re.FindAllStringIndex(c.Text, -1)))
	}
	for _, t := range c.Topics {
		for _, w := range words {
			if strings.EqualFold(t, w) {
				score += topicWeight
			}
		}
	}
	return score
}

func wordCounters(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(w))
	}
	return out
}

// MetadataScore scores a chapter's metadata: per query word, +50 when a
// keyword equals or contains it, +30 when the title contains it and +20
// when the description contains it.
func MetadataScore(md Metadata, words []string) float64 {
	title := strings.ToLower(md.Title)
	desc := strings.ToLower(md.Description)
	var score float64
	for _, w := range words {
		for _, kw := range md.Keywords {
			if strings.Contains(strings.ToLower(kw), w) {
				score += keywordWeight
				break
			}
		}
		if strings.Contains(title, w) {
			score += titleWeight
		}
		if strings.Contains(desc, w) {
			score += descriptionWeight
		}
	}
	return score
}

func isStopword(w string) bool {
	return strings.TrimSpace(stopwords.CleanString(w, "en", false)) == ""
}
