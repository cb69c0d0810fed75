package library

import (
	"time"

	"github.com/hazyhaar/chapterkb/chunk"
)

// ChapterInfo is one entry of ListChapters.
type ChapterInfo struct {
	Filename         string           `json:"filename"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Keywords         []string         `json:"keywords"`
	ExtractionStatus ExtractionStatus `json:"extraction_status"`
}

// ExtractionStatus says whether a chapter is cached, and what the cache holds.
type ExtractionStatus struct {
	Extracted   bool       `json:"extracted"`
	ExtractedAt *time.Time `json:"extracted_at,omitempty"`
	TotalPages  int        `json:"total_pages,omitempty"`
	TextLength  int        `json:"text_length,omitempty"`
	ChunkCount  int        `json:"chunk_count,omitempty"`
}

// ExtractionSummary describes a cached extraction.
type ExtractionSummary struct {
	ChapterID   string    `json:"chapter_id"`
	Title       string    `json:"title"`
	Cached      bool      `json:"cached"` // true when an existing record was returned
	ExtractedAt time.Time `json:"extracted_at"`
	TotalPages  int       `json:"total_pages"`
	TextLength  int       `json:"text_length"`
	ChunkCount  int       `json:"chunk_count"`
	ImageCount  int       `json:"image_count"`
	Method      string    `json:"method,omitempty"`
	Topics      []string  `json:"topics"`
	Warnings    []string  `json:"warnings,omitempty"`
	Citation    string    `json:"citation"`
}

// SearchResponse is the result of SearchContent.
type SearchResponse struct {
	Query        string         `json:"query"`
	TotalResults int            `json:"total_results"`
	Results      []SearchResult `json:"results"`
	Message      string         `json:"message,omitempty"`
}

// SearchResult is one ranked chapter.
type SearchResult struct {
	ChapterID     string        `json:"chapter_id"`
	ChapterTitle  string        `json:"chapter_title"`
	Score         float64       `json:"score"`
	MetadataScore float64       `json:"metadata_score,omitempty"`
	Citation      string        `json:"citation"`
	FullCitation  string        `json:"full_citation"`
	ShortCitation string        `json:"short_citation"`
	Matches       []MatchResult `json:"matches"`
}

// MatchResult is one matching chunk of a SearchResult.
type MatchResult struct {
	ChunkID        int               `json:"chunk_id"`
	Score          float64           `json:"score"`
	Snippet        string            `json:"snippet"`
	StartPage      int               `json:"start_page"`
	EndPage        int               `json:"end_page"`
	SectionHeading *string           `json:"section_heading"`
	Topics         []string          `json:"topics"`
	Images         []chunk.PageImage `json:"images,omitempty"`
}

// Context levels of GetChapterSection and the number of chunks each returns.
const (
	LevelBrief         = "brief"
	LevelDetailed      = "detailed"
	LevelComprehensive = "comprehensive"
)

var levelChunks = map[string]int{
	LevelBrief:         1,
	LevelDetailed:      2,
	LevelComprehensive: 3,
}

// SectionResponse is the result of GetChapterSection.
type SectionResponse struct {
	ChapterID      string  `json:"chapter_id"`
	Topic          string  `json:"topic"`
	ContextLevel   string  `json:"context_level"`
	Content        string  `json:"content"`
	ChunkIDs       []int   `json:"chunk_ids"`
	StartPage      int     `json:"start_page,omitempty"`
	EndPage        int     `json:"end_page,omitempty"`
	SectionHeading *string `json:"section_heading"`
	Citation       string  `json:"citation"`
	ShortCitation  string  `json:"short_citation"`
	Message        string  `json:"message,omitempty"`
}

// TextResponse is the result of GetChapterText.
type TextResponse struct {
	ChapterID   string `json:"chapter_id"`
	Text        string `json:"text"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	TotalLength int    `json:"total_length"`
	HasMore     bool   `json:"has_more"`
	StartPage   int    `json:"start_page"`
	EndPage     int    `json:"end_page"`
	Citation    string `json:"citation"`
}

// VisualResponse is the result of GetVisualContent.
type VisualResponse struct {
	ChapterID string       `json:"chapter_id"`
	Pages     []VisualPage `json:"pages"`
	Citation  string       `json:"citation"`
	Message   string       `json:"message,omitempty"`
}

// VisualPage is a rendered page with the text extracted from it.
type VisualPage struct {
	Page        int             `json:"page"`
	Image       chunk.PageImage `json:"image"`
	TextContext string          `json:"text_context"`
}
