// CLAUDE:SUMMARY Fixed-size, rune-safe chunking of chapter text with page mapping, headings, topics and page images.
package chunk

import (
	"unicode/utf8"

	"github.com/hazyhaar/chapterkb/index"
)

const (
	DefaultSize      = 150_000 // bytes
	DefaultMaxImages = 5
)

// Chunk is a contiguous slice of a chapter's full text. ID is the 0-based
// emission order and is the only valid chunk reference.
type Chunk struct {
	ID             int         `json:"id"`
	Text           string      `json:"text"`
	StartChar      int         `json:"start_char"` // inclusive byte offset
	EndChar        int         `json:"end_char"`   // exclusive byte offset
	StartPage      int         `json:"start_page"`
	EndPage        int         `json:"end_page"`
	Topics         []string    `json:"topics"`
	SectionHeading *string     `json:"section_heading"`
	Images         []PageImage `json:"images,omitempty"`
}

// PageImage is a rendered page. Chunk-level copies carry no Data.
type PageImage struct {
	Page       int    `json:"page"`
	Data       []byte `json:"data,omitempty"` // JPEG
	SizeBytes  int    `json:"size_bytes"`
	SourcePath string `json:"source_path,omitempty"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// Options configures Split.
type Options struct {
	Size int // chunk size in bytes, default 150000
}

func (o *Options) defaults() {
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
}

// Split cuts text into consecutive chunks of at most opts.Size bytes. A cut
// never falls inside a UTF-8 sequence, so the chunks partition [0, len(text))
// and concatenating their Text in ID order gives back text.
func Split(text string, pages map[int]string, totalPages int, opts Options) []Chunk {
	opts.defaults()
	if text == "" {
		return nil
	}
	pm := NewPageMap(pages, totalPages)

	var chunks []Chunk
	for start := 0; start < len(text); {
		end := cutPoint(text, start, opts.Size)
		body := text[start:end]
		c := Chunk{
			ID:             len(chunks),
			Text:           body,
			StartChar:      start,
			EndChar:        end,
			StartPage:      pm.Page(start),
			EndPage:        pm.Page(end - 1),
			Topics:         index.ExtractTopics(body),
			SectionHeading: DetectHeading(body),
		}
		chunks = append(chunks, c)
		start = end
	}
	return chunks
}

// cutPoint returns the end of the chunk starting at start: start+size moved
// back to a rune boundary, or forward past one rune when size is smaller
// than the rune at start.
func cutPoint(text string, start, size int) int {
	end := start + size
	if end >= len(text) {
		return len(text)
	}
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	if end == start {
		_, n := utf8.DecodeRuneInString(text[start:])
		end = start + n
	}
	return end
}

// Texts returns the chunk texts in ID order, the input of index.Build.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// AttachImages sets each chunk's Images to the images whose page lies in
// [StartPage, EndPage], at most limit per chunk, without their bytes.
func AttachImages(chunks []Chunk, images []PageImage, limit int) {
	if limit <= 0 {
		limit = DefaultMaxImages
	}
	for i := range chunks {
		c := &chunks[i]
		c.Images = nil
		for _, img := range images {
			if len(c.Images) == limit {
				break
			}
			if img.Page < c.StartPage || img.Page > c.EndPage {
				continue
			}
			img.Data = nil
			c.Images = append(c.Images, img)
		}
	}
}
