// CLAUDE:SUMMARY Defines the Result of a PDF extraction and the extraction method names.
package docpipe

// Extraction methods, in the order they are tried.
const (
	MethodLedongthuc = "ledongthuc"
	MethodPdfcpu     = "pdfcpu"
	MethodOCR        = "ocr"
)

// Result is the outcome of extracting one PDF. A Result is always usable:
// when every method fails, Text is empty and Warnings says why.
type Result struct {
	Text       string             `json:"text"`
	PageTexts  map[int]string     `json:"page_texts"` // 1-based page number -> page text
	TotalPages int                `json:"total_pages"`
	Method     string             `json:"method,omitempty"`
	Quality    *ExtractionQuality `json:"quality,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// pageSet is what a single method produced.
type pageSet struct {
	pages    map[int]string
	total    int
	flat     string // set instead of pages when the method has no page structure
	warnings []string
}

func (ps *pageSet) chars() int {
	if ps == nil {
		return 0
	}
	n := countNonSpace(ps.flat)
	for _, t := range ps.pages {
		n += countNonSpace(t)
	}
	return n
}
