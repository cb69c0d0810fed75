// CLAUDE:SUMMARY Core pipeline engine that extracts page-aware text from PDF bytes, falling back across methods.
// Package docpipe extracts text from PDF chapters.
//
// Methods are tried in order until one yields enough text:
//   - ledongthuc: per-page plain text from github.com/ledongthuc/pdf
//   - pdfcpu: Tj/TJ operators decoded from page content streams
//   - ocr: rendered pages run through a Recognizer (only when configured)
//
// A method that fails or panics is recorded as a warning. Extraction never
// fails as a whole: the worst outcome is an empty Result.
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	res := pipe.ExtractPDF(ctx, data)
//	fmt.Println(res.Method, res.TotalPages, len(res.Text))
package docpipe

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/unicode/norm"

	"github.com/hazyhaar/chapterkb/horosafe"
)

// Pipeline is the PDF extraction engine.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// ExtractFile reads a PDF from disk and extracts it. Only I/O errors and
// oversized files are reported as errors.
func (p *Pipeline) ExtractFile(ctx context.Context, path string) (*Result, error) {
	data, err := horosafe.ReadFileLimited(path, p.cfg.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("docpipe: read %s: %w", path, err)
	}
	return p.ExtractPDF(ctx, data), nil
}

type method struct {
	name string
	run  func(ctx context.Context, data []byte) (*pageSet, error)
}

// ExtractPDF extracts text from PDF bytes.
func (p *Pipeline) ExtractPDF(ctx context.Context, data []byte) *Result {
	res := &Result{PageTexts: map[int]string{}}

	// The pdfcpu context serves both the pdfcpu method and quality scoring.
	var pc *model.Context
	if err := p.guard(func() error {
		var err error
		pc, err = readPDFContext(data)
		return err
	}); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", MethodPdfcpu, err))
	}

	var best *pageSet
	for _, m := range p.methods(pc) {
		if err := ctx.Err(); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", m.name, err))
			break
		}
		var ps *pageSet
		err := p.guard(func() error {
			var err error
			ps, err = m.run(ctx, data)
			return err
		})
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", m.name, err))
			continue
		}
		for _, w := range ps.warnings {
			res.Warnings = append(res.Warnings, m.name+": "+w)
		}
		n := ps.chars()
		if best == nil || n > best.chars() {
			best = ps
			res.Method = m.name
		}
		if n >= p.cfg.MinTextChars {
			break
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: only %d characters", m.name, n))
	}

	p.fill(res, best)

	hasImages := pc != nil && detectImageStreams(pc)
	res.Quality = assessQuality(res.Text, res.TotalPages, hasImages)

	p.logger.Debug("docpipe: extracted",
		"method", res.Method,
		"pages", res.TotalPages,
		"chars", utf8.RuneCountInString(res.Text),
		"warnings", len(res.Warnings))
	if res.Quality.NeedsOCR() {
		p.logger.Warn("docpipe: low extraction quality",
			"printable_ratio", res.Quality.PrintableRatio,
			"chars_per_page", res.Quality.CharsPerPage,
			"has_image_streams", res.Quality.HasImageStreams)
	}
	if res.Quality.HasVisualGap() {
		p.logger.Debug("docpipe: text references figures", "visual_refs", res.Quality.VisualRefCount)
	}
	return res
}

func (p *Pipeline) methods(pc *model.Context) []method {
	ms := []method{{name: MethodLedongthuc, run: extractLedongthuc}}
	if pc != nil {
		ms = append(ms, method{name: MethodPdfcpu, run: func(ctx context.Context, _ []byte) (*pageSet, error) {
			return extractPdfcpu(ctx, pc)
		}})
	}
	if p.cfg.OCR != nil && p.cfg.Pages != nil {
		ms = append(ms, method{name: MethodOCR, run: p.extractOCR})
	}
	return ms
}

// guard runs fn and turns a panic into an error.
func (p *Pipeline) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// fill copies the winning page set into res, normalised to NFKC so that
// ligatures and compatibility forms match plain-text queries.
func (p *Pipeline) fill(res *Result, ps *pageSet) {
	if ps == nil {
		res.TotalPages = 1
		return
	}
	if len(ps.pages) == 0 && ps.flat != "" {
		flat := norm.NFKC.String(ps.flat)
		res.Text = strings.TrimSpace(flat)
		res.PageTexts, res.TotalPages = estimatePages(res.Text, p.cfg.CharsPerPage)
		return
	}

	nums := make([]int, 0, len(ps.pages))
	for n := range ps.pages {
		nums = append(nums, n)
	}
	slices.Sort(nums)

	var sb strings.Builder
	for _, n := range nums {
		text := strings.TrimSpace(norm.NFKC.String(ps.pages[n]))
		if text == "" {
			continue
		}
		res.PageTexts[n] = text
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	res.Text = sb.String()
	res.TotalPages = max(ps.total, 1)
}

// estimatePages splits text that has no page structure into
// max(1, ceil(runes/charsPerPage)) even slices.
func estimatePages(text string, charsPerPage int) (map[int]string, int) {
	runes := []rune(text)
	total := max(1, (len(runes)+charsPerPage-1)/charsPerPage)
	pages := make(map[int]string, total)
	if len(runes) == 0 {
		return pages, total
	}
	per := (len(runes) + total - 1) / total
	for i := 0; i < total; i++ {
		start := i * per
		if start >= len(runes) {
			break
		}
		end := min(start+per, len(runes))
		pages[i+1] = string(runes[start:end])
	}
	return pages, total
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
