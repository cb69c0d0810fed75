// CLAUDE:SUMMARY Rasterizes PDF pages with MuPDF (go-fitz), downscales them and encodes JPEG, bounded by an errgroup.
// Package render turns PDF pages into JPEG images.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/chapterkb/chunk"
)

// Options configures a Renderer.
type Options struct {
	DPI      float64 `json:"dpi" yaml:"dpi"`             // default 100
	MaxWidth int     `json:"max_width" yaml:"max_width"` // default 1200 px
	Quality  int     `json:"quality" yaml:"quality"`     // JPEG quality, default 75
	Workers  int     `json:"workers" yaml:"workers"`     // default 4

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (o *Options) defaults() {
	if o.DPI <= 0 {
		o.DPI = 100
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = 1200
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 75
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Renderer rasterizes PDFs. It is safe for concurrent use.
type Renderer struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	opts.defaults()
	return &Renderer{opts: opts, logger: opts.Logger}
}

// Render returns one JPEG image per page, in page order. Pages that fail to
// render are left out and logged.
func (r *Renderer) Render(ctx context.Context, data []byte) ([]chunk.PageImage, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("render: open: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	pages := make([]*chunk.PageImage, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// fitz serialises access to the document; scaling and encoding
			// run in parallel.
			img, err := doc.ImageDPI(i, r.opts.DPI)
			if err != nil {
				r.logger.Warn("render: page failed", "page", i+1, "error", err)
				return nil
			}
			jpg, w, h, err := r.encode(img)
			if err != nil {
				r.logger.Warn("render: encode failed", "page", i+1, "error", err)
				return nil
			}
			pages[i] = &chunk.PageImage{
				Page:      i + 1,
				Data:      jpg,
				SizeBytes: len(jpg),
				Width:     w,
				Height:    h,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	result := make([]chunk.PageImage, 0, n)
	for _, p := range pages {
		if p != nil {
			result = append(result, *p)
		}
	}
	r.logger.Debug("render: done", "pages", n, "rendered", len(result))
	return result, nil
}

// PageImages renders every page and returns only the encoded bytes, for OCR.
func (r *Renderer) PageImages(ctx context.Context, data []byte) ([][]byte, error) {
	pages, err := r.Render(ctx, data)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(pages))
	for i, p := range pages {
		out[i] = p.Data
	}
	return out, nil
}

// encode downscales img and encodes it as JPEG, returning the final size.
func (r *Renderer) encode(img image.Image) ([]byte, int, int, error) {
	img = ScaleToWidth(img, r.opts.MaxWidth)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.opts.Quality}); err != nil {
		return nil, 0, 0, err
	}
	b := img.Bounds()
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}

// ScaleToWidth shrinks img to maxWidth pixels wide, keeping its aspect ratio.
// Images already narrow enough are returned unchanged.
func ScaleToWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := max(1, b.Dy()*maxWidth/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
