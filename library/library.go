// CLAUDE:SUMMARY Chapter library orchestrator wiring the extraction pipeline, cache, query engine and citations behind the chapter operations.
// Package library serves retrieval over a directory of PDF chapters.
//
// The pipeline:
//
//	PDF bytes → docpipe → reconstruct → chunk (+ index) → cache ⇄ query → result (+ citation)
//
// Operations (each takes a context and returns a JSON-ready struct):
//   - ListChapters: every PDF with its metadata and extraction status
//   - ExtractChapter: run the pipeline and cache the result
//   - SearchContent: rank cached chapters against a query
//   - GetChapterSection: the first chunks matching a topic, in document order
//   - GetChapterText: a window of a chapter's full text
//   - GetVisualContent: rendered pages with their text
//   - Refresh / Watch: keep the cache in step with the chapters directory
//
// Usage:
//
//	lib, err := library.Open(cfg)
//	defer lib.Close()
//	lib.RegisterMCP(mcpServer)
//	http.ListenAndServe(cfg.HTTP.Addr, lib.Router())
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hazyhaar/chapterkb/cache"
	"github.com/hazyhaar/chapterkb/chunk"
	"github.com/hazyhaar/chapterkb/citation"
	"github.com/hazyhaar/chapterkb/dbopen"
	"github.com/hazyhaar/chapterkb/docpipe"
	"github.com/hazyhaar/chapterkb/horosafe"
	"github.com/hazyhaar/chapterkb/ocr"
	"github.com/hazyhaar/chapterkb/query"
	"github.com/hazyhaar/chapterkb/render"
	"github.com/hazyhaar/chapterkb/trace"
)

var (
	ErrChapterNotFound = errors.New("library: chapter not found")
	ErrNotExtracted    = errors.New("library: chapter not extracted yet, run extract_chapter first")
	ErrInvalidArgument = errors.New("library: invalid argument")
	ErrImagesDisabled  = errors.New("library: page rendering is disabled")
)

// Extractor turns PDF bytes into text. It never fails; problems are
// reported as warnings on the result.
type Extractor interface {
	ExtractPDF(ctx context.Context, data []byte) *docpipe.Result
}

// Renderer rasterizes every page of a PDF.
type Renderer interface {
	Render(ctx context.Context, data []byte) ([]chunk.PageImage, error)
}

// Library is the chapter service. It is safe for concurrent use.
type Library struct {
	cfg       Config
	store     cache.Store
	extractor Extractor
	renderer  Renderer // nil when rendering is disabled
	citations *citation.Formatter
	engine    *query.Engine
	logger    *slog.Logger

	group    singleflight.Group
	locks    sync.Map // chapter id -> *sync.Mutex
	keywords keywordCache
	closers  []func() error
}

// New creates a Library over an open store. renderer may be nil.
func New(cfg Config, store cache.Store, extractor Extractor, renderer Renderer) *Library {
	cfg.defaults()
	return &Library{
		cfg:       cfg,
		store:     store,
		extractor: extractor,
		renderer:  renderer,
		citations: citation.Default(),
		engine:    query.NewEngine(cfg.Logger),
		logger:    cfg.Logger,
	}
}

// Open builds a Library from configuration: the cache backend, the
// extraction pipeline, the page renderer and the OCR engine.
func Open(cfg Config) (*Library, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	ropts := cfg.Render.Options
	ropts.Logger = cfg.Logger
	rnd := render.New(ropts)

	pcfg := cfg.Extract
	pcfg.Logger = cfg.Logger
	var closers []func() error
	if cfg.OCR.Enabled {
		eng, err := ocr.New(cfg.OCR.Language)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("library: ocr: %w", err)
		}
		pcfg.OCR = eng
		pcfg.Pages = rnd
		closers = append(closers, eng.Close)
	}

	var renderer Renderer
	if cfg.Render.Enabled {
		renderer = rnd
	}
	l := New(cfg, store, docpipe.New(pcfg), renderer)
	l.closers = append(closers, store.Close)
	return l, nil
}

func openStore(cfg Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case BackendSQLite:
		var opts []dbopen.Option
		if cfg.Cache.TraceSQL {
			opts = append(opts, dbopen.WithDriver(trace.DriverName))
		}
		return cache.OpenSQLite(cfg.Cache.DBPath, cfg.Logger, opts...)
	default:
		return cache.NewFileStore(cfg.Cache.Dir, cfg.Logger)
	}
}

// Close releases the store and the OCR engine.
func (l *Library) Close() error {
	var errs []error
	for _, c := range l.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// ImagesEnabled reports whether page rendering is on.
func (l *Library) ImagesEnabled() bool { return l.renderer != nil }

// resolve maps a chapter id to its PDF path. The id is a file name inside
// the chapters directory; the ".pdf" extension may be omitted.
func (l *Library) resolve(id string) (string, string, error) {
	if err := horosafe.ValidateFileName(id); err != nil {
		return "", "", fmt.Errorf("%w: chapter id: %v", ErrInvalidArgument, err)
	}
	if !strings.EqualFold(filepath.Ext(id), ".pdf") {
		id += ".pdf"
	}
	path, err := horosafe.SafePath(l.cfg.ChaptersDir, id)
	if err != nil {
		return "", "", fmt.Errorf("%w: chapter id: %v", ErrInvalidArgument, err)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", "", fmt.Errorf("%w: %s", ErrChapterNotFound, id)
	}
	return id, path, nil
}

func (l *Library) lock(id string) *sync.Mutex {
	mu, _ := l.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// load returns the cached record of id, or nil on a miss. Corrupt records
// are misses.
func (l *Library) load(ctx context.Context, id string) (*cache.ExtractedContent, error) {
	c, err := l.store.Load(ctx, id)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, cache.ErrNotFound):
		return nil, nil
	case errors.Is(err, cache.ErrCorrupt):
		l.logger.Warn("library: corrupt cache record", "chapter", id, "error", err)
		return nil, nil
	default:
		return nil, err
	}
}

// listPDFs returns the PDF file names of the chapters directory, sorted.
func (l *Library) listPDFs() ([]string, error) {
	entries, err := os.ReadDir(l.cfg.ChaptersDir)
	if err != nil {
		return nil, fmt.Errorf("library: read chapters dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (l *Library) inline(id string, section *string) string {
	return l.citations.Inline(l.cfg.BookID, id, section)
}

func (l *Library) full(id string, section *string) string {
	return l.citations.Full(l.cfg.BookID, id, section)
}

func (l *Library) short(id string) string {
	return l.citations.Short(l.cfg.BookID, id)
}
