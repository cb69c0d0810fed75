package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/chapterkb/cache"
	"github.com/hazyhaar/chapterkb/chunk"
	"github.com/hazyhaar/chapterkb/docpipe"
	"github.com/hazyhaar/chapterkb/internal/pdftest"
)

// fakeExtractor reads test "PDFs" as plain text, one page per form feed.
type fakeExtractor struct {
	calls atomic.Int32
	gate  chan struct{} // when set, extraction waits for it to close
}

func (f *fakeExtractor) ExtractPDF(ctx context.Context, data []byte) *docpipe.Result {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
		}
	}
	pages := strings.Split(string(data), "\f")
	res := &docpipe.Result{PageTexts: map[int]string{}, TotalPages: len(pages), Method: "fake"}
	for i, p := range pages {
		res.PageTexts[i+1] = p
	}
	res.Text = strings.Join(pages, "\n\n")
	return res
}

// fakeRenderer returns one small image per form-feed page.
type fakeRenderer struct{}

func (fakeRenderer) Render(_ context.Context, data []byte) ([]chunk.PageImage, error) {
	n := strings.Count(string(data), "\f") + 1
	out := make([]chunk.PageImage, n)
	for i := range out {
		img := []byte("jpeg-page-" + string(rune('1'+i)))
		out[i] = chunk.PageImage{Page: i + 1, Data: img, SizeBytes: len(img), Width: 10, Height: 14}
	}
	return out, nil
}

type fixture struct {
	lib       *Library
	extractor *fakeExtractor
	cfg       Config
}

// newFixture writes chapters (file name -> text) into a temp chapters dir and
// returns a Library over a temp file cache.
func newFixture(t *testing.T, chapters map[string]string, withImages bool, tweak ...func(*Config)) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		ChaptersDir: filepath.Join(root, "climbing_anchors"),
		Cache:       CacheConfig{Dir: filepath.Join(root, "cache")},
	}
	for _, fn := range tweak {
		fn(&cfg)
	}
	if err := os.MkdirAll(cfg.ChaptersDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, text := range chapters {
		if err := os.WriteFile(filepath.Join(cfg.ChaptersDir, name), []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := cache.NewFileStore(cfg.Cache.Dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	ext := &fakeExtractor{}
	var rnd Renderer
	if withImages {
		rnd = fakeRenderer{}
	}
	lib := New(cfg, store, ext, rnd)
	t.Cleanup(func() { lib.Close() })
	return &fixture{lib: lib, extractor: ext, cfg: lib.cfg}
}

func (f *fixture) writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.cfg.ChaptersDir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const anchorsText = "SERENE anchors use equalization and redundancy."

func TestExtractChapter(t *testing.T) {
	f := newFixture(t, map[string]string{"anchors.pdf": anchorsText}, false)
	ctx := context.Background()

	s, err := f.lib.ExtractChapter(ctx, "anchors.pdf", false)
	if err != nil {
		t.Fatal(err)
	}
	if s.Cached || s.ChunkCount != 1 || s.TextLength != len(anchorsText) || s.TotalPages != 1 {
		t.Fatalf("summary = %+v", s)
	}
	for _, want := range []string{"anchor", "SERENE", "equalization"} {
		found := false
		for _, topic := range s.Topics {
			if topic == want {
				found = true
			}
		}
		if !found {
			t.Errorf("topics %v missing %q", s.Topics, want)
		}
	}

	// Cached unless forced.
	s, err = f.lib.ExtractChapter(ctx, "anchors", false)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Cached || f.extractor.calls.Load() != 1 {
		t.Fatalf("second call: cached=%v calls=%d", s.Cached, f.extractor.calls.Load())
	}
	if _, err := f.lib.ExtractChapter(ctx, "anchors.pdf", true); err != nil {
		t.Fatal(err)
	}
	if f.extractor.calls.Load() != 2 {
		t.Fatalf("forced re-extraction did not run: calls=%d", f.extractor.calls.Load())
	}
}

func TestExtractChapter_Errors(t *testing.T) {
	f := newFixture(t, map[string]string{"anchors.pdf": anchorsText}, false)
	ctx := context.Background()

	if _, err := f.lib.ExtractChapter(ctx, "missing.pdf", false); !errors.Is(err, ErrChapterNotFound) {
		t.Errorf("missing: err = %v", err)
	}
	for _, id := range []string{"", "../anchors.pdf", "sub/anchors.pdf", ".."} {
		if _, err := f.lib.ExtractChapter(ctx, id, false); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("id %q: err = %v", id, err)
		}
	}
}

func TestExtractChapter_SizeLimit(t *testing.T) {
	f := newFixture(t, map[string]string{"anchors.pdf": anchorsText}, false, func(c *Config) {
		c.Extract.MaxFileSize = 8
	})
	if _, err := f.lib.ExtractChapter(context.Background(), "anchors.pdf", false); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if f.extractor.calls.Load() != 0 {
		t.Fatal("oversized file reached the extractor")
	}
}

func TestExtractChapter_CorruptCacheReextracts(t *testing.T) {
	// WHAT: an unreadable cache record counts as a miss.
	// WHY: corruption must never surface to the caller.
	f := newFixture(t, map[string]string{"anchors.pdf": anchorsText}, false)
	ctx := context.Background()
	bad := filepath.Join(f.cfg.Cache.Dir, cache.Key("anchors.pdf")+".json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := f.lib.ExtractChapter(ctx, "anchors.pdf", false)
	if err != nil {
		t.Fatal(err)
	}
	if s.Cached || f.extractor.calls.Load() != 1 {
		t.Fatalf("corrupt record not re-extracted: %+v", s)
	}
}

func TestExtractChapter_ConcurrentForce(t *testing.T) {
	f := newFixture(t, map[string]string{"anchors.pdf": anchorsText}, false)
	f.extractor.gate = make(chan struct{})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.lib.ExtractChapter(ctx, "anchors.pdf", true)
			errs <- err
		}()
	}
	close(f.extractor.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	c, err := f.lib.store.Load(ctx, "anchors.pdf")
	if err != nil {
		t.Fatalf("record unreadable after concurrent extraction: %v", err)
	}
	if c.FullText != anchorsText {
		t.Fatalf("full text = %q", c.FullText)
	}
}

func TestExtractChapter_CancelledCallerDoesNotFailOthers(t *testing.T) {
	// WHAT: a caller cancelling mid-extraction gets its own ctx error while
	// a second caller waiting on the same chapter still gets the record.
	// WHY: an HTTP client disconnecting must not fail the MCP call beside it.
	f := newFixture(t, map[string]string{"anchors.pdf": anchorsText}, false)
	f.extractor.gate = make(chan struct{})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := f.lib.ExtractChapter(ctxA, "anchors.pdf", true)
		errA <- err
	}()
	waitUntil(t, "first extraction started", func() bool { return f.extractor.calls.Load() == 1 })

	errB := make(chan error, 1)
	go func() {
		_, err := f.lib.ExtractChapter(context.Background(), "anchors.pdf", true)
		errB <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: err = %v, want context.Canceled", err)
	}
	close(f.extractor.gate)
	if err := <-errB; err != nil {
		t.Fatalf("waiting caller: %v", err)
	}
	c, err := f.lib.store.Load(context.Background(), "anchors.pdf")
	if err != nil || c.FullText != anchorsText {
		t.Fatalf("record after shared extraction: %+v, %v", c, err)
	}
}

func TestExtractChapter_Images(t *testing.T) {
	f := newFixture(t, map[string]string{"belay.pdf": "belay page one\fbelay page two"}, true)
	ctx := context.Background()

	s, err := f.lib.ExtractChapter(ctx, "belay.pdf", false)
	if err != nil {
		t.Fatal(err)
	}
	if s.ImageCount != 2 || s.TotalPages != 2 {
		t.Fatalf("summary = %+v", s)
	}
	c, err := f.lib.store.Load(ctx, "belay.pdf")
	if err != nil {
		t.Fatal(err)
	}
	for _, img := range c.Images {
		data, err := os.ReadFile(img.SourcePath)
		if err != nil {
			t.Fatalf("image file: %v", err)
		}
		if string(data) != string(img.Data) {
			t.Fatalf("image file content differs for page %d", img.Page)
		}
	}
	for _, ch := range c.Chunks {
		for _, img := range ch.Images {
			if img.Data != nil {
				t.Fatal("chunk image references must not carry bytes")
			}
		}
	}
}

func TestListChapters(t *testing.T) {
	f := newFixture(t, map[string]string{
		"anchors.pdf": anchorsText,
		"knots.pdf":   "Figure eight knot.",
		"notes.txt":   "not a chapter",
	}, false)
	f.writeFile(t, "anchors.yaml", "title: Building Anchors\ndescription: Anchor systems\nkeywords: [anchor, SERENE]\n")
	f.writeFile(t, "knots.json", `{"title": "Knots", "keywords": ["knot"]}`)
	ctx := context.Background()

	if _, err := f.lib.ExtractChapter(ctx, "anchors.pdf", false); err != nil {
		t.Fatal(err)
	}
	list, err := f.lib.ListChapters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d chapters, want 2", len(list))
	}
	a, k := list[0], list[1]
	if a.Filename != "anchors.pdf" || a.Title != "Building Anchors" || len(a.Keywords) != 2 {
		t.Errorf("anchors = %+v", a)
	}
	if !a.ExtractionStatus.Extracted || a.ExtractionStatus.ChunkCount != 1 || a.ExtractionStatus.ExtractedAt == nil {
		t.Errorf("anchors status = %+v", a.ExtractionStatus)
	}
	if k.Title != "Knots" || k.ExtractionStatus.Extracted {
		t.Errorf("knots = %+v", k)
	}
}

func TestListChapters_DefaultsAndBadSidecar(t *testing.T) {
	f := newFixture(t, map[string]string{"Chapter 3. Rappelling.pdf": "rappel", "bad.pdf": "x"}, false)
	f.writeFile(t, "bad.yaml", "title: [unclosed")

	list, err := f.lib.ListChapters(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d chapters", len(list))
	}
	for _, c := range list {
		if c.Title == "" {
			t.Errorf("%s: empty default title", c.Filename)
		}
		if c.Keywords == nil {
			t.Errorf("%s: keywords must be an empty list, not null", c.Filename)
		}
	}
}

func TestDeriveKeywords(t *testing.T) {
	text := "The rope runs through the anchor. The anchor holds the rope. Every anchor needs a rope and a carabiner."
	kw := DeriveKeywords(text, 3)
	if len(kw) == 0 || len(kw) > 3 {
		t.Fatalf("keywords = %v", kw)
	}
	for _, w := range kw {
		if w != strings.ToLower(w) {
			t.Errorf("keyword %q not lower-cased", w)
		}
	}
	if DeriveKeywords("   ", 3) != nil {
		t.Error("blank text should yield no keywords")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chapterkb.yaml")
	yml := `
chapters_dir: /data/climbing_anchors
cache:
  backend: sqlite
  dir: /var/cache/chapterkb
chunk:
  size: 50000
render:
  enabled: false
  dpi: 150
search:
  metadata_boost: false
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BookID != "climbing_anchors" {
		t.Errorf("book id = %q", cfg.BookID)
	}
	if cfg.Cache.DBPath != filepath.Join("/var/cache/chapterkb", "chapters.db") {
		t.Errorf("db path = %q", cfg.Cache.DBPath)
	}
	if cfg.Chunk.Size != 50000 || cfg.Render.Enabled || cfg.Render.Options.DPI != 150 || cfg.Search.MetadataBoost {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.OCR.Language != "eng" {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	if err := os.WriteFile(path, []byte("cache:\n  backend: redis\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("unknown backend must fail")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Render.Enabled || !cfg.Search.MetadataBoost || cfg.Cache.Backend != BackendFile {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestOpen_SQLiteBackend(t *testing.T) {
	root := t.TempDir()
	cfg := Config{
		ChaptersDir: filepath.Join(root, "chapters"),
		Cache:       CacheConfig{Backend: BackendSQLite, Dir: filepath.Join(root, "cache"), TraceSQL: true},
	}
	if err := os.MkdirAll(cfg.ChaptersDir, 0o755); err != nil {
		t.Fatal(err)
	}
	lib, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer lib.Close()
	if lib.ImagesEnabled() {
		t.Error("rendering should be off unless enabled")
	}
	if _, ok := lib.store.(*cache.SQLiteStore); !ok {
		t.Fatalf("store = %T, want *cache.SQLiteStore", lib.store)
	}
	if _, err := os.Stat(cfg.Cache.Dir); err != nil {
		t.Fatalf("cache dir: %v", err)
	}
	// The traced driver must behave like the plain one.
	if _, err := lib.load(context.Background(), "anchors.pdf"); err != nil {
		t.Fatalf("load through traced driver: %v", err)
	}
}

func TestPipeline_RealPDF(t *testing.T) {
	// WHAT: extraction through docpipe on a generated PDF, then search.
	// WHY: the fakes above skip PDF parsing entirely.
	root := t.TempDir()
	cfg := Config{
		ChaptersDir: filepath.Join(root, "climbing_anchors"),
		Cache:       CacheConfig{Dir: filepath.Join(root, "cache")},
	}
	if err := os.MkdirAll(cfg.ChaptersDir, 0o755); err != nil {
		t.Fatal(err)
	}
	pdf := pdftest.TextPDF(
		"SERENE anchors use equalization and redundancy.",
		"Belay from the master point of the anchor.",
	)
	if err := os.WriteFile(filepath.Join(cfg.ChaptersDir, "anchors.pdf"), pdf, 0o644); err != nil {
		t.Fatal(err)
	}
	lib, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer lib.Close()
	ctx := context.Background()

	s, err := lib.ExtractChapter(ctx, "anchors.pdf", false)
	if err != nil {
		t.Fatal(err)
	}
	if s.TextLength == 0 {
		t.Skipf("no text extracted from generated PDF (warnings: %v)", s.Warnings)
	}
	resp, err := lib.SearchContent(ctx, "anchor", 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if resp.TotalResults != 1 {
		t.Fatalf("search = %+v", resp)
	}
}
