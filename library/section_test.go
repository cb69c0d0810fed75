package library

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fourBelayChunks is 160 bytes that split into four 40-byte chunks, each
// mentioning belay. The last chunk mentions it twice and scores highest.
func fourBelayChunks() string {
	var sb strings.Builder
	for _, l := range []string{"p", "q", "r"} {
		sb.WriteString("belay " + strings.Repeat(l, 33) + ".")
	}
	sb.WriteString("belay belay " + strings.Repeat("s", 27) + ".")
	return sb.String()
}

func TestGetChapterSection_ScenarioC(t *testing.T) {
	f := newFixture(t, map[string]string{"belay.pdf": fourBelayChunks()}, false,
		func(c *Config) { c.Chunk.Size = 40 })
	extractAll(t, f, "belay.pdf")
	ctx := context.Background()

	tests := []struct {
		level string
		want  []int
	}{
		{LevelBrief, []int{0}},
		{"", []int{0}},
		{LevelDetailed, []int{0, 1}},
		{LevelComprehensive, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		resp, err := f.lib.GetChapterSection(ctx, "belay.pdf", "belay", tt.level)
		if err != nil {
			t.Fatal(err)
		}
		// Document order, not score order: chunk 3 scores highest but
		// brief still returns chunk 0. Whether section lookups should rank
		// by score like search does is an open product question.
		if len(resp.ChunkIDs) != len(tt.want) {
			t.Fatalf("%q: chunk ids = %v, want %v", tt.level, resp.ChunkIDs, tt.want)
		}
		for i := range tt.want {
			if resp.ChunkIDs[i] != tt.want[i] {
				t.Fatalf("%q: chunk ids = %v, want %v", tt.level, resp.ChunkIDs, tt.want)
			}
		}
		if !strings.HasPrefix(resp.Content, "belay ppp") {
			t.Errorf("%q: content = %q", tt.level, resp.Content)
		}
		if !strings.HasPrefix(resp.ShortCitation, "Climbing Anchors, ") {
			t.Errorf("%q: short citation = %q", tt.level, resp.ShortCitation)
		}
	}
}

func TestGetChapterSection_ScenarioD(t *testing.T) {
	f := newFixture(t, map[string]string{"belay.pdf": "belay"}, false)
	_, err := f.lib.GetChapterSection(context.Background(), "belay.pdf", "belay", LevelBrief)
	if !errors.Is(err, ErrNotExtracted) {
		t.Fatalf("err = %v, want ErrNotExtracted", err)
	}
	if !strings.Contains(err.Error(), "extract") {
		t.Fatalf("message should tell the caller to extract first: %q", err)
	}
}

func TestGetChapterSection_NoMatchAndBadArgs(t *testing.T) {
	f := newFixture(t, map[string]string{"belay.pdf": "belay"}, false)
	extractAll(t, f, "belay.pdf")
	ctx := context.Background()

	resp, err := f.lib.GetChapterSection(ctx, "belay.pdf", "rappel", LevelBrief)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message == "" || resp.Content != "" || len(resp.ChunkIDs) != 0 {
		t.Fatalf("resp = %+v", resp)
	}

	if _, err := f.lib.GetChapterSection(ctx, "belay.pdf", "belay", "verbose"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("bad level: err = %v", err)
	}
	for _, topic := range []string{"of", "   "} {
		resp, err := f.lib.GetChapterSection(ctx, "belay.pdf", topic, LevelBrief)
		if err != nil {
			t.Fatalf("topic %q: err = %v", topic, err)
		}
		if resp.Message == "" || resp.Content != "" || len(resp.ChunkIDs) != 0 {
			t.Fatalf("topic %q: resp = %+v", topic, resp)
		}
	}
	if _, err := f.lib.GetChapterSection(ctx, "missing.pdf", "of", LevelBrief); !errors.Is(err, ErrChapterNotFound) {
		t.Errorf("missing chapter: err = %v", err)
	}
}

func TestGetChapterText(t *testing.T) {
	f := newFixture(t, map[string]string{"anchors.pdf": anchorsText}, false)
	ctx := context.Background()

	// Uncached: extracted on demand.
	resp, err := f.lib.GetChapterText(ctx, "anchors.pdf", 7, 7)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "anchors" || resp.Start != 7 || resp.End != 14 || !resp.HasMore {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.TotalLength != len(anchorsText) || resp.StartPage != 1 || resp.Citation == "" {
		t.Fatalf("resp = %+v", resp)
	}
	if f.extractor.calls.Load() != 1 {
		t.Fatalf("calls = %d", f.extractor.calls.Load())
	}

	resp, err = f.lib.GetChapterText(ctx, "anchors.pdf", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != anchorsText || resp.HasMore {
		t.Fatalf("default length: %+v", resp)
	}

	resp, err = f.lib.GetChapterText(ctx, "anchors.pdf", 10_000, 10)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "" || resp.HasMore {
		t.Fatalf("past end: %+v", resp)
	}

	if _, err := f.lib.GetChapterText(ctx, "anchors.pdf", -1, 10); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("negative start: err = %v", err)
	}
}

func TestGetChapterText_RuneBoundaries(t *testing.T) {
	text := strings.Repeat("é", 20)
	f := newFixture(t, map[string]string{"accents.pdf": text}, false)
	resp, err := f.lib.GetChapterText(context.Background(), "accents.pdf", 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Start != 0 || resp.Text != "éé" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestGetVisualContent(t *testing.T) {
	f := newFixture(t, map[string]string{"belay.pdf": "belay page one\fbelay page two"}, true)
	ctx := context.Background()

	if _, err := f.lib.GetVisualContent(ctx, "belay.pdf", nil, ""); !errors.Is(err, ErrNotExtracted) {
		t.Fatalf("uncached: err = %v", err)
	}
	extractAll(t, f, "belay.pdf")

	resp, err := f.lib.GetVisualContent(ctx, "belay.pdf", []int{2, 9}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Pages) != 1 || resp.Pages[0].Page != 2 {
		t.Fatalf("pages = %+v", resp.Pages)
	}
	p := resp.Pages[0]
	if string(p.Image.Data) != "jpeg-page-2" || p.TextContext != "belay page two" {
		t.Fatalf("page = %+v", p)
	}

	resp, err = f.lib.GetVisualContent(ctx, "belay.pdf", nil, "belay")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Pages) != 2 {
		t.Fatalf("topic pages = %+v", resp.Pages)
	}
}

func TestGetVisualContent_Disabled(t *testing.T) {
	f := newFixture(t, map[string]string{"belay.pdf": "belay"}, false)
	extractAll(t, f, "belay.pdf")
	if _, err := f.lib.GetVisualContent(context.Background(), "belay.pdf", nil, ""); !errors.Is(err, ErrImagesDisabled) {
		t.Fatalf("err = %v", err)
	}
}

func TestParsePages(t *testing.T) {
	got, err := parsePages("1, 3-5,8")
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 3, 4, 5, 8}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if got, err := parsePages(""); err != nil || got != nil {
		t.Fatalf("empty: %v, %v", got, err)
	}
	for _, bad := range []string{"x", "0", "5-3", "2-y"} {
		if _, err := parsePages(bad); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("parsePages(%q): err = %v", bad, err)
		}
	}
}
