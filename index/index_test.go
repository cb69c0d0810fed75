package index

import (
	"slices"
	"testing"
)

func TestWords(t *testing.T) {
	got := Words("The SERENE anchor, a rope-to-bolt setup.")
	want := []string{"the", "serene", "anchor", "rope", "bolt", "setup"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWords_Unicode(t *testing.T) {
	got := Words("équilibrage du relais")
	want := []string{"équilibrage", "relais"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBuild(t *testing.T) {
	idx := Build([]string{
		"Anchor anchor rope",
		"rope and belay",
		"nothing here",
	})
	if got := idx.Lookup("anchor"); !slices.Equal(got, []int{0}) {
		t.Errorf("anchor: got %v", got)
	}
	if got := idx.Lookup("ROPE"); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("rope: got %v", got)
	}
	if got := idx.Lookup("and"); !slices.Equal(got, []int{1}) {
		t.Errorf("and: got %v", got)
	}
	if _, ok := idx["an"]; ok {
		t.Error("short words must not be indexed")
	}
	if got := idx.Lookup("missing"); got != nil {
		t.Errorf("missing: got %v", got)
	}
}

func TestExtractTopics(t *testing.T) {
	got := ExtractTopics("SERENE anchors use equalization and redundancy.")
	for _, want := range []string{"anchor", "anchors", "SERENE", "equalization", "redundancy"} {
		if !slices.Contains(got, want) {
			t.Errorf("topics %v missing %q", got, want)
		}
	}
}

func TestExtractTopics_Deterministic(t *testing.T) {
	// WHAT: same input gives the same ordered, duplicate-free subset.
	// WHY: topics are persisted and compared across extractions.
	text := "Rope, rope and more ROPE. Belay the leader on lead with a cam and a nut."
	first := ExtractTopics(text)
	for i := 0; i < 5; i++ {
		if again := ExtractTopics(text); !slices.Equal(first, again) {
			t.Fatalf("run %d: got %v, want %v", i, again, first)
		}
	}

	seen := map[string]bool{}
	last := -1
	for _, topic := range first {
		if seen[topic] {
			t.Errorf("duplicate topic %q", topic)
		}
		seen[topic] = true
		pos := slices.Index(Vocabulary, topic)
		if pos < 0 {
			t.Errorf("topic %q not in vocabulary", topic)
		}
		if pos < last {
			t.Errorf("topic %q out of vocabulary order", topic)
		}
		last = pos
	}
}

func TestExtractTopics_None(t *testing.T) {
	if got := ExtractTopics("xyz"); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}
