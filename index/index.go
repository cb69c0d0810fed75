// Package index builds the inverted word index stored with every extracted
// chapter and tags text with topics drawn from a closed vocabulary.
//
// The query engine scans chunk text directly, so the index is redundant for
// current queries. It is persisted so lookups can move onto it later without
// re-extracting the corpus.
package index

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Index maps a lower-cased word to the sorted ids of the chunks containing it.
type Index map[string][]int

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// Words splits text on non-word runs and returns the lower-cased words longer
// than two characters, in order of appearance. Duplicates are kept.
func Words(text string) []string {
	var out []string
	for _, w := range nonWord.Split(strings.ToLower(text), -1) {
		if utf8.RuneCountInString(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

// Build indexes chunk texts. texts[i] is the text of chunk id i.
func Build(texts []string) Index {
	idx := make(Index)
	for id, text := range texts {
		for _, w := range Words(text) {
			ids := idx[w]
			// Chunks are visited in id order, so the last entry is the only
			// possible duplicate.
			if n := len(ids); n > 0 && ids[n-1] == id {
				continue
			}
			idx[w] = append(ids, id)
		}
	}
	return idx
}

// Lookup returns the chunk ids for word, matched case-insensitively.
func (idx Index) Lookup(word string) []int {
	return idx[strings.ToLower(word)]
}

// Vocabulary is the closed topic vocabulary, in tagging order. Entries keep
// their display form; matching is case-insensitive.
var Vocabulary = []string{
	"anchor", "anchors", "belay", "rappel", "knot", "rope", "carabiner",
	"cam", "nut", "protection", "pitch", "trad", "sport", "lead",
	"technique", "safety", "SERENE", "ERNEST", "equalization", "redundancy",
	"bolt", "sling", "cordelette", "quad", "master point", "hitch",
	"prusik", "munter", "top rope", "multi-pitch", "rescue", "fall factor",
	"placement", "gear", "harness", "helmet",
}

var lowerVocabulary = lowerAll(Vocabulary)

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// ExtractTopics returns the vocabulary entries that occur as substrings of
// text, ignoring case, in vocabulary order.
func ExtractTopics(text string) []string {
	lower := strings.ToLower(text)
	var topics []string
	for i, term := range lowerVocabulary {
		if strings.Contains(lower, term) && !slices.Contains(topics, Vocabulary[i]) {
			topics = append(topics, Vocabulary[i])
		}
	}
	return topics
}
