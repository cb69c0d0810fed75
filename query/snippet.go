package query

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// Snippet returns a window of about width bytes of text centred on the
// earliest occurrence of any of words, with "..." where the window was
// clipped. When no word occurs the leading window is returned.
func Snippet(text string, words []string, width int) string {
	if width <= 0 {
		width = DefaultSnippetWidth
	}
	if len(text) <= width {
		return text
	}

	start := 0
	if pos := earliest(text, words); pos >= 0 {
		start = max(pos-width/2, 0)
	}
	end := min(start+width, len(text))
	start = max(end-width, 0)
	start, end = runeFloor(text, start), runeFloor(text, end)

	var sb strings.Builder
	if start > 0 {
		sb.WriteString(ellipsis)
	}
	sb.WriteString(strings.TrimSpace(text[start:end]))
	if end < len(text) {
		sb.WriteString(ellipsis)
	}
	return sb.String()
}

// earliest returns the byte offset of the first case-insensitive
// occurrence of any word, or -1.
func earliest(text string, words []string) int {
	alts := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			alts = append(alts, regexp.QuoteMeta(w))
		}
	}
	if len(alts) == 0 {
		return -1
	}
	re := regexp.MustCompile(`(?i)` + strings.Join(alts, "|"))
	loc := re.FindStringIndex(text)
	if loc == nil {
		return -1
	}
	return loc[0]
}

func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
