package chunk

import (
	"regexp"
	"strings"
)

// headingPatterns are tried in order against the whole chunk; the first
// pattern with a match wins and its first match is the heading.
var headingPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"all-caps", regexp.MustCompile(`(?m)^[ \t]*([A-Z][A-Z0-9 ,:'&-]{3,60}[A-Z0-9])[ \t]*$`)},
	{"title-case", regexp.MustCompile(`(?m)^[ \t]*([A-Z][a-z]+(?:[ \t]+(?:[A-Z][a-z]+|of|and|the|for|in|to|a|an|with)){1,7})[ \t]*$`)},
	{"numbered", regexp.MustCompile(`(?m)^[ \t]*((?:(?:Chapter|Section|Part)[ \t]+\d+[.:]?|\d+(?:\.\d+)*\.?)[ \t]+[A-Z][^\n.]{2,60})[ \t]*$`)},
	{"domain", regexp.MustCompile(`(?mi)^[ \t]*([^\n.]{0,40}\b(?:anchors?|belay(?:ing)?|rappel(?:ling)?|protection|knots?|rescue)\b[^\n.]{0,40})$`)},
}

// KnownSections is the fallback vocabulary of section names, searched
// case-insensitively when no heading pattern matches.
var KnownSections = []string{
	"Introduction", "Overview", "Summary", "Conclusion",
	"Anchor Systems", "Anchor Building", "Belay Techniques", "Rappelling",
	"Knots and Hitches", "Equalization", "Redundancy", "Self-Rescue",
	"Traditional Protection", "Sport Anchors", "Top-Rope Anchors",
	"Multi-Pitch", "Gear", "Safety",
}

// DetectHeading returns the section heading of a chunk, or nil.
func DetectHeading(text string) *string {
	for _, p := range headingPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			h := strings.TrimSpace(m[1])
			return &h
		}
	}
	lower := strings.ToLower(text)
	for _, s := range KnownSections {
		if strings.Contains(lower, strings.ToLower(s)) {
			h := s
			return &h
		}
	}
	return nil
}
