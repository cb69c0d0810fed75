// Package citation renders bibliographic, inline and short citations for
// chapters, from a book metadata table and filename title matchers.
package citation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// BookMetadata describes a book. It is presentation data only.
type BookMetadata struct {
	Title     string   `json:"title" yaml:"title"`
	Authors   []string `json:"authors" yaml:"authors"`
	Edition   string   `json:"edition" yaml:"edition"`
	Publisher string   `json:"publisher" yaml:"publisher"`
	Year      int      `json:"year" yaml:"year"`
}

// TitleMatcher derives a chapter title from a PDF filename. Match reports
// false when the matcher does not apply.
type TitleMatcher struct {
	Name  string
	Match func(filename string) (string, bool)
}

// Formatter renders citations. Books is keyed by book id (the chapters
// directory name); Titles are tried in order.
type Formatter struct {
	Books  map[string]BookMetadata
	Titles []TitleMatcher
}

// DefaultBooks is the built-in book table.
var DefaultBooks = map[string]BookMetadata{
	"climbing_anchors": {
		Title:     "Climbing Anchors",
		Authors:   []string{"John Long", "Bob Gaines"},
		Edition:   "2nd",
		Publisher: "Falcon Guides",
		Year:      2006,
	},
	"rock_climbing_anchors": {
		Title:     "Rock Climbing Anchors: A Comprehensive Guide",
		Authors:   []string{"Craig Luebben"},
		Edition:   "1st",
		Publisher: "The Mountaineers Books",
		Year:      2007,
	},
	"freedom_of_the_hills": {
		Title:     "Mountaineering: The Freedom of the Hills",
		Authors:   []string{"The Mountaineers"},
		Edition:   "9th",
		Publisher: "The Mountaineers Books",
		Year:      2017,
	},
}

// DefaultTitles is the built-in matcher list.
var DefaultTitles = []TitleMatcher{
	PatternMatcher("chapter-number", `(?i)^chapter[ _]+(\d+)[ _]*[.:-]?[ _]*(.+)$`),
	PatternMatcher("number-prefix", `^(\d+)[ ]*[-_.][ _]*(.+)$`),
	LiteralMatcher("top_rope", "Top-Rope Anchors"),
	LiteralMatcher("multi_pitch", "Multi-Pitch Anchors"),
	LiteralMatcher("self_rescue", "Self-Rescue"),
	LiteralMatcher("serene", "SERENE Anchors"),
}

// Default returns a Formatter over copies of the built-in tables.
func Default() *Formatter {
	books := make(map[string]BookMetadata, len(DefaultBooks))
	for k, v := range DefaultBooks {
		books[k] = v
	}
	return &Formatter{
		Books:  books,
		Titles: append([]TitleMatcher(nil), DefaultTitles...),
	}
}

// PatternMatcher matches the filename stem against pattern, whose two groups
// are the chapter number and the title: "Chapter 3. Belay Anchors.pdf"
// becomes "Chapter 3: Belay Anchors".
func PatternMatcher(name, pattern string) TitleMatcher {
	re := regexp.MustCompile(pattern)
	return TitleMatcher{Name: name, Match: func(filename string) (string, bool) {
		m := re.FindStringSubmatch(stem(filename))
		if m == nil {
			return "", false
		}
		title := strings.TrimSpace(strings.ReplaceAll(m[2], "_", " "))
		if title == "" {
			return "", false
		}
		n, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("Chapter %d: %s", n, title), true
	}}
}

// LiteralMatcher returns title when the lower-cased filename contains substr.
func LiteralMatcher(substr, title string) TitleMatcher {
	substr = strings.ToLower(substr)
	return TitleMatcher{Name: "literal:" + substr, Match: func(filename string) (string, bool) {
		return title, strings.Contains(strings.ToLower(filename), substr)
	}}
}

func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ChapterTitle derives the display title of a chapter file. Without a
// matching matcher the extension is stripped.
func (f *Formatter) ChapterTitle(filename string) string {
	for _, m := range f.Titles {
		if title, ok := m.Match(filename); ok {
			return title
		}
	}
	return stem(filename)
}

// Book returns the metadata of bookID, or a stub for unknown books.
func (f *Formatter) Book(bookID string) BookMetadata {
	if b, ok := f.Books[bookID]; ok {
		return b
	}
	return BookMetadata{
		Title:     strings.ReplaceAll(bookID, "_", " "),
		Authors:   []string{"Unknown"},
		Edition:   "Unknown",
		Publisher: "Unknown",
	}
}

// Full renders a reference-list citation:
//
//	Long, J., & Gaines, B. (2006). Climbing Anchors (2nd ed.). Falcon Guides. Chapter 3: Belay. Section: Equalization.
func (f *Formatter) Full(bookID, filename string, section *string) string {
	b := f.Book(bookID)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s). %s", referenceAuthors(b.Authors), year(b.Year), b.Title)
	if known(b.Edition) {
		fmt.Fprintf(&sb, " (%s ed.)", b.Edition)
	}
	sb.WriteString(".")
	if known(b.Publisher) {
		fmt.Fprintf(&sb, " %s.", b.Publisher)
	}
	fmt.Fprintf(&sb, " %s.", f.ChapterTitle(filename))
	if section != nil && *section != "" {
		fmt.Fprintf(&sb, " Section: %s.", *section)
	}
	return sb.String()
}

// Inline renders a parenthetical citation: (Long & Gaines, 2006, Chapter 3: Belay).
func (f *Formatter) Inline(bookID, filename string, section *string) string {
	b := f.Book(bookID)
	parts := []string{inlineAuthors(b.Authors), year(b.Year), f.ChapterTitle(filename)}
	if section != nil && *section != "" {
		parts = append(parts, *section)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Short renders "Book Title, Chapter Title".
func (f *Formatter) Short(bookID, filename string) string {
	return f.Book(bookID).Title + ", " + f.ChapterTitle(filename)
}

func known(s string) bool { return s != "" && s != "Unknown" }

func year(y int) string {
	if y == 0 {
		return "n.d."
	}
	return strconv.Itoa(y)
}

// surname returns the last word of a name; multi-word organisations
// ("The Mountaineers") are kept whole.
func surname(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "Unknown"
	}
	if fields[0] == "The" {
		return name
	}
	return fields[len(fields)-1]
}

func initials(name string) string {
	fields := strings.Fields(name)
	if len(fields) < 2 || fields[0] == "The" {
		return ""
	}
	var out []string
	for _, f := range fields[:len(fields)-1] {
		out = append(out, string([]rune(f)[:1])+".")
	}
	return strings.Join(out, " ")
}

func referenceAuthors(authors []string) string {
	if len(authors) == 0 {
		return "Unknown."
	}
	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = surname(a)
		if in := initials(a); in != "" {
			names[i] += ", " + in
		}
	}
	switch len(names) {
	case 1:
		return ensureDot(names[0])
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", & " + ensureDot(names[len(names)-1])
	}
}

func ensureDot(s string) string {
	if strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}

func inlineAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return "Unknown"
	case 1:
		return surname(authors[0])
	case 2:
		return surname(authors[0]) + " & " + surname(authors[1])
	default:
		return surname(authors[0]) + " et al."
	}
}
