// CLAUDE:SUMMARY Heuristic repair of character-fragmented PDF text as an ordered list of named, pure rules.
// Package reconstruct repairs text that PDF extraction returned with
// characters split apart ("l a n g e r", "anchorsand the").
//
// Reconstruction is a fixed, ordered list of Rules. Each Rule is a pure
// string transform that can be exercised on its own; Reconstruct applies
// the list repeatedly until the text stops changing, so that
//
//	Reconstruct(Reconstruct(t)) == Reconstruct(t)
//
// The heuristics over-merge legitimately spaced single letters and may split
// a few real words. That noise is accepted.
package reconstruct

import (
	"regexp"
	"strings"
)

// Rule is one named text transform.
type Rule struct {
	Name  string
	Apply func(string) string
}

// maxPasses bounds the fixed-point loop. Real input converges in two or three.
const maxPasses = 10

// Rules is the ordered rule list used by Reconstruct.
var Rules = []Rule{
	{Name: "merge-triples", Apply: MergeTriples},
	{Name: "merge-pairs", Apply: MergePairs},
	{Name: "merge-quintuples", Apply: MergeQuintuples},
	{Name: "word-boundaries", Apply: WordBoundaries},
	{Name: "domain-terms", Apply: DomainTerms},
	{Name: "whitespace", Apply: Whitespace},
	{Name: "dictionary", Apply: Dictionary},
}

// Reconstruct runs every rule in order until the text reaches a fixed point.
func Reconstruct(text string) string {
	if text == "" {
		return ""
	}
	cur := text
	for i := 0; i < maxPasses; i++ {
		next := applyAll(cur)
		if next == cur {
			return cur
		}
		cur = next
	}
	return cur
}

func applyAll(text string) string {
	for _, r := range Rules {
		text = r.Apply(text)
	}
	return text
}

// RuleByName returns the rule with the given name.
func RuleByName(name string) (Rule, bool) {
	for _, r := range Rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

var (
	tripleRun    = regexp.MustCompile(`\b[a-z](?: [a-z]){2,}\b`)
	pairRun      = regexp.MustCompile(`\b([a-z]) ([a-z])\b`)
	quintupleRun = regexp.MustCompile(`\b[A-Za-z](?: [A-Za-z]){4,}\b`)
)

// MergeTriples joins runs of three or more single lowercase letters
// separated by single spaces: "l a n g e r" -> "langer".
func MergeTriples(text string) string {
	return tripleRun.ReplaceAllStringFunc(text, dropSpaces)
}

// MergePairs joins two adjacent single lowercase letters: "o f" -> "of".
func MergePairs(text string) string {
	return pairRun.ReplaceAllString(text, "$1$2")
}

// MergeQuintuples joins runs of five or more single letters of either case,
// which is how spaced-out headings come through: "S E R E N E" -> "SERENE".
func MergeQuintuples(text string) string {
	return quintupleRun.ReplaceAllStringFunc(text, dropSpaces)
}

func dropSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

var (
	lowerUpper   = regexp.MustCompile(`([a-z])([A-Z])`)
	gluedWord    = regexp.MustCompile(`\b([a-z]{3,}?)(and|the|of|to|in|for|with|are|can|will|may)\b`)
	gluedSuffix  = regexp.MustCompile(`\b([a-z]{3,}(?:tion|ness))([a-z]{4,})\b`)
	letterDigit  = regexp.MustCompile(`([A-Za-z])([0-9])`)
	digitLetter  = regexp.MustCompile(`([0-9])([A-Za-z]{2,})`)
	spaceBefore  = regexp.MustCompile(`[ \t]+([.,;:!?])`)
	missingAfter = regexp.MustCompile(`([,;:!?])([A-Za-z])`)
	sentenceGlue = regexp.MustCompile(`([a-z]{2,}\.)([A-Z])`)
)

// gluedWordKeep lists real words that end in one of the common short words.
var gluedWordKeep = map[string]bool{
	"band": true, "hand": true, "land": true, "sand": true, "stand": true,
	"brand": true, "grand": true, "expand": true, "demand": true, "command": true,
	"island": true, "thousand": true, "understand": true, "withstand": true,
	"bathe": true, "breathe": true, "clothe": true, "soothe": true, "lathe": true,
	"into": true, "onto": true, "unto": true, "potato": true, "tomato": true,
	"begin": true, "within": true, "margin": true, "origin": true, "cabin": true,
	"basin": true, "resin": true, "robin": true, "satin": true, "toxin": true,
	"therefor": true, "wherewith": true, "forthwith": true, "herewith": true,
	"scare": true, "share": true, "spare": true, "square": true, "aware": true,
	"beware": true, "declare": true, "prepare": true, "compare": true, "software": true,
	"hardware": true, "hectare": true, "welfare": true, "nightmare": true,
	"pecan": true, "toucan": true, "republican": true, "african": true, "american": true,
	"goodwill": true, "freewill": true, "dismay": true,
	"proof": true, "aloof": true, "waterproof": true, "bulletproof": true,
	"photo": true, "ditto": true, "motto": true, "lotto": true, "grotto": true,
	"manifesto": true, "mosquito": true, "tornado": true, "incognito": true,
	"strand": true, "gland": true, "bland": true, "errand": true, "husband": true,
	"garland": true, "highland": true, "mainland": true, "woodland": true,
	"homeland": true, "wasteland": true, "beforehand": true, "shorthand": true,
	"seethe": true, "loathe": true, "writhe": true, "lithe": true, "blithe": true,
	"scythe": true, "flare": true, "glare": true, "stare": true, "snare": true,
	"warfare": true, "fanfare": true, "muffin": true, "coffin": true, "goblin": true,
	"violin": true, "penguin": true, "dolphin": true, "pumpkin": true, "napkin": true,
	"cousin": true, "raisin": true, "javelin": true, "insulin": true, "aspirin": true,
	"inland": true, "upland": true, "lowland": true, "midland": true, "headland": true,
	"farmland": true, "grassland": true, "moorland": true, "parkland": true, "tableland": true,
	"wetland": true, "outland": true, "hinterland": true, "borderland": true,
	"plugin": true, "login": true, "checkin": true, "builtin": true, "admin": true,
	"buckskin": true, "sheepskin": true, "calfskin": true, "lambskin": true, "bodkin": true,
}

// gluedSuffixKeep lists remainders that continue a word rather than start one.
var gluedSuffixKeep = []string{
	"al", "ed", "es", "s", "ary", "ate", "ist", "ism",
	"able", "ably", "less", "ful", "ing", "er",
}

// WordBoundaries reinserts spaces that PDF extraction dropped: between
// lowercase and uppercase letters, before common short words glued to a
// preceding word, after common suffixes glued to a following word, between
// letters and digits, and around punctuation.
func WordBoundaries(text string) string {
	text = lowerUpper.ReplaceAllString(text, "$1 $2")
	// A glued chain ("ropeandthe") loses one word per replacement.
	for {
		next := gluedWord.ReplaceAllStringFunc(text, splitGluedWord)
		if next == text {
			break
		}
		text = next
	}
	text = gluedSuffix.ReplaceAllStringFunc(text, func(m string) string {
		sub := gluedSuffix.FindStringSubmatch(m)
		for _, keep := range gluedSuffixKeep {
			if strings.HasPrefix(sub[2], keep) {
				return m
			}
		}
		return sub[1] + " " + sub[2]
	})
	text = letterDigit.ReplaceAllString(text, "$1 $2")
	text = digitLetter.ReplaceAllStringFunc(text, func(m string) string {
		// Keep ordinals (1st, 2nd, 3rd, 4th) intact.
		switch strings.ToLower(m[1:]) {
		case "st", "nd", "rd", "th":
			return m
		}
		return m[:1] + " " + m[1:]
	})
	text = spaceBefore.ReplaceAllString(text, "$1")
	text = missingAfter.ReplaceAllString(text, "$1 $2")
	text = sentenceGlue.ReplaceAllString(text, "$1 $2")
	return text
}

func splitGluedWord(m string) string {
	if gluedWordKeep[m] {
		return m
	}
	sub := gluedWord.FindStringSubmatch(m)
	// Compounds of "hand" (overhand, backhand, freehand). A prefix ending in
	// "ch", "gh", "ph", "sh" or "th" is a whole word glued to "and".
	if sub[2] == "and" && strings.HasSuffix(sub[1], "h") &&
		!strings.ContainsAny(sub[1][len(sub[1])-2:len(sub[1])-1], "cgpst") {
		return m
	}
	// "-ain", "-ein", "-oin" words (mountain, protein) end in "in".
	if sub[2] == "in" && strings.ContainsAny(sub[1][len(sub[1])-1:], "aeiou") {
		return m
	}
	return sub[1] + " " + sub[2]
}

var domainTerms = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\b(?i:anchor) s\b`), "anchors"},
	{regexp.MustCompile(`\b(?i:carabiner) s\b`), "carabiners"},
	{regexp.MustCompile(`\b(?i:bolt) s\b`), "bolts"},
	{regexp.MustCompile(`\b(?i:sling) s\b`), "slings"},
	{regexp.MustCompile(`\b(?i:knot) s\b`), "knots"},
	{regexp.MustCompile(`\b(?i:cam) s\b`), "cams"},
	{regexp.MustCompile(`\b(?i:nut) s\b`), "nuts"},
	{regexp.MustCompile(`\b(?i:piece) s\b`), "pieces"},
	{regexp.MustCompile(`\b(?i:placement) s\b`), "placements"},
}

// DomainTerms fixes plural forms of climbing terms whose trailing "s" was
// split off: "anchor s" -> "anchors".
func DomainTerms(text string) string {
	for _, d := range domainTerms {
		text = d.re.ReplaceAllString(text, d.repl)
	}
	return text
}

var (
	hspaceRun  = regexp.MustCompile(`[ \t\f\v\r]+`)
	lineEdges  = regexp.MustCompile(` ?\n ?`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Whitespace collapses runs of blanks to one space, trims spaces around line
// breaks, caps blank-line runs at one and trims the result.
func Whitespace(text string) string {
	text = hspaceRun.ReplaceAllString(text, " ")
	text = lineEdges.ReplaceAllString(text, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// dictionary maps fragmented phrases that the generic rules cannot repair
// to the intended word. Matching is case-insensitive on whole words.
var dictionary = []struct {
	phrase string
	word   string
}{
	{"an chor", "anchor"},
	{"an chors", "anchors"},
	{"be lay", "belay"},
	{"be laying", "belaying"},
	{"be layer", "belayer"},
	{"rap pel", "rappel"},
	{"rap pelling", "rappelling"},
	{"car abiner", "carabiner"},
	{"cara biner", "carabiner"},
	{"carabi ner", "carabiner"},
	{"equali zation", "equalization"},
	{"equal ization", "equalization"},
	{"redun dancy", "redundancy"},
	{"redund ancy", "redundancy"},
	{"pro tection", "protection"},
	{"protec tion", "protection"},
	{"tech nique", "technique"},
	{"tech niques", "techniques"},
	{"cordel ette", "cordelette"},
	{"multi pitch", "multi-pitch"},
	{"SERE NE", "SERENE"},
	{"ERN EST", "ERNEST"},
}

var dictionaryRes = compileDictionary()

func compileDictionary() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(dictionary))
	for i, d := range dictionary {
		res[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(d.phrase) + `\b`)
	}
	return res
}

// Dictionary applies the fixed phrase corrections.
func Dictionary(text string) string {
	for i, re := range dictionaryRes {
		text = re.ReplaceAllLiteralString(text, dictionary[i].word)
	}
	return text
}
