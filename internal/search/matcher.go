package search

import (
	"strings"
	"unicode"
)

const (
	// DefaultThreshold is the minimum similarity for a match.
	DefaultThreshold = 0.6

	DefaultOpenMark  = "<mark>"
	DefaultCloseMark = "</mark>"
)

// Matcher finds the best matching substring of a text for a query.
type Matcher struct {
	Scorer    Scorer
	Threshold float64
	OpenMark  string
	CloseMark string
}

// Match is a scored window of a text, in rune offsets.
type Match struct {
	Score float64
	Start int
	End   int
}

// NewMatcher returns a matcher with the default threshold and markers.
// A nil scorer selects the Levenshtein scorer.
func NewMatcher(s Scorer) *Matcher {
	if s == nil {
		s = LevenshteinScorer{}
	}
	return &Matcher{
		Scorer:    s,
		Threshold: DefaultThreshold,
		OpenMark:  DefaultOpenMark,
		CloseMark: DefaultCloseMark,
	}
}

// Best returns the best window of text for query and whether it clears the
// threshold. Comparison is case-insensitive. Windows are the query length
// plus or minus one rune; on equal scores the earliest window wins, then
// the shortest. Whitespace at the window edges is not part of the match.
func (m *Matcher) Best(query, text string) (Match, bool) {
	q := lowerRunes(strings.TrimSpace(query))
	t := lowerRunes(text)
	if len(q) == 0 || len(t) == 0 {
		return Match{}, false
	}

	if len(t) <= len(q) {
		mt := Match{Score: m.Scorer.Similarity(string(q), string(t)), Start: 0, End: len(t)}
		return mt, mt.Score >= m.Threshold
	}

	qs := string(q)
	best := Match{Score: -1}
	for _, size := range []int{len(q) - 1, len(q), len(q) + 1} {
		if size < 1 || size > len(t) {
			continue
		}
		for start := 0; start+size <= len(t); start++ {
			score := m.Scorer.Similarity(qs, string(t[start:start+size]))
			if score > best.Score || (score == best.Score && start < best.Start) {
				best = Match{Score: score, Start: start, End: start + size}
			}
			if best.Score >= 1 {
				return trimWindow(t, best), true
			}
		}
	}
	return trimWindow(t, best), best.Score >= m.Threshold
}

func trimWindow(t []rune, mt Match) Match {
	for mt.End-mt.Start > 1 && unicode.IsSpace(t[mt.End-1]) {
		mt.End--
	}
	for mt.End-mt.Start > 1 && unicode.IsSpace(t[mt.Start]) {
		mt.Start++
	}
	return mt
}

// Highlight wraps the matched window of text in the matcher's markers.
func (m *Matcher) Highlight(text string, mt Match) string {
	r := []rune(text)
	if mt.Start < 0 || mt.End > len(r) || mt.Start >= mt.End {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + len(m.OpenMark) + len(m.CloseMark))
	b.WriteString(string(r[:mt.Start]))
	b.WriteString(m.OpenMark)
	b.WriteString(string(r[mt.Start:mt.End]))
	b.WriteString(m.CloseMark)
	b.WriteString(string(r[mt.End:]))
	return b.String()
}

// lowerRunes lowercases rune by rune so offsets map back onto the original.
func lowerRunes(s string) []rune {
	r := []rune(s)
	for i, c := range r {
		r[i] = unicode.ToLower(c)
	}
	return r
}
