// Package search implements fuzzy matching of a query against free text.
//
// The similarity function is a strategy: every Scorer maps two strings to a
// score in [0, 1] and the Matcher slides the query over the text looking for
// the best scoring window. Scorers are registered by name so the algorithm
// can be swapped from configuration.
package search

import (
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Scorer is the strategy interface for string similarity.
type Scorer interface {
	// Similarity returns 1 for identical strings and 0 for nothing in common.
	Similarity(a, b string) float64
}

// LevenshteinScorer scores by edit distance relative to the longer string.
type LevenshteinScorer struct{}

func (LevenshteinScorer) Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// ExactScorer only accepts identical strings. With the sliding window this
// degrades fuzzy search to case-insensitive substring search.
type ExactScorer struct{}

func (ExactScorer) Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return 0
}

const DefaultScorer = "levenshtein"

var (
	scorersMu sync.RWMutex
	scorers   = map[string]Scorer{
		DefaultScorer: LevenshteinScorer{},
		"exact":       ExactScorer{},
	}
)

// GetScorer returns the scorer registered under name.
func GetScorer(name string) (Scorer, error) {
	scorersMu.RLock()
	defer scorersMu.RUnlock()
	s, ok := scorers[name]
	if !ok {
		return nil, fmt.Errorf("unknown scorer: %s", name)
	}
	return s, nil
}

// RegisterScorer adds or replaces a scorer.
func RegisterScorer(name string, s Scorer) {
	scorersMu.Lock()
	defer scorersMu.Unlock()
	scorers[name] = s
}

// Scorers lists the registered scorer names.
func Scorers() []string {
	scorersMu.RLock()
	defer scorersMu.RUnlock()
	names := make([]string, 0, len(scorers))
	for n := range scorers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
