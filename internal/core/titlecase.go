package core

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TitleCase capitalizes the first letter of every space separated word and
// lowercases the rest. Words that are already fully uppercase (acronyms such
// as "ATM") are kept as they are. Runs of spaces collapse to one.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if isUpperWord(w) {
			continue
		}
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

func isUpperWord(w string) bool {
	letters := false
	for _, r := range w {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters = true
		}
	}
	return letters
}
