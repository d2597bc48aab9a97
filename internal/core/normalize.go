package core

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MaxTitleLength bounds the title in characters.
const MaxTitleLength = 200

var dateLayouts = []string{DateLayout, "2006-1-2", time.RFC3339}

// Normalizer turns raw input into a canonical Transaction.
// Now supplies the default date; nil means time.Now.
type Normalizer struct {
	Now func() time.Time
}

type fieldRule struct {
	field string
	apply func(n Normalizer, raw RawTransaction, tx *Transaction) string
}

// rules run in order; each returns a message for its field or "".
var rules = []fieldRule{
	{"title", normalizeTitle},
	{"amount", normalizeAmount},
	{"date", normalizeDate},
	{"category", normalizeCategory},
	{"labels", normalizeLabels},
	{"description", func(_ Normalizer, raw RawTransaction, tx *Transaction) string {
		tx.Description = clean(raw.Description, true)
		return ""
	}},
	{"sender", func(_ Normalizer, raw RawTransaction, tx *Transaction) string {
		tx.Sender = clean(raw.Sender, false)
		return ""
	}},
	{"receiver", func(_ Normalizer, raw RawTransaction, tx *Transaction) string {
		tx.Receiver = clean(raw.Receiver, false)
		return ""
	}},
}

// Normalize applies the default normalizer.
func Normalize(raw RawTransaction) (Transaction, error) {
	return Normalizer{}.Normalize(raw)
}

// Normalize canonicalizes raw. On failure the error is a *ValidationError
// listing every invalid field.
func (n Normalizer) Normalize(raw RawTransaction) (Transaction, error) {
	tx := Transaction{IsExpense: raw.IsExpense}
	verr := NewValidationError()
	for _, r := range rules {
		if msg := r.apply(n, raw, &tx); msg != "" {
			verr.Add(r.field, msg)
		}
	}
	if err := verr.Err(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func (n Normalizer) today() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func normalizeTitle(_ Normalizer, raw RawTransaction, tx *Transaction) string {
	tx.Title = clean(raw.Title, false)
	switch {
	case tx.Title == "":
		return "is required"
	case utf8.RuneCountInString(tx.Title) > MaxTitleLength:
		return "is too long"
	}
	return ""
}

func normalizeAmount(_ Normalizer, raw RawTransaction, tx *Transaction) string {
	amount, err := CoerceAmount(raw.Amount)
	if err != nil {
		return "must be a positive number"
	}
	tx.Amount = amount
	return ""
}

func normalizeDate(n Normalizer, raw RawTransaction, tx *Transaction) string {
	s := strings.TrimSpace(raw.Date)
	if s == "" {
		tx.Date = n.today().Format(DateLayout)
		return ""
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			if d.Year() < 1 {
				break
			}
			tx.Date = d.Format(DateLayout)
			return ""
		}
	}
	return "must be a valid date (YYYY-MM-DD)"
}

func normalizeCategory(_ Normalizer, raw RawTransaction, tx *Transaction) string {
	tx.Category = TitleCase(clean(raw.Category, false))
	if tx.Category == "" {
		return "is required"
	}
	return ""
}

func normalizeLabels(_ Normalizer, raw RawTransaction, tx *Transaction) string {
	tx.Labels = NormalizeLabels(raw.Labels)
	return ""
}

// NormalizeLabels title-cases each label, drops empty ones and returns the
// set sorted alphabetically.
func NormalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		l = TitleCase(clean(l, false))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// clean trims s and strips control characters; multiline keeps newlines.
func clean(s string, multiline bool) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' && multiline:
			return r
		case r == '\t':
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
