// Package filter applies a user's filter selection to a list of transactions.
//
// Predicates run in a fixed order (type, date range, labels, amount) and
// keep input order. Fuzzy search runs last and, when a term is set, reorders
// the survivors by relevance.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/search"
)

type Type string

const (
	TypeAll     Type = "all"
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

// ParseType accepts "", "all", "income" and "expense".
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case "", TypeAll:
		return TypeAll, nil
	case TypeIncome, TypeExpense:
		return t, nil
	default:
		return "", fmt.Errorf("invalid transaction type %q", s)
	}
}

// State is the user's current filter selection.
type State struct {
	Search string
	Type   Type

	// DateFrom and DateTo are inclusive YYYY-MM-DD bounds; empty is open.
	DateFrom string
	DateTo   string

	MinAmount decimal.Decimal
	// MaxAmount nil means unbounded.
	MaxAmount *decimal.Decimal

	Labels []string
	// NoLabels keeps only unlabeled transactions. A non-empty Labels
	// selection takes priority.
	NoLabels bool

	// TargetDate drives scroll-to-date navigation; it does not filter.
	TargetDate string
}

// SearchFields are the fields fuzzy search looks at.
var SearchFields = []string{"title", "category", "description", "sender", "receiver"}

type Engine struct {
	matcher *search.Matcher
}

// NewEngine returns an engine searching with m; nil uses the default matcher.
func NewEngine(m *search.Matcher) *Engine {
	if m == nil {
		m = search.NewMatcher(nil)
	}
	return &Engine{matcher: m}
}

// Apply returns the transactions that satisfy st. The input is never
// modified; matched transactions are returned as annotated copies.
func (e *Engine) Apply(txs []core.Transaction, st State) []core.Transaction {
	selected := core.NormalizeLabels(st.Labels)
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !matchType(tx, st.Type) ||
			!matchDate(tx, st.DateFrom, st.DateTo) ||
			!matchLabels(tx, selected, st.NoLabels) ||
			!matchAmount(tx, st.MinAmount, st.MaxAmount) {
			continue
		}
		out = append(out, tx)
	}

	if strings.TrimSpace(st.Search) == "" {
		return out
	}
	return e.search(out, st.Search)
}

func matchType(tx core.Transaction, t Type) bool {
	switch t {
	case TypeIncome:
		return !tx.IsExpense
	case TypeExpense:
		return tx.IsExpense
	default:
		return true
	}
}

func matchDate(tx core.Transaction, from, to string) bool {
	if from != "" && tx.Date < from {
		return false
	}
	if to != "" && tx.Date > to {
		return false
	}
	return true
}

func matchLabels(tx core.Transaction, selected []string, noLabels bool) bool {
	if len(selected) > 0 {
		for _, l := range selected {
			if tx.HasLabel(l) {
				return true
			}
		}
		return false
	}
	if noLabels {
		return len(tx.Labels) == 0
	}
	return true
}

func matchAmount(tx core.Transaction, lo decimal.Decimal, hi *decimal.Decimal) bool {
	if tx.Amount.LessThan(lo) {
		return false
	}
	if hi != nil && tx.Amount.GreaterThan(*hi) {
		return false
	}
	return true
}

type scored struct {
	tx    core.Transaction
	score float64
}

func (e *Engine) search(txs []core.Transaction, term string) []core.Transaction {
	hits := make([]scored, 0, len(txs))
	for _, tx := range txs {
		values := map[string]string{
			"title":       tx.Title,
			"category":    tx.Category,
			"description": tx.Description,
			"sender":      tx.Sender,
			"receiver":    tx.Receiver,
		}
		best := -1.0
		var highlights map[string]string
		for _, field := range SearchFields {
			mt, ok := e.matcher.Best(term, values[field])
			if !ok {
				continue
			}
			if highlights == nil {
				highlights = make(map[string]string)
			}
			highlights[field] = e.matcher.Highlight(values[field], mt)
			if mt.Score > best {
				best = mt.Score
			}
		}
		if highlights == nil {
			continue
		}
		c := tx.Clone()
		c.Highlights = highlights
		hits = append(hits, scored{tx: c, score: best})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]core.Transaction, len(hits))
	for i, h := range hits {
		out[i] = h.tx
	}
	return out
}
