package filter

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func tx(id, title string, expense bool, amount string, labels ...string) core.Transaction {
	if labels == nil {
		labels = []string{}
	}
	return core.Transaction{
		ID:        id,
		Title:     title,
		Date:      "2024-01-04",
		IsExpense: expense,
		Amount:    decimal.RequireFromString(amount),
		Category:  "General",
		Labels:    labels,
	}
}

func ids(txs []core.Transaction) string {
	s := make([]string, len(txs))
	for i, t := range txs {
		s[i] = t.ID
	}
	return strings.Join(s, ",")
}

func sample() []core.Transaction {
	return []core.Transaction{
		tx("1", "Coffee Shop", true, "4.50", "Cafe Visit"),
		tx("2", "Salary", false, "2500"),
		tx("3", "Groceries", true, "82.10", "Food", "Family"),
		tx("4", "Refund", false, "15", "Food"),
		tx("5", "Rent", true, "900"),
	}
}

func ptr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestApplyPredicates(t *testing.T) {
	e := NewEngine(nil)
	cases := []struct {
		name  string
		state State
		want  string
	}{
		{"no filter", State{}, "1,2,3,4,5"},
		{"all", State{Type: TypeAll}, "1,2,3,4,5"},
		{"income", State{Type: TypeIncome}, "2,4"},
		{"expense", State{Type: TypeExpense}, "1,3,5"},
		{"label intersection", State{Labels: []string{"food"}}, "3,4"},
		{"several labels", State{Labels: []string{"Cafe Visit", "Family"}}, "1,3"},
		{"unknown label", State{Labels: []string{"Nope"}}, ""},
		{"only unlabeled", State{NoLabels: true}, "2,5"},
		{"labels win over unlabeled flag", State{Labels: []string{"Food"}, NoLabels: true}, "3,4"},
		{"amount range", State{MinAmount: decimal.NewFromInt(15), MaxAmount: ptr("900")}, "3,4,5"},
		{"unbounded max", State{MinAmount: decimal.NewFromInt(100)}, "2,5"},
		{"combined", State{Type: TypeExpense, Labels: []string{"Food"}, MaxAmount: ptr("100")}, "3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(e.Apply(sample(), tc.state))
			if got != tc.want {
				t.Fatalf("got [%s], want [%s]", got, tc.want)
			}
		})
	}
}

func TestApplyAmountBounds(t *testing.T) {
	e := NewEngine(nil)
	txs := []core.Transaction{tx("a", "A", true, "10"), tx("b", "B", true, "5000"), tx("c", "C", true, "9999")}

	if got := ids(e.Apply(txs, State{})); got != "a,b,c" {
		t.Fatalf("unbounded range: got [%s]", got)
	}
	if got := ids(e.Apply(txs, State{MaxAmount: ptr("100")})); got != "a" {
		t.Fatalf("[0,100]: got [%s]", got)
	}
	if got := ids(e.Apply(txs, State{MinAmount: decimal.NewFromInt(10), MaxAmount: ptr("10")})); got != "a" {
		t.Fatalf("bounds must be inclusive: got [%s]", got)
	}
}

func TestApplyDateRange(t *testing.T) {
	e := NewEngine(nil)
	txs := []core.Transaction{tx("a", "A", true, "1"), tx("b", "B", true, "1"), tx("c", "C", true, "1")}
	txs[0].Date = "2024-01-01"
	txs[1].Date = "2024-02-15"
	txs[2].Date = "2024-03-31"

	if got := ids(e.Apply(txs, State{DateFrom: "2024-02-15", DateTo: "2024-03-31"})); got != "b,c" {
		t.Fatalf("got [%s]", got)
	}
	if got := ids(e.Apply(txs, State{DateTo: "2024-01-31"})); got != "a" {
		t.Fatalf("got [%s]", got)
	}
}

func TestApplyTypePartition(t *testing.T) {
	e := NewEngine(nil)
	all := e.Apply(sample(), State{Type: TypeAll})
	inc := e.Apply(sample(), State{Type: TypeIncome})
	exp := e.Apply(sample(), State{Type: TypeExpense})
	if len(inc)+len(exp) != len(all) {
		t.Fatalf("income (%d) + expense (%d) != all (%d)", len(inc), len(exp), len(all))
	}
	seen := map[string]bool{}
	for _, t2 := range append(inc, exp...) {
		if seen[t2.ID] {
			t.Fatalf("%s in both partitions", t2.ID)
		}
		seen[t2.ID] = true
	}
}

func TestApplyNeverGrows(t *testing.T) {
	e := NewEngine(nil)
	states := []State{
		{}, {Search: "o"}, {Type: TypeIncome}, {Labels: []string{"Food"}}, {NoLabels: true},
		{MinAmount: decimal.NewFromInt(1000)}, {Search: "zzzz"},
	}
	for _, st := range states {
		if got := e.Apply(sample(), st); len(got) > len(sample()) {
			t.Fatalf("state %+v grew the list to %d", st, len(got))
		}
	}
}

func TestApplyEmptyInput(t *testing.T) {
	got := NewEngine(nil).Apply(nil, State{Search: "coffee", Type: TypeExpense})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
}

func TestSearchRanksAndHighlights(t *testing.T) {
	e := NewEngine(nil)
	txs := sample()
	txs[4].Description = "coffe machine lease"

	got := e.Apply(txs, State{Search: "coffee"})
	if ids(got) != "1,5" {
		t.Fatalf("got [%s], want exact title match first", ids(got))
	}
	if got[0].Highlights["title"] != "<mark>Coffee</mark> Shop" {
		t.Fatalf("title highlight = %q", got[0].Highlights["title"])
	}
	if got[1].Highlights["description"] != "<mark>coffe</mark> machine lease" {
		t.Fatalf("description highlight = %q", got[1].Highlights["description"])
	}
	if txs[0].Highlights != nil {
		t.Fatal("search must not annotate the input slice")
	}
}

func TestSearchBlankTermIsNoOp(t *testing.T) {
	e := NewEngine(nil)
	got := e.Apply(sample(), State{Search: "   "})
	if ids(got) != "1,2,3,4,5" {
		t.Fatalf("got [%s]", ids(got))
	}
	for _, g := range got {
		if g.Highlights != nil {
			t.Fatal("blank search should not add highlights")
		}
	}
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{"": TypeAll, "ALL": TypeAll, "income": TypeIncome, " expense ": TypeExpense} {
		got, err := ParseType(in)
		if err != nil || got != want {
			t.Errorf("ParseType(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseType("transfer"); err == nil {
		t.Error("expected error for unknown type")
	}
}
