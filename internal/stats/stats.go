// Package stats aggregates transactions for the statistics view.
//
// Sums are exact decimals; every reported figure is rounded to two places,
// half away from zero, when the aggregate is built.
package stats

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Totals is one month's income, expense and balance.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// LabelTotal is the income and expense attributed to one label.
type LabelTotal struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// CumulativePoint is the running total up to and including Month.
type CumulativePoint struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// MonthRow is a month's totals tagged with its key, for ordered output.
type MonthRow struct {
	Month string `json:"month"`
	Totals
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Expense  decimal.Decimal `json:"expense"`
}

// Period identifies a calendar month.
type Period struct {
	Year  int
	Month int
}

// Key renders the period as "M/YYYY" without zero padding.
func (p Period) Key() string {
	return fmt.Sprintf("%d/%d", p.Month, p.Year)
}

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// ParsePeriod parses an "M/YYYY" key.
func ParsePeriod(key string) (Period, error) {
	m, y, ok := strings.Cut(key, "/")
	if !ok {
		return Period{}, fmt.Errorf("invalid month key %q", key)
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid month key %q", key)
	}
	year, err := strconv.Atoi(y)
	if err != nil || year < 1 {
		return Period{}, fmt.Errorf("invalid month key %q", key)
	}
	return Period{Year: year, Month: month}, nil
}

// DateError reports a transaction whose date cannot be bucketed.
type DateError struct {
	TransactionID string
	Date          string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("cannot aggregate transaction %q: invalid date %q", e.TransactionID, e.Date)
}

func (e *DateError) Unwrap() error { return core.ErrInvalidDate }

// MonthlyTotals sums income and expense per calendar month.
func MonthlyTotals(txs []core.Transaction) (map[string]Totals, error) {
	type sums struct{ income, expense decimal.Decimal }
	acc := make(map[string]*sums)
	for _, tx := range txs {
		d, err := core.ParseDate(tx.Date)
		if err != nil {
			return nil, &DateError{TransactionID: tx.ID, Date: tx.Date}
		}
		key := Period{Year: d.Year(), Month: int(d.Month())}.Key()
		s, ok := acc[key]
		if !ok {
			s = &sums{}
			acc[key] = s
		}
		if tx.IsExpense {
			s.expense = s.expense.Add(tx.Amount)
		} else {
			s.income = s.income.Add(tx.Amount)
		}
	}

	out := make(map[string]Totals, len(acc))
	for k, s := range acc {
		income, expense := core.RoundMoney(s.income), core.RoundMoney(s.expense)
		out[k] = Totals{Income: income, Expense: expense, Balance: income.Sub(expense)}
	}
	return out, nil
}

// LabelTotals attributes each transaction's full amount to every one of its
// labels. A transaction with two labels counts twice across the result.
func LabelTotals(txs []core.Transaction) map[string]LabelTotal {
	acc := make(map[string]LabelTotal)
	for _, tx := range txs {
		for _, l := range tx.Labels {
			lt := acc[l]
			if tx.IsExpense {
				lt.Expense = lt.Expense.Add(tx.Amount)
			} else {
				lt.Income = lt.Income.Add(tx.Amount)
			}
			acc[l] = lt
		}
	}
	for l, lt := range acc {
		acc[l] = LabelTotal{Income: core.RoundMoney(lt.Income), Expense: core.RoundMoney(lt.Expense)}
	}
	return acc
}

// SortedMonths returns monthly totals oldest first.
func SortedMonths(monthly map[string]Totals) ([]MonthRow, error) {
	type keyed struct {
		p   Period
		row MonthRow
	}
	rows := make([]keyed, 0, len(monthly))
	for k, t := range monthly {
		p, err := ParsePeriod(k)
		if err != nil {
			return nil, err
		}
		rows = append(rows, keyed{p: p, row: MonthRow{Month: k, Totals: t}})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].p.Before(rows[j].p) })

	out := make([]MonthRow, len(rows))
	for i, r := range rows {
		out[i] = r.row
	}
	return out, nil
}

// CumulativeSeries returns running totals month by month, oldest first.
func CumulativeSeries(monthly map[string]Totals) ([]CumulativePoint, error) {
	rows, err := SortedMonths(monthly)
	if err != nil {
		return nil, err
	}
	out := make([]CumulativePoint, 0, len(rows))
	var income, expense decimal.Decimal
	for _, r := range rows {
		income = income.Add(r.Income)
		expense = expense.Add(r.Expense)
		out = append(out, CumulativePoint{
			Month:   r.Month,
			Income:  core.RoundMoney(income),
			Expense: core.RoundMoney(expense),
			Balance: core.RoundMoney(income.Sub(expense)),
		})
	}
	return out, nil
}

// CategoryTotals sums expenses per category, largest first.
func CategoryTotals(txs []core.Transaction) []CategoryTotal {
	acc := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.IsExpense {
			acc[tx.Category] = acc[tx.Category].Add(tx.Amount)
		}
	}
	out := make([]CategoryTotal, 0, len(acc))
	for c, v := range acc {
		out = append(out, CategoryTotal{Category: c, Expense: core.RoundMoney(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Expense.Equal(out[j].Expense) {
			return out[i].Expense.GreaterThan(out[j].Expense)
		}
		return out[i].Category < out[j].Category
	})
	return out
}
