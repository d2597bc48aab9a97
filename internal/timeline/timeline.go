// Package timeline buckets transactions by calendar day for the history view.
package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"fintrack/internal/core"
)

// ErrInvalidDate is wrapped by every DateError.
var ErrInvalidDate = core.ErrInvalidDate

// DateError reports a transaction whose date cannot be parsed.
type DateError struct {
	TransactionID string
	Date          string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("transaction %q has invalid date %q", e.TransactionID, e.Date)
}

func (e *DateError) Unwrap() error { return ErrInvalidDate }

// Day holds one calendar day's transactions split by direction.
type Day struct {
	Date     string             `json:"date"`
	Incomes  []core.Transaction `json:"incomes"`
	Expenses []core.Transaction `json:"expenses"`
}

// Empty reports whether the day holds no transactions.
func (d Day) Empty() bool {
	return len(d.Incomes) == 0 && len(d.Expenses) == 0
}

// GroupByDay groups transactions by exact date, newest day first. Inside a
// day incomes and expenses keep their input order. A transaction with an
// unparseable date fails the whole grouping with a *DateError.
func GroupByDay(txs []core.Transaction) ([]Day, error) {
	index := make(map[string]int)
	days := make([]Day, 0)
	parsed := make(map[string]time.Time)

	for _, tx := range txs {
		if _, ok := parsed[tx.Date]; !ok {
			d, err := core.ParseDate(tx.Date)
			if err != nil {
				return nil, &DateError{TransactionID: tx.ID, Date: tx.Date}
			}
			parsed[tx.Date] = d
		}

		i, ok := index[tx.Date]
		if !ok {
			i = len(days)
			index[tx.Date] = i
			days = append(days, Day{Date: tx.Date, Incomes: []core.Transaction{}, Expenses: []core.Transaction{}})
		}
		if tx.IsExpense {
			days[i].Expenses = append(days[i].Expenses, tx)
		} else {
			days[i].Incomes = append(days[i].Incomes, tx)
		}
	}

	out := days[:0]
	for _, d := range days {
		if !d.Empty() {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return parsed[out[i].Date].After(parsed[out[j].Date])
	})
	return out, nil
}

// Locate returns the index of the day matching target, or of the closest
// earlier day when target has no transactions. It returns -1 when every day
// is after target or target is not a valid date.
func Locate(days []Day, target string) int {
	if _, err := core.ParseDate(target); err != nil {
		return -1
	}
	for i, d := range days {
		if d.Date <= target {
			return i
		}
	}
	return -1
}

// IsDateError reports whether err came from an unparseable date.
func IsDateError(err error) bool {
	return errors.Is(err, ErrInvalidDate)
}
