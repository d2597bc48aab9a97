package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar date format of a transaction.
const DateLayout = "2006-01-02"

type (
	// Transaction is a single recorded income or expense event owned by one user.
	Transaction struct {
		ID          string          `json:"id"`
		OwnerID     string          `json:"-"`
		Title       string          `json:"title"`
		Date        string          `json:"date"`
		IsExpense   bool            `json:"is_expense"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Labels      []string        `json:"labels"`
		Sender      string          `json:"sender"`
		Receiver    string          `json:"receiver"`

		// Highlights is set only on copies returned by a search: field name to
		// text with the matched part wrapped in markers. Never persisted.
		Highlights map[string]string `json:"highlights,omitempty"`
	}

	// RawTransaction is user or import input before normalization.
	// Amount may be a string or any numeric type.
	RawTransaction struct {
		Title       string   `json:"title"`
		Date        string   `json:"date"`
		IsExpense   bool     `json:"is_expense"`
		Amount      any      `json:"amount"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Labels      []string `json:"labels"`
		Sender      string   `json:"sender"`
		Receiver    string   `json:"receiver"`
	}

	User struct {
		ID           string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	ChangeKind string

	// ChangeEvent describes a committed write to an owner's transactions.
	ChangeEvent struct {
		Kind          ChangeKind
		OwnerID       string
		TransactionID string
		At            time.Time
	}
)

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// Raw converts a normalized transaction back into input form.
// Normalizing the result yields the same transaction.
func (t Transaction) Raw() RawTransaction {
	labels := make([]string, len(t.Labels))
	copy(labels, t.Labels)
	return RawTransaction{
		Title:       t.Title,
		Date:        t.Date,
		IsExpense:   t.IsExpense,
		Amount:      t.Amount.String(),
		Description: t.Description,
		Category:    t.Category,
		Labels:      labels,
		Sender:      t.Sender,
		Receiver:    t.Receiver,
	}
}

// Clone returns a deep copy so callers can annotate results without
// touching the input slice.
func (t Transaction) Clone() Transaction {
	c := t
	if t.Labels != nil {
		c.Labels = make([]string, len(t.Labels))
		copy(c.Labels, t.Labels)
	}
	if t.Highlights != nil {
		c.Highlights = make(map[string]string, len(t.Highlights))
		for k, v := range t.Highlights {
			c.Highlights[k] = v
		}
	}
	return c
}

// HasLabel reports whether the transaction carries label exactly.
func (t Transaction) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// ParseDate parses a canonical YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil || d.Year() < 1 {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}
