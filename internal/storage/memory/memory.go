// Package memory is an in-process data backend for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

type Store struct {
	mu    sync.RWMutex
	seq   int64
	items map[string]entry // by transaction ID
	users map[string]core.User
}

type entry struct {
	tx  core.Transaction
	seq int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		items: make(map[string]entry),
		users: make(map[string]core.User),
	}
}

// List returns the owner's transactions, newest date first, insertion order
// within a day.
func (s *Store) List(_ context.Context, ownerID string) ([]core.Transaction, error) {
	if ownerID == "" {
		return nil, core.ErrUnauthorized
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]entry, 0)
	for _, e := range s.items {
		if e.tx.OwnerID == ownerID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].tx.Date != entries[j].tx.Date {
			return entries[i].tx.Date > entries[j].tx.Date
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]core.Transaction, len(entries))
	for i, e := range entries {
		out[i] = e.tx.Clone()
	}
	return out, nil
}

// Create stores tx under a fresh ID.
func (s *Store) Create(ctx context.Context, ownerID string, tx core.Transaction) (core.Transaction, error) {
	created, err := s.CreateMany(ctx, ownerID, []core.Transaction{tx})
	if err != nil {
		return core.Transaction{}, err
	}
	return created[0], nil
}

// CreateMany stores the whole batch under a single lock.
func (s *Store) CreateMany(_ context.Context, ownerID string, txs []core.Transaction) ([]core.Transaction, error) {
	if ownerID == "" {
		return nil, core.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		tx = tx.Clone()
		tx.ID = uuid.NewString()
		tx.OwnerID = ownerID
		tx.Highlights = nil
		s.seq++
		s.items[tx.ID] = entry{tx: tx, seq: s.seq}
		out[i] = tx.Clone()
	}
	return out, nil
}

// Update replaces the owner's record with tx.ID.
func (s *Store) Update(_ context.Context, ownerID string, tx core.Transaction) (core.Transaction, error) {
	if ownerID == "" {
		return core.Transaction{}, core.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.owned(ownerID, tx.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	tx = tx.Clone()
	tx.OwnerID = ownerID
	tx.Highlights = nil
	s.items[tx.ID] = entry{tx: tx, seq: cur.seq}
	return tx.Clone(), nil
}

// Delete removes the owner's record id.
func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	if ownerID == "" {
		return core.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.owned(ownerID, id); err != nil {
		return err
	}
	delete(s.items, id)
	return nil
}

// owned must be called with the lock held.
func (s *Store) owned(ownerID, id string) (entry, error) {
	e, ok := s.items[id]
	if !ok {
		return entry{}, core.ErrNotFound
	}
	if e.tx.OwnerID != ownerID {
		return entry{}, core.ErrUnauthorized
	}
	return e, nil
}

// DistinctCategories returns the owner's categories, sorted.
func (s *Store) DistinctCategories(_ context.Context, ownerID string) ([]string, error) {
	if ownerID == "" {
		return nil, core.ErrUnauthorized
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var values []string
	for _, e := range s.items {
		if e.tx.OwnerID == ownerID {
			values = append(values, e.tx.Category)
		}
	}
	return dedupeSorted(values), nil
}

// DistinctLabels returns the owner's labels, sorted.
func (s *Store) DistinctLabels(_ context.Context, ownerID string) ([]string, error) {
	if ownerID == "" {
		return nil, core.ErrUnauthorized
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var values []string
	for _, e := range s.items {
		if e.tx.OwnerID == ownerID {
			values = append(values, e.tx.Labels...)
		}
	}
	return dedupeSorted(values), nil
}

// CreateUser registers u under its lowercased email.
func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, ok := s.users[email]; ok {
		return core.User{}, core.ErrConflict
	}
	u.ID = uuid.NewString()
	u.Email = email
	u.CreatedAt = time.Now().UTC()
	s.users[email] = u
	return u, nil
}

// UserByEmail looks a user up case-insensitively.
func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func dedupeSorted(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
