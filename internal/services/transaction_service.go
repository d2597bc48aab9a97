package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// TransactionRepository is what the service needs from a data backend.
type TransactionRepository interface {
	ports.TransactionStore
	ports.TaxonomyReader
}

// TransactionService normalizes writes, keeps the per-owner cache coherent
// and announces committed changes.
type TransactionService struct {
	store      TransactionRepository
	cache      cache.Cache[[]core.Transaction]
	publisher  ports.EventPublisher
	normalizer core.Normalizer
	now        func() time.Time
}

type Option func(*TransactionService)

// WithCache enables read caching of transaction lists.
func WithCache(c cache.Cache[[]core.Transaction]) Option {
	return func(s *TransactionService) { s.cache = c }
}

// WithPublisher enables change events.
func WithPublisher(p ports.EventPublisher) Option {
	return func(s *TransactionService) { s.publisher = p }
}

// WithClock replaces time.Now for default dates and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *TransactionService) {
		s.now = now
		s.normalizer.Now = now
	}
}

// NewTransactionService builds a service over store. Without options it
// runs uncached, publishes nothing and uses time.Now.
func NewTransactionService(store TransactionRepository, opts ...Option) *TransactionService {
	s := &TransactionService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the owner's transactions, newest first.
func (s *TransactionService) List(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	if ownerID == "" {
		return nil, core.ErrUnauthorized
	}
	key := cache.TransactionsKey(ownerID)
	if s.cache != nil {
		if txs, ok := s.cache.Get(ctx, key); ok {
			return cloneAll(txs, ownerID), nil
		}
	}

	txs, err := s.store.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, cloneAll(txs, ownerID))
	}
	return txs, nil
}

// Create normalizes raw and stores it for ownerID.
func (s *TransactionService) Create(ctx context.Context, ownerID string, raw core.RawTransaction) (core.Transaction, error) {
	if ownerID == "" {
		return core.Transaction{}, core.ErrUnauthorized
	}
	tx, err := s.normalizer.Normalize(raw)
	if err != nil {
		return core.Transaction{}, err
	}
	created, err := s.store.Create(ctx, ownerID, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"component", "transactions",
		"owner_id", ownerID,
		"transaction_id", created.ID,
		"is_expense", created.IsExpense,
		"amount", created.Amount.String())

	s.committed(ctx, core.ChangeCreated, ownerID, created.ID)
	return created, nil
}

// Update replaces transaction id with the normalized raw input.
func (s *TransactionService) Update(ctx context.Context, ownerID, id string, raw core.RawTransaction) (core.Transaction, error) {
	if ownerID == "" {
		return core.Transaction{}, core.ErrUnauthorized
	}
	tx, err := s.normalizer.Normalize(raw)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = id
	updated, err := s.store.Update(ctx, ownerID, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}
	s.committed(ctx, core.ChangeUpdated, ownerID, id)
	return updated, nil
}

// Delete removes the owner's record id and announces the change.
func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return core.ErrUnauthorized
	}
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "component", "transactions", "owner_id", ownerID, "transaction_id", id)
	s.committed(ctx, core.ChangeDeleted, ownerID, id)
	return nil
}

// Categories lists the distinct categories the owner has used.
func (s *TransactionService) Categories(ctx context.Context, ownerID string) ([]string, error) {
	if ownerID == "" {
		return nil, core.ErrUnauthorized
	}
	return s.store.DistinctCategories(ctx, ownerID)
}

// Labels lists the distinct labels the owner has used.
func (s *TransactionService) Labels(ctx context.Context, ownerID string) ([]string, error) {
	if ownerID == "" {
		return nil, core.ErrUnauthorized
	}
	return s.store.DistinctLabels(ctx, ownerID)
}

// committed invalidates the owner's cache entry and publishes the change.
// Publishing is best effort: the write has already succeeded.
func (s *TransactionService) committed(ctx context.Context, kind core.ChangeKind, ownerID, id string) {
	if s.cache != nil {
		s.cache.Delete(ctx, cache.TransactionsKey(ownerID))
	}
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping change event", "component", "transactions")
		return
	}
	ev := core.ChangeEvent{Kind: kind, OwnerID: ownerID, TransactionID: id, At: s.now()}
	if err := s.publisher.PublishChange(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event",
			"component", "transactions",
			"kind", kind,
			"owner_id", ownerID,
			"transaction_id", id,
			"error", err)
	}
}

func cloneAll(txs []core.Transaction, ownerID string) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = tx.Clone()
		out[i].OwnerID = ownerID
	}
	return out
}
