// Package ports declares the collaborators the services depend on.
package ports

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters. Every transaction operation is scoped to an
// owner; an empty owner fails with core.ErrUnauthorized.
type (
	TransactionStore interface {
		// List returns the owner's transactions, newest date first.
		List(ctx context.Context, ownerID string) ([]core.Transaction, error)
		// Create stores tx and returns it with its assigned ID.
		Create(ctx context.Context, ownerID string, tx core.Transaction) (core.Transaction, error)
		// CreateMany stores every record or none of them.
		CreateMany(ctx context.Context, ownerID string, txs []core.Transaction) ([]core.Transaction, error)
		// Update replaces the record with tx.ID. Last write wins.
		Update(ctx context.Context, ownerID string, tx core.Transaction) (core.Transaction, error)
		Delete(ctx context.Context, ownerID, id string) error
	}

	// TaxonomyReader lists the distinct values an owner has used.
	TaxonomyReader interface {
		DistinctCategories(ctx context.Context, ownerID string) ([]string, error)
		DistinctLabels(ctx context.Context, ownerID string) ([]string, error)
	}

	UserStore interface {
		// CreateUser fails with core.ErrConflict when the email is taken.
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		UserByEmail(ctx context.Context, email string) (core.User, error)
	}

	// Store is everything a data backend provides.
	Store interface {
		TransactionStore
		TaxonomyReader
		UserStore
	}

	EventPublisher interface {
		PublishChange(ctx context.Context, ev core.ChangeEvent) error
	}

	// Exporter writes a snapshot of an owner's transactions somewhere else.
	Exporter interface {
		Export(ctx context.Context, ownerID string, txs []core.Transaction) error
	}
)
