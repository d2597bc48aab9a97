package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens dbPath, creating its directory, and applies
// pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serializing avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectTransactions = `
SELECT id, owner_id, title, date, is_expense, amount, description, category, sender, receiver
FROM transactions
WHERE owner_id = ?
ORDER BY date DESC, seq ASC`

// List implements ports.TransactionStore
func (r *SQLiteRepository) List(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	if ownerID == "" {
		return nil, core.ErrUnauthorized
	}

	rows, err := r.db.QueryContext(ctx, selectTransactions, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	index := make(map[string]int)
	for rows.Next() {
		var (
			tx     core.Transaction
			amount string
		)
		if err := rows.Scan(&tx.ID, &tx.OwnerID, &tx.Title, &tx.Date, &tx.IsExpense, &amount,
			&tx.Description, &tx.Category, &tx.Sender, &tx.Receiver); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %s has corrupt amount %q: %w", tx.ID, amount, err)
		}
		tx.Labels = []string{}
		index[tx.ID] = len(out)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	// Release the connection before the label query; the pool holds one.
	rows.Close()
	if len(out) == 0 {
		return []core.Transaction{}, nil
	}

	labelRows, err := r.db.QueryContext(ctx, `
SELECT l.transaction_id, l.label
FROM transaction_labels l
JOIN transactions t ON t.id = l.transaction_id
WHERE t.owner_id = ?
ORDER BY l.label`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer labelRows.Close()
	for labelRows.Next() {
		var id, label string
		if err := labelRows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		if i, ok := index[id]; ok {
			out[i].Labels = append(out[i].Labels, label)
		}
	}
	if err := labelRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return out, nil
}

// Create implements ports.TransactionStore
func (r *SQLiteRepository) Create(ctx context.Context, ownerID string, tx core.Transaction) (core.Transaction, error) {
	created, err := r.CreateMany(ctx, ownerID, []core.Transaction{tx})
	if err != nil {
		return core.Transaction{}, err
	}
	return created[0], nil
}

// CreateMany implements ports.TransactionStore. The batch is written in one
// SQL transaction.
func (r *SQLiteRepository) CreateMany(ctx context.Context, ownerID string, txs []core.Transaction) ([]core.Transaction, error) {
	if ownerID == "" {
		return nil, core.ErrUnauthorized
	}
	out := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		tx = tx.Clone()
		tx.ID = uuid.NewString()
		tx.OwnerID = ownerID
		tx.Highlights = nil
		out[i] = tx
	}

	err := r.inTx(ctx, func(q *sql.Tx) error {
		for _, tx := range out {
			_, err := q.ExecContext(ctx, `
INSERT INTO transactions (id, owner_id, title, date, is_expense, amount, description, category, sender, receiver)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				tx.ID, ownerID, tx.Title, tx.Date, tx.IsExpense, tx.Amount.String(),
				tx.Description, tx.Category, tx.Sender, tx.Receiver)
			if err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}
			if err := insertLabels(ctx, q, tx.ID, tx.Labels); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Transactions saved to SQLite",
		"component", "storage",
		"owner_id", ownerID,
		"count", len(out))
	return out, nil
}

// Update implements ports.TransactionStore
func (r *SQLiteRepository) Update(ctx context.Context, ownerID string, tx core.Transaction) (core.Transaction, error) {
	if ownerID == "" {
		return core.Transaction{}, core.ErrUnauthorized
	}
	tx = tx.Clone()
	tx.OwnerID = ownerID
	tx.Highlights = nil

	err := r.inTx(ctx, func(q *sql.Tx) error {
		if err := checkOwner(ctx, q, ownerID, tx.ID); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `
UPDATE transactions
SET title = ?, date = ?, is_expense = ?, amount = ?, description = ?, category = ?,
    sender = ?, receiver = ?, updated_at = ?
WHERE id = ? AND owner_id = ?`,
			tx.Title, tx.Date, tx.IsExpense, tx.Amount.String(), tx.Description, tx.Category,
			tx.Sender, tx.Receiver, time.Now().UTC(), tx.ID, ownerID)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM transaction_labels WHERE transaction_id = ?`, tx.ID); err != nil {
			return fmt.Errorf("clear labels: %w", err)
		}
		return insertLabels(ctx, q, tx.ID, tx.Labels)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// Delete implements ports.TransactionStore
func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return core.ErrUnauthorized
	}
	return r.inTx(ctx, func(q *sql.Tx) error {
		if err := checkOwner(ctx, q, ownerID, id); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM transaction_labels WHERE transaction_id = ?`, id); err != nil {
			return fmt.Errorf("delete labels: %w", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return nil
	})
}

// DistinctCategories implements ports.TaxonomyReader
func (r *SQLiteRepository) DistinctCategories(ctx context.Context, ownerID string) ([]string, error) {
	if ownerID == "" {
		return nil, core.ErrUnauthorized
	}
	return r.queryStrings(ctx, `SELECT DISTINCT category FROM transactions WHERE owner_id = ? ORDER BY category`, ownerID)
}

// DistinctLabels implements ports.TaxonomyReader
func (r *SQLiteRepository) DistinctLabels(ctx context.Context, ownerID string) ([]string, error) {
	if ownerID == "" {
		return nil, core.ErrUnauthorized
	}
	return r.queryStrings(ctx, `
SELECT DISTINCT l.label
FROM transaction_labels l
JOIN transactions t ON t.id = l.transaction_id
WHERE t.owner_id = ?
ORDER BY l.label`, ownerID)
}

// CreateUser implements ports.UserStore
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = time.Now().UTC()

	// The UNIQUE index decides races between concurrent registrations.
	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(email) DO NOTHING`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	if n == 0 {
		return core.User{}, core.ErrConflict
	}
	return u, nil
}

// UserByEmail implements ports.UserStore
func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	q, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(q); err != nil {
		_ = q.Rollback()
		return err
	}
	if err := q.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func checkOwner(ctx context.Context, q *sql.Tx, ownerID, id string) error {
	var owner string
	err := q.QueryRowContext(ctx, `SELECT owner_id FROM transactions WHERE id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup transaction: %w", err)
	}
	if owner != ownerID {
		return core.ErrUnauthorized
	}
	return nil
}

func insertLabels(ctx context.Context, q *sql.Tx, id string, labels []string) error {
	for _, l := range labels {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO transaction_labels (transaction_id, label) VALUES (?, ?)`, id, l); err != nil {
			return fmt.Errorf("insert label %q: %w", l, err)
		}
	}
	return nil
}
