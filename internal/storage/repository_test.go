package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "fintrack.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTx(title, date, amount string, expense bool, category string, labels ...string) core.Transaction {
	if labels == nil {
		labels = []string{}
	}
	return core.Transaction{
		Title: title, Date: date, Amount: decimal.RequireFromString(amount), IsExpense: expense,
		Category: category, Labels: labels, Description: "desc", Sender: "me", Receiver: "shop",
	}
}

func TestSQLiteCreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, err := repo.Create(ctx, "alice", newTx("Coffee", "2024-01-04", "50.99", true, "Food", "Work", "Cafe Visit"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID == "" || first.OwnerID != "alice" {
		t.Fatalf("unexpected created record %+v", first)
	}
	second, _ := repo.Create(ctx, "alice", newTx("Refund", "2024-01-04", "1.00", false, "Misc"))
	newest, _ := repo.Create(ctx, "alice", newTx("Rent", "2024-02-01", "900", true, "Housing"))
	if _, err := repo.Create(ctx, "bob", newTx("Salary", "2024-02-01", "3000", false, "Income", "Job")); err != nil {
		t.Fatal(err)
	}

	list, err := repo.List(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != newest.ID || list[1].ID != first.ID || list[2].ID != second.ID {
		t.Fatalf("unexpected order: %+v", list)
	}
	got := list[1]
	if !got.Amount.Equal(decimal.RequireFromString("50.99")) || !got.IsExpense || got.Description != "desc" {
		t.Fatalf("fields not round-tripped: %+v", got)
	}
	if !reflect.DeepEqual(got.Labels, []string{"Cafe Visit", "Work"}) {
		t.Fatalf("labels = %v", got.Labels)
	}
	if list[2].Labels == nil || len(list[2].Labels) != 0 {
		t.Fatalf("unlabeled transaction should have empty labels, got %#v", list[2].Labels)
	}

	cats, err := repo.DistinctCategories(ctx, "alice")
	if err != nil || !reflect.DeepEqual(cats, []string{"Food", "Housing", "Misc"}) {
		t.Fatalf("categories = %v, %v", cats, err)
	}
	labels, err := repo.DistinctLabels(ctx, "alice")
	if err != nil || !reflect.DeepEqual(labels, []string{"Cafe Visit", "Work"}) {
		t.Fatalf("labels = %v, %v", labels, err)
	}
}

func TestSQLiteUpdateReplacesLabels(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	tx, _ := repo.Create(ctx, "alice", newTx("Lunch", "2024-01-04", "12", true, "Food", "Work"))

	tx.Title = "Dinner"
	tx.Labels = []string{"Family"}
	tx.Amount = decimal.RequireFromString("30.5")
	if _, err := repo.Update(ctx, "alice", tx); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, _ := repo.List(ctx, "alice")
	if len(list) != 1 || list[0].Title != "Dinner" || !reflect.DeepEqual(list[0].Labels, []string{"Family"}) {
		t.Fatalf("update not applied: %+v", list)
	}
	if !list[0].Amount.Equal(decimal.RequireFromString("30.5")) {
		t.Fatalf("amount = %s", list[0].Amount)
	}
}

func TestSQLiteOwnerScoping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	tx, _ := repo.Create(ctx, "alice", newTx("Private", "2024-01-04", "12", true, "Food"))

	if _, err := repo.List(ctx, ""); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("empty owner: %v", err)
	}
	if list, err := repo.List(ctx, "bob"); err != nil || len(list) != 0 {
		t.Fatalf("bob list = %v, %v", list, err)
	}
	if _, err := repo.Update(ctx, "bob", tx); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("foreign update: %v", err)
	}
	if err := repo.Delete(ctx, "bob", tx.ID); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("foreign delete: %v", err)
	}
	if err := repo.Delete(ctx, "alice", "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing delete: %v", err)
	}
	if err := repo.Delete(ctx, "alice", tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if labels, _ := repo.DistinctLabels(ctx, "alice"); len(labels) != 0 {
		t.Fatalf("labels left behind: %v", labels)
	}
}

func TestSQLiteUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	u, err := repo.CreateUser(ctx, core.User{Email: "Alice@Example.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := repo.CreateUser(ctx, core.User{Email: "alice@example.com", PasswordHash: "x"}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate: %v", err)
	}
	got, err := repo.UserByEmail(ctx, " alice@example.com")
	if err != nil || got.ID != u.ID || got.PasswordHash != "hash" {
		t.Fatalf("lookup = %+v, %v", got, err)
	}
	if _, err := repo.UserByEmail(ctx, "ghost@example.com"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
}

func TestSQLiteCreateManyIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.CreateMany(ctx, "alice", []core.Transaction{
		newTx("Coffee", "2024-01-04", "3.20", true, "Food"),
		newTx("Tea", "2024-01-05", "2.10", true, "Food", "Work"),
	})
	if err != nil || len(created) != 2 || created[0].ID == "" || created[0].ID == created[1].ID {
		t.Fatalf("CreateMany = %+v, %v", created, err)
	}

	// Make label inserts fail so the second record aborts the batch.
	if _, err := repo.db.ExecContext(ctx, `DROP TABLE transaction_labels`); err != nil {
		t.Fatal(err)
	}
	_, err = repo.CreateMany(ctx, "alice", []core.Transaction{
		newTx("Cake", "2024-01-06", "4", true, "Food"),
		newTx("Rent", "2024-01-07", "900", true, "Housing", "Home"),
	})
	if err == nil {
		t.Fatal("expected label insert failure")
	}
	var n int
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM transactions WHERE owner_id = ?`, "alice").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("transactions after failed batch = %d, want 2", n)
	}
}

func TestSQLiteConcurrentRegistrationConflicts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateUser(ctx, core.User{Email: "race@example.com", PasswordHash: "h"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, core.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != attempts-1 {
		t.Fatalf("ok=%d conflicts=%d", ok, conflicts)
	}
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	v1, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	v2, err := RunMigrations(path)
	if err != nil || v1 != v2 || v1 == 0 {
		t.Fatalf("second run: v1=%d v2=%d err=%v", v1, v2, err)
	}
}
