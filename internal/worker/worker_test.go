package worker

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

type fakeExporter struct {
	calls map[string]int
	last  []core.Transaction
	err   error
}

func (f *fakeExporter) Export(_ context.Context, ownerID string, txs []core.Transaction) error {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[ownerID]++
	f.last = txs
	return f.err
}

func newWorker(exp *fakeExporter) (*Worker, *services.TransactionService) {
	txs := services.NewTransactionService(memory.New())
	if exp == nil {
		// A typed nil would not compare equal to a nil interface.
		return New(txs, services.NewImportService(txs), nil), txs
	}
	return New(txs, services.NewImportService(txs), exp), txs
}

func TestHandleChangeExportsCurrentState(t *testing.T) {
	exp := &fakeExporter{}
	w, txs := newWorker(exp)
	ctx := context.Background()
	created, err := txs.Create(ctx, "alice", core.RawTransaction{Title: "Rent", Amount: "900", Category: "housing", IsExpense: true})
	if err != nil {
		t.Fatal(err)
	}

	env := amqp.NewChangeEnvelope(core.ChangeEvent{Kind: core.ChangeCreated, OwnerID: "alice", TransactionID: created.ID})
	if err := w.Handle(ctx, env); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if exp.calls["alice"] != 1 || len(exp.last) != 1 || exp.last[0].ID != created.ID {
		t.Fatalf("export calls = %v, last = %+v", exp.calls, exp.last)
	}
}

func TestHandleChangeExportFailureRequeues(t *testing.T) {
	exp := &fakeExporter{err: errors.New("quota exceeded")}
	w, _ := newWorker(exp)
	env := amqp.NewChangeEnvelope(core.ChangeEvent{Kind: core.ChangeDeleted, OwnerID: "alice", TransactionID: "x"})
	if err := w.Handle(context.Background(), env); err == nil {
		t.Fatal("expected export error to be returned")
	}
}

func TestHandleChangeWithoutExporter(t *testing.T) {
	w, _ := newWorker(nil)
	env := amqp.NewChangeEnvelope(core.ChangeEvent{Kind: core.ChangeUpdated, OwnerID: "alice", TransactionID: "x"})
	if err := w.Handle(context.Background(), env); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func TestHandleImport(t *testing.T) {
	w, txs := newWorker(&fakeExporter{})
	ctx := context.Background()
	env := amqp.NewImportEnvelope("alice", []core.RawTransaction{
		{Title: "Coffee", Amount: "3.20", Category: "food", IsExpense: true},
		{Title: "", Amount: "1", Category: "food"},
	})
	if err := w.Handle(ctx, env); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	list, _ := txs.List(ctx, "alice")
	if len(list) != 1 || list[0].Title != "Coffee" {
		t.Fatalf("stored = %+v", list)
	}
}

func TestHandleImportExportsAfterwards(t *testing.T) {
	exp := &fakeExporter{}
	w, _ := newWorker(exp)
	env := amqp.NewImportEnvelope("alice", []core.RawTransaction{
		{Title: "Coffee", Amount: "3.20", Category: "food", IsExpense: true},
	})
	if err := w.Handle(context.Background(), env); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if exp.calls["alice"] != 1 || len(exp.last) != 1 {
		t.Fatalf("export calls = %v", exp.calls)
	}
}

func TestHandleImportExportFailureDoesNotRequeue(t *testing.T) {
	w, txs := newWorker(&fakeExporter{err: errors.New("quota exceeded")})
	ctx := context.Background()
	env := amqp.NewImportEnvelope("alice", []core.RawTransaction{
		{Title: "Coffee", Amount: "3.20", Category: "food", IsExpense: true},
	})
	if err := w.Handle(ctx, env); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if list, _ := txs.List(ctx, "alice"); len(list) != 1 {
		t.Fatalf("stored = %+v", list)
	}
}

func TestHandleImportDropsOversizedBatch(t *testing.T) {
	w, _ := newWorker(nil)
	env := amqp.NewImportEnvelope("alice", make([]core.RawTransaction, services.MaxImportBatch+1))
	if err := w.Handle(context.Background(), env); err != nil {
		t.Fatalf("oversized import should be dropped, got %v", err)
	}
}

func TestHandleUnknownType(t *testing.T) {
	w, _ := newWorker(nil)
	if err := w.Handle(context.Background(), &amqp.Envelope{Type: "mystery", OwnerID: "alice"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}
