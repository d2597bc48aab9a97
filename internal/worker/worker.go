package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/ports"
	"fintrack/internal/services"
)

// Worker consumes queue envelopes: change events refresh the owner's
// export, import requests are normalized and stored.
type Worker struct {
	transactions *services.TransactionService
	imports      *services.ImportService
	exporter     ports.Exporter
}

// New creates a worker. exporter may be nil, in which case change events
// are acknowledged without doing anything.
func New(transactions *services.TransactionService, imports *services.ImportService, exporter ports.Exporter) *Worker {
	return &Worker{transactions: transactions, imports: imports, exporter: exporter}
}

// Handle processes one envelope. A returned error requeues the message.
func (w *Worker) Handle(ctx context.Context, env *amqp.Envelope) error {
	switch {
	case env.IsChange():
		return w.handleChange(ctx, env)
	case env.Type == amqp.TypeImportRequested:
		return w.handleImport(ctx, env)
	}
	slog.WarnContext(ctx, "Dropping message with unknown type",
		"component", "worker",
		"type", env.Type,
		"owner_id", env.OwnerID)
	return nil
}

func (w *Worker) handleChange(ctx context.Context, env *amqp.Envelope) error {
	slog.InfoContext(ctx, "Processing change message",
		"component", "worker",
		"type", env.Type,
		"owner_id", env.OwnerID,
		"transaction_id", env.TransactionID)

	return w.export(ctx, env.OwnerID)
}

// export writes the owner's full current state so out-of-order events
// converge.
func (w *Worker) export(ctx context.Context, ownerID string) error {
	if w.exporter == nil {
		slog.DebugContext(ctx, "No exporter configured, skipping export", "component", "worker")
		return nil
	}
	txs, err := w.transactions.List(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	if err := w.exporter.Export(ctx, ownerID, txs); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

func (w *Worker) handleImport(ctx context.Context, env *amqp.Envelope) error {
	report, err := w.imports.Import(ctx, env.OwnerID, env.Records)
	if errors.Is(err, services.ErrImportTooLarge) {
		slog.ErrorContext(ctx, "Dropping oversized import",
			"component", "worker",
			"owner_id", env.OwnerID,
			"records", len(env.Records))
		return nil
	}
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	for _, r := range report.Rejected {
		slog.WarnContext(ctx, "Import record rejected",
			"component", "worker",
			"owner_id", env.OwnerID,
			"index", r.Index,
			"fields", r.Fields)
	}
	if len(report.Created) == 0 {
		return nil
	}
	// Records are stored at this point; an export failure is retried by the
	// next change event rather than by re-importing the batch.
	if err := w.export(ctx, env.OwnerID); err != nil {
		slog.ErrorContext(ctx, "Export after import failed",
			"component", "worker",
			"owner_id", env.OwnerID,
			"error", err)
	}
	return nil
}
