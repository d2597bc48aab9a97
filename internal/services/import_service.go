package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

// MaxImportBatch caps the records accepted in one import.
const MaxImportBatch = 1000

var ErrImportTooLarge = fmt.Errorf("import exceeds %d records", MaxImportBatch)

// ImportRejection is one record that failed normalization.
type ImportRejection struct {
	Index  int                 `json:"index"`
	Fields map[string][]string `json:"fields"`
}

type ImportReport struct {
	Created  []core.Transaction `json:"created"`
	Rejected []ImportRejection  `json:"rejected"`
}

// ImportService stores batches of raw records. Invalid records are
// reported by index and do not block the valid ones. The valid records are
// written all together or not at all.
type ImportService struct {
	tx *TransactionService
}

// NewImportService imports through tx's store, normalizer and publisher.
func NewImportService(tx *TransactionService) *ImportService {
	return &ImportService{tx: tx}
}

// Import normalizes records and stores the valid ones in one batch. A
// store failure leaves nothing behind and is returned with an empty report.
func (s *ImportService) Import(ctx context.Context, ownerID string, records []core.RawTransaction) (ImportReport, error) {
	report := ImportReport{Created: []core.Transaction{}, Rejected: []ImportRejection{}}
	if ownerID == "" {
		return report, core.ErrUnauthorized
	}
	if len(records) > MaxImportBatch {
		return report, ErrImportTooLarge
	}

	valid := make([]core.Transaction, 0, len(records))
	for i, raw := range records {
		tx, err := s.tx.normalizer.Normalize(raw)
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			report.Rejected = append(report.Rejected, ImportRejection{Index: i, Fields: verr.Fields})
			continue
		}
		if err != nil {
			return report, err
		}
		valid = append(valid, tx)
	}

	if len(valid) > 0 {
		created, err := s.tx.store.CreateMany(ctx, ownerID, valid)
		if err != nil {
			return report, fmt.Errorf("import records: %w", err)
		}
		report.Created = created
	}

	slog.InfoContext(ctx, "Import finished",
		"component", "import",
		"owner_id", ownerID,
		"created", len(report.Created),
		"rejected", len(report.Rejected))

	if len(report.Created) > 0 {
		// One event for the whole batch; an empty transaction ID means "many".
		s.tx.committed(ctx, core.ChangeCreated, ownerID, "")
	}
	return report, nil
}
