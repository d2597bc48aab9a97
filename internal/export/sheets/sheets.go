// Package sheets mirrors an owner's transactions into a Google spreadsheet,
// one tab per owner, rewritten in full on every export.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	"fintrack/internal/ports"
	"fintrack/internal/stats"
)

var _ ports.Exporter = (*Exporter)(nil)

// DefaultSheetName prefixes every owner tab.
const DefaultSheetName = "Transactions"

// summaryColumn is where the monthly summary block starts, leaving a blank
// column after the transaction table.
const summaryColumn = "L"

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// New builds an exporter. Without explicit client options the service
// account credentials in cfg are used.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Exporter, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if len(opts) == 0 {
		creds, err := loadCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	name := strings.TrimSpace(cfg.SheetName)
	if name == "" {
		name = DefaultSheetName
	}
	return &Exporter{svc: svc, spreadsheetID: id, sheetName: name}, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials", "component", "sheets")
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "component", "sheets", "path", cfg.CredentialsFile)
		return data, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
}

// TabName is the sheet title used for ownerID. It carries the whole ID so
// no two owners share a tab.
func (e *Exporter) TabName(ownerID string) string {
	return fmt.Sprintf("%s %s", e.sheetName, ownerID)
}

// Export implements ports.Exporter
func (e *Exporter) Export(ctx context.Context, ownerID string, txs []core.Transaction) error {
	if ownerID == "" {
		return core.ErrUnauthorized
	}
	tab := e.TabName(ownerID)
	if err := e.ensureTab(ctx, tab); err != nil {
		return err
	}

	monthly, err := stats.MonthlyTotals(txs)
	if err != nil {
		return fmt.Errorf("summarize export: %w", err)
	}
	months, err := stats.SortedMonths(monthly)
	if err != nil {
		return fmt.Errorf("summarize export: %w", err)
	}

	quoted := quote(tab)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, quoted+"!A:Z", &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", tab, err)
	}

	// RAW keeps user text such as "=1+1" from being evaluated.
	writes := []struct {
		rng  string
		rows [][]any
	}{
		{quoted + "!A1", Rows(txs)},
		{quoted + "!" + summaryColumn + "1", SummaryRows(months)},
	}
	for _, w := range writes {
		_, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, w.rng, &gsheet.ValueRange{Values: w.rows}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update %s: %w", w.rng, err)
		}
	}

	slog.InfoContext(ctx, "Exported transactions to Google Sheets",
		"component", "sheets",
		"owner_id", ownerID,
		"sheet", tab,
		"rows", len(txs),
		"months", len(months))
	return nil
}

func (e *Exporter) ensureTab(ctx context.Context, tab string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", tab, err)
	}
	slog.InfoContext(ctx, "Created owner sheet", "component", "sheets", "sheet", tab)
	return nil
}

// Header is the first row of the transaction table.
var Header = []any{"Date", "Title", "Type", "Amount", "Category", "Labels", "Description", "Sender", "Receiver"}

// Rows renders txs as a header plus one row per transaction.
func Rows(txs []core.Transaction) [][]any {
	out := make([][]any, 0, len(txs)+1)
	out = append(out, Header)
	for _, tx := range txs {
		kind := "Income"
		if tx.IsExpense {
			kind = "Expense"
		}
		out = append(out, []any{
			tx.Date, tx.Title, kind, tx.Amount.InexactFloat64(), tx.Category,
			strings.Join(tx.Labels, ", "), tx.Description, tx.Sender, tx.Receiver,
		})
	}
	return out
}

// SummaryRows renders monthly totals, oldest first.
func SummaryRows(months []stats.MonthRow) [][]any {
	out := make([][]any, 0, len(months)+1)
	out = append(out, []any{"Month", "Income", "Expense", "Balance"})
	for _, m := range months {
		out = append(out, []any{m.Month, m.Income.InexactFloat64(), m.Expense.InexactFloat64(), m.Balance.InexactFloat64()})
	}
	return out
}

// quote wraps a sheet title for A1 notation.
func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
