// Package xlsx renders transactions and monthly totals as an Excel workbook.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"fintrack/internal/core"
	"fintrack/internal/stats"
)

const (
	TransactionsSheet = "Transactions"
	MonthlySheet      = "Monthly"

	// ContentType is the MIME type of the written workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	transactionHeader = []any{"Date", "Title", "Type", "Amount", "Category", "Labels", "Description", "Sender", "Receiver"}
	monthlyHeader     = []any{"Month", "Income", "Expense", "Balance"}
)

// Write builds the workbook and streams it to w.
func Write(w io.Writer, txs []core.Transaction, months []stats.MonthRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TransactionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(MonthlySheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}

	rows := make([][]any, 0, len(txs))
	for _, tx := range txs {
		kind := "Income"
		if tx.IsExpense {
			kind = "Expense"
		}
		rows = append(rows, []any{
			tx.Date, tx.Title, kind, tx.Amount.InexactFloat64(), tx.Category,
			strings.Join(tx.Labels, ", "), tx.Description, tx.Sender, tx.Receiver,
		})
	}
	if err := writeTable(f, TransactionsSheet, transactionHeader, rows, bold); err != nil {
		return err
	}
	if len(rows) > 0 {
		if err := f.SetCellStyle(TransactionsSheet, "D2", fmt.Sprintf("D%d", len(rows)+1), money); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(TransactionsSheet, "B", "B", 32); err != nil {
		return err
	}

	rows = rows[:0]
	for _, m := range months {
		rows = append(rows, []any{m.Month, m.Income.InexactFloat64(), m.Expense.InexactFloat64(), m.Balance.InexactFloat64()})
	}
	if err := writeTable(f, MonthlySheet, monthlyHeader, rows, bold); err != nil {
		return err
	}
	if len(rows) > 0 {
		if err := f.SetCellStyle(MonthlySheet, "B2", fmt.Sprintf("D%d", len(rows)+1), money); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
