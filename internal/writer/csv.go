// Package writer emits a StatementData as RFC 4180 CSV, per spec.md
// §6's exact column/format contract — direct encoding/csv calls
// rather than a struct-marshal library, matching the teacher's own
// hand-built writer for this single-statement, fixed-shape output.
package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/insightdelivered/transtractor/internal/statement"
)

// CSVWriter writes a StatementData to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes data to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, data *statement.StatementData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, data)
}

// Write writes data in CSV format to out: an optional block of "#"
// metadata comment rows, the fixed "date,description,amount,balance"
// header, then one row per transaction in extraction order.
func (w *CSVWriter) Write(out io.Writer, data *statement.StatementData) error {
	writer := csv.NewWriter(out)
	defer writer.Flush()

	if w.IncludeHeader {
		if data.ConfigKey != "" {
			writer.Write([]string{"# Config Key", data.ConfigKey})
		}
		if data.HasAccountNumber {
			writer.Write([]string{"# Account Number", data.AccountNumber})
		}
		if data.HasStartDate {
			writer.Write([]string{"# Start Date", data.StartDate.String()})
		}
		if data.HasOpeningBalance {
			writer.Write([]string{"# Opening Balance", data.OpeningBalance.String()})
		}
		if data.HasClosingBalance {
			writer.Write([]string{"# Closing Balance", data.ClosingBalance.String()})
		}
	}

	if err := writer.Write([]string{"date", "description", "amount", "balance"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, tx := range data.Transactions {
		balance := ""
		if tx.HasBalance {
			balance = tx.Balance.String()
		}
		row := []string{
			tx.Date.String(),
			tx.Description,
			tx.Amount.String(),
			balance,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return nil
}
