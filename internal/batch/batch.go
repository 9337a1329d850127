// Package batch walks a directory of PDF statements, runs the driver
// over each one independently, and produces a per-file summary
// report. One extraction goroutine per input file, bounded by
// runtime.GOMAXPROCS, since each file's driver run is independent and
// the shared registry.Registry is read-only once loaded.
package batch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/insightdelivered/transtractor/internal/driver"
	"github.com/insightdelivered/transtractor/internal/extractor"
	"github.com/insightdelivered/transtractor/internal/layout"
	"github.com/insightdelivered/transtractor/internal/registry"
	"github.com/insightdelivered/transtractor/internal/statement"
)

// Row is one line of the batch summary report.
type Row struct {
	File             string `csv:"file"`
	BankName         string `csv:"bank_name"`
	ConfigKey        string `csv:"config_key"`
	AccountNumber    string `csv:"account_number"`
	TransactionCount int    `csv:"transaction_count"`
	ErrorCount       int    `csv:"error_count"`
	OK               bool   `csv:"ok"`
}

// Run processes every *.pdf file directly inside dir (no recursion),
// in lexical filename order, against reg, and returns one Row per
// file in that same order regardless of which goroutine finished
// first. logger receives one structured event per file plus a
// run-scoped correlation id, so a batch's per-file failures can be
// traced back to one run in aggregated logs.
func Run(dir string, reg *registry.Registry, opts layout.Options, logger *slog.Logger) ([]Row, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != ".pdf" {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	runID := uuid.NewString()
	logger = logger.With("run_id", runID, "file_count", len(files))
	logger.Info("batch run starting")

	rows := make([]Row, len(files))
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup
	for i, name := range files {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			path := filepath.Join(dir, name)
			row := processFile(path, reg, opts)
			rows[i] = row

			logger.Info("processed file",
				"file", name,
				"config_key", row.ConfigKey,
				"transaction_count", row.TransactionCount,
				"error_count", row.ErrorCount,
				"ok", row.OK,
			)
		}(i, name)
	}
	wg.Wait()

	logger.Info("batch run complete")
	return rows, nil
}

// processFile runs the full extract-then-drive pipeline for one file
// and reduces the result to a Row, regardless of whether extraction,
// typing, or every candidate config failed — a failed file still gets
// a row (ok=false), never a dropped one.
func processFile(path string, reg *registry.Registry, opts layout.Options) Row {
	name := filepath.Base(path)

	pages, err := extractor.ExtractFragments(path)
	if err != nil {
		return Row{File: name, OK: false}
	}

	data, _, err := driver.RunFromPages(pages, opts, reg)
	if err != nil {
		return Row{File: name, OK: false}
	}

	return rowFromResult(name, reg, data)
}

// rowFromResult builds a Row from a successful driver result, kept
// separate from processFile so it can be exercised without a real PDF
// or filesystem.
func rowFromResult(name string, reg *registry.Registry, data *statement.StatementData) Row {
	bankName := ""
	if cfg := reg.Get(data.ConfigKey); cfg != nil {
		bankName = cfg.BankName
	}
	return Row{
		File:             name,
		BankName:         bankName,
		ConfigKey:        data.ConfigKey,
		AccountNumber:    data.AccountNumber,
		TransactionCount: len(data.Transactions),
		ErrorCount:       len(data.Errors),
		OK:               data.ErrorFree(),
	}
}
