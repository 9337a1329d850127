// Command transtractor converts bank statement PDFs to CSV using a
// declarative, config-driven extraction pipeline: point it at a
// directory of on-wire JSON configs, and it identifies which config
// applies to each input PDF rather than requiring a bank name up
// front. Mirrors the teacher's original flag surface (--output,
// --header, --version, --help), generalized from --bank to
// --config-dir/--key.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/insightdelivered/transtractor/internal/configload"
	"github.com/insightdelivered/transtractor/internal/driver"
	"github.com/insightdelivered/transtractor/internal/extractor"
	"github.com/insightdelivered/transtractor/internal/layout"
	"github.com/insightdelivered/transtractor/internal/registry"
	"github.com/insightdelivered/transtractor/internal/statement"
	"github.com/insightdelivered/transtractor/internal/writer"
)

const version = "2.0.0"

func main() {
	configDirFlag := flag.String("config-dir", "configs", "Directory of on-wire JSON statement configs to load")
	keyFlag := flag.String("key", "", "Force a specific config key instead of auto-typing")
	outputFlag := flag.String("output", "", "Output CSV file path (defaults to input filename with .csv extension)")
	headerFlag := flag.Bool("header", true, "Include account metadata header rows in CSV")
	dumpLayoutFlag := flag.Bool("dump-layout", false, "Write the normalized layout-text form instead of CSV")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `transtractor - declarative bank statement PDF to CSV converter

Identifies which registered config applies to each statement and
extracts a normalized transaction table, rather than parsing against
one hardcoded bank format.

Usage:
  transtractor [flags] <input.pdf> [input2.pdf ...]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Auto-detect the config and convert
  transtractor --config-dir=configs statement.pdf

  # Force a specific config
  transtractor --config-dir=configs --key=gb__metro__checking__01 statement.pdf

  # Dump the normalized layout-text form for inspection
  transtractor --config-dir=configs --dump-layout statement.pdf
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("transtractor v%s\n", version)
		os.Exit(0)
	}

	if *helpFlag || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	reg := registry.New()
	if err := configload.LoadDir(*configDirFlag, reg); err != nil {
		logger.Error("failed to load configs", "config_dir", *configDirFlag, "error", err)
		os.Exit(1)
	}

	if *keyFlag != "" && reg.Get(*keyFlag) == nil {
		logger.Error("unknown config key", "key", *keyFlag)
		os.Exit(1)
	}

	for _, inputPath := range flag.Args() {
		if err := processFile(inputPath, reg, *keyFlag, *outputFlag, *headerFlag, *dumpLayoutFlag, logger); err != nil {
			logger.Error("processing failed", "file", inputPath, "error", err)
			os.Exit(1)
		}
	}
}

func processFile(inputPath string, reg *registry.Registry, forcedKey, outputPath string, includeHeader, dumpLayout bool, logger *slog.Logger) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if ext := strings.ToLower(filepath.Ext(inputPath)); ext != ".pdf" {
		return fmt.Errorf("expected .pdf file, got %q", ext)
	}

	fmt.Printf("Processing: %s\n", inputPath)

	pages, err := extractor.ExtractFragments(inputPath)
	if err != nil {
		return fmt.Errorf("PDF extraction failed: %w", err)
	}
	fmt.Printf("  Extracted fragments from %d page(s)\n", len(pages))

	outPath := outputPath
	if outPath == "" {
		outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".csv"
	}

	if dumpLayout {
		base := layout.Normalize(pages, layout.DefaultOptions)
		if err := os.WriteFile(outPath, []byte(layout.Render(base)), 0o644); err != nil {
			return fmt.Errorf("failed to write layout-text output: %w", err)
		}
		fmt.Printf("  Layout dump: %s\n", outPath)
		return nil
	}

	data, attempts, err := runAgainstRegistry(pages, reg, forcedKey)
	if err != nil {
		logger.Warn("no error-free config attempt", "file", inputPath, "attempts", len(attempts))
		return err
	}

	fmt.Printf("  Matched config: %s\n", data.ConfigKey)
	fmt.Printf("  Found %d transaction(s)\n", len(data.Transactions))

	w := &writer.CSVWriter{IncludeHeader: includeHeader}
	if err := w.WriteToFile(outPath, data); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}
	fmt.Printf("  Output: %s\n", outPath)

	if data.HasAccountNumber {
		fmt.Printf("  Account number: %s\n", data.AccountNumber)
	}
	if data.HasStartDate {
		fmt.Printf("  Statement date: %s\n", data.StartDate)
	}
	fmt.Println("  Done.")
	return nil
}

func runAgainstRegistry(pages []layout.Page, reg *registry.Registry, forcedKey string) (*statement.StatementData, []driver.Attempt, error) {
	opts := layout.DefaultOptions
	if forcedKey == "" {
		return driver.RunFromPages(pages, opts, reg)
	}

	cfg := reg.Get(forcedKey)
	single := registry.New()
	if err := single.Register(cfg, ""); err != nil {
		return nil, nil, err
	}
	base := layout.Normalize(pages, opts)
	return driver.Run(base, single)
}
