package driver

import (
	"testing"

	"github.com/insightdelivered/transtractor/internal/config"
	"github.com/insightdelivered/transtractor/internal/fragment"
	"github.com/insightdelivered/transtractor/internal/layout"
	"github.com/insightdelivered/transtractor/internal/registry"
)

const sentinel = 9999.0

// metroCfg mirrors a minimal checking-account statement: single
// "date description amount balance" format, no inversion.
func metroCfg(key string) *config.Config {
	return &config.Config{
		Key:         key,
		AccountType: "Checking",
		AccountTerms: []string{"Metro Bank"},

		AccountNumberPatterns: []string{`\d{6,}`},
		AccountNumber:         config.FieldRule{Terms: []string{"Account Number"}, Align: config.AlignNone},
		OpeningBalance: config.FieldRule{Terms: []string{"Opening Balance"}, Align: config.AlignNone, Formats: []string{"format1"}},
		ClosingBalance: config.FieldRule{Terms: []string{"Closing Balance"}, Align: config.AlignNone, Formats: []string{"format1"}},
		StartDate:      config.FieldRule{Terms: []string{"Statement Date"}, Align: config.AlignNone, Formats: []string{"format4"}},

		TransactionTerms:        []string{"Transactions"},
		TransactionFormats:      []config.TransactionFormat{{"date", "description", "amount", "balance"}},
		TransactionAlignmentTol: 1,
		TransactionNewLineTol:   5,

		DateColumn:        config.ColumnRule{HeaderTerms: []string{"Date"}, Align: config.AlignX1},
		DescriptionColumn: config.ColumnRule{HeaderTerms: []string{"Description"}, Align: config.AlignX1},
		AmountColumn:      config.ColumnRule{HeaderTerms: []string{"Amount"}, Align: config.AlignX2},
		BalanceColumn:     config.ColumnRule{HeaderTerms: []string{"Balance"}, Align: config.AlignX2},

		TransactionDateFormats:    []string{"format4"},
		TransactionAmountFormats:  []string{"format1"},
		TransactionBalanceFormats: []string{"format1"},
	}
}

func preambleFrags() []fragment.Fragment {
	return []fragment.Fragment{
		{Text: "Metro Bank", Y1: 200},
		{Text: "Account Number 12345678", Y1: 190},
		{Text: "Statement Date 1/3/2020", Y1: 180},
		{Text: "Opening Balance 900.00", Y1: 170},
		{Text: "Closing Balance 880.00", Y1: 160},
	}
}

func headerRow() []fragment.Fragment {
	return []fragment.Fragment{
		{Text: "Date", X1: 0, X2: sentinel, Y1: 110},
		{Text: "Description", X1: 50, X2: sentinel, Y1: 110},
		{Text: "Amount", X1: sentinel, X2: 150, Y1: 110},
		{Text: "Balance", X1: sentinel, X2: 200, Y1: 110},
	}
}

func minimalStream() fragment.Stream {
	frags := preambleFrags()
	frags = append(frags, fragment.Fragment{Text: "Transactions", Y1: 120})
	frags = append(frags, headerRow()...)
	frags = append(frags,
		fragment.Fragment{Text: "24/3/2020", X1: 0, X2: sentinel, Y1: 100},
		fragment.Fragment{Text: "Shop Purchase", X1: 50, X2: sentinel, Y1: 100},
		fragment.Fragment{Text: "50.00", X1: sentinel, X2: 150, Y1: 100},
		fragment.Fragment{Text: "950.00", X1: sentinel, X2: 200, Y1: 100},

		fragment.Fragment{Text: "25/3/2020", X1: 0, X2: sentinel, Y1: 90},
		fragment.Fragment{Text: "Another Purchase", X1: 50, X2: sentinel, Y1: 90},
		fragment.Fragment{Text: "70.00-", X1: sentinel, X2: 150, Y1: 90},
		fragment.Fragment{Text: "880.00", X1: sentinel, X2: 200, Y1: 90},
	)
	return fragment.Stream{Fragments: frags}
}

func mustRegister(t *testing.T, reg *registry.Registry, cfg *config.Config) {
	t.Helper()
	if err := reg.Register(cfg, ""); err != nil {
		t.Fatalf("register %s: %v", cfg.Key, err)
	}
}

func TestRunMinimalBalancedStatement(t *testing.T) {
	reg := registry.New()
	mustRegister(t, reg, metroCfg("gb__metro__checking__01"))

	data, attempts, err := Run(minimalStream(), reg)
	if err != nil {
		t.Fatalf("unexpected error: %v (attempts: %+v)", err, attempts)
	}
	if data == nil {
		t.Fatal("expected non-nil StatementData")
	}
	if data.ConfigKey != "gb__metro__checking__01" {
		t.Errorf("config key = %q", data.ConfigKey)
	}
	if data.AccountNumber != "12345678" {
		t.Errorf("account number = %q", data.AccountNumber)
	}
	if len(data.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(data.Transactions))
	}
	if !data.ErrorFree() {
		t.Fatalf("expected error-free attempt, got %v", data.Errors)
	}
}

func TestRunImplicitBalanceFill(t *testing.T) {
	reg := registry.New()
	mustRegister(t, reg, metroCfg("gb__metro__checking__01"))

	frags := preambleFrags()
	frags = append(frags, fragment.Fragment{Text: "Transactions", Y1: 120})
	frags = append(frags,
		fragment.Fragment{Text: "Date", X1: 0, X2: sentinel, Y1: 110},
		fragment.Fragment{Text: "Description", X1: 50, X2: sentinel, Y1: 110},
		fragment.Fragment{Text: "Amount", X1: sentinel, X2: 150, Y1: 110},
		// No balance header at all: every record's balance must be
		// synthesized by C8 from the opening balance.
	)
	frags = append(frags,
		fragment.Fragment{Text: "24/3/2020", X1: 0, X2: sentinel, Y1: 100},
		fragment.Fragment{Text: "Shop Purchase", X1: 50, X2: sentinel, Y1: 100},
		fragment.Fragment{Text: "50.00", X1: sentinel, X2: 150, Y1: 100},

		fragment.Fragment{Text: "25/3/2020", X1: 0, X2: sentinel, Y1: 90},
		fragment.Fragment{Text: "Another Purchase", X1: 50, X2: sentinel, Y1: 90},
		fragment.Fragment{Text: "70.00-", X1: sentinel, X2: 150, Y1: 90},
	)
	cfg := metroCfg("gb__metro__checking__01")
	cfg.BalanceColumn = config.ColumnRule{}
	cfg.TransactionBalanceFormats = nil
	cfg.TransactionFormats = []config.TransactionFormat{{"date", "description", "amount"}}
	reg = registry.New()
	mustRegister(t, reg, cfg)

	data, attempts, err := Run(fragment.Stream{Fragments: frags}, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v (attempts: %+v)", err, attempts)
	}
	if data.Transactions[0].Balance.String() != "950.00" || !data.Transactions[0].HasBalance {
		t.Errorf("tx0 balance = %+v", data.Transactions[0])
	}
	if data.Transactions[1].Balance.String() != "880.00" || !data.Transactions[1].HasBalance {
		t.Errorf("tx1 balance = %+v", data.Transactions[1])
	}
}

func TestRunNoApplicableConfig(t *testing.T) {
	reg := registry.New()
	mustRegister(t, reg, metroCfg("gb__metro__checking__01"))

	s := fragment.Stream{Fragments: []fragment.Fragment{{Text: "a statement from an entirely different bank"}}}
	data, attempts, err := Run(s, reg)
	if data != nil {
		t.Errorf("expected nil data, got %+v", data)
	}
	if attempts != nil {
		t.Errorf("expected no attempts, got %+v", attempts)
	}
	if err == nil {
		t.Fatal("expected NoApplicableConfig error")
	}
}

func TestRunFirstConfigFailsArithmeticSecondSucceeds(t *testing.T) {
	// Both configs share the same account_terms phrase, so both are
	// applicable candidates for the same stream. The first wrongly
	// inverts every transaction amount, which throws the running
	// balance off and fails CheckArithmetic; the second reads the
	// same stream without the bad invert flag and balances exactly.
	bad := metroCfg("gb__metro__checking__01")
	bad.TransactionAmountInvert = true
	good := metroCfg("gb__metro__checking__02")

	reg := registry.New()
	mustRegister(t, reg, bad)
	mustRegister(t, reg, good)

	data, attempts, err := Run(minimalStream(), reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected both configs to be attempted, got %d", len(attempts))
	}
	if attempts[0].Data.ErrorFree() {
		t.Errorf("expected the first (inverted) attempt to fail its arithmetic check")
	}
	if data == nil || data.ConfigKey != "gb__metro__checking__02" {
		t.Errorf("expected the second config to be the winning result, got %+v", data)
	}
}

// minimalPage is minimalStream's fragments as a single raw,
// not-yet-normalized layout.Page. Every row is already 10 points apart
// and each row's fragments already appear in ascending-X1 order, so a
// YBin wide enough to keep rows separate (and too narrow to merge
// adjacent rows) reconstructs exactly the same reading order
// minimalStream hands to Run directly.
func minimalPage() layout.Page {
	return layout.Page(minimalStream().Fragments)
}

func TestRunFromPagesMatchesRun(t *testing.T) {
	reg := registry.New()
	mustRegister(t, reg, metroCfg("gb__metro__checking__01"))

	opts := layout.Options{YBin: 5}
	data, attempts, err := RunFromPages([]layout.Page{minimalPage()}, opts, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v (attempts: %+v)", err, attempts)
	}
	if data == nil || data.ConfigKey != "gb__metro__checking__01" {
		t.Fatalf("expected a winning gb__metro__checking__01 result, got %+v", data)
	}
	if len(data.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(data.Transactions))
	}
	if !data.ErrorFree() {
		t.Fatalf("expected error-free attempt, got %v", data.Errors)
	}
}

// TestRunYearAbsentDatesInheritStartDateYear drives a year-absent date
// format (format1, "15 Dec") through the real preamble->table->postprocess
// pipeline: the first transaction must inherit the statement's own
// start-date year, and a later transaction whose month drops (Dec ->
// Jan) must roll over into the following year, not year 0 or year 1.
func TestRunYearAbsentDatesInheritStartDateYear(t *testing.T) {
	cfg := metroCfg("gb__metro__checking__04")
	cfg.TransactionDateFormats = []string{"format1"}
	cfg.TransactionFormats = []config.TransactionFormat{{"date", "description", "amount"}}
	cfg.BalanceColumn = config.ColumnRule{}
	cfg.TransactionBalanceFormats = nil

	frags := []fragment.Fragment{
		{Text: "Metro Bank", Y1: 200},
		{Text: "Account Number 12345678", Y1: 190},
		{Text: "Statement Date 15/12/2024", Y1: 180},
		{Text: "Opening Balance 900.00", Y1: 170},
		{Text: "Closing Balance 920.00", Y1: 160},
		{Text: "Transactions", Y1: 120},
		{Text: "Date", X1: 0, X2: sentinel, Y1: 110},
		{Text: "Description", X1: 50, X2: sentinel, Y1: 110},
		{Text: "Amount", X1: sentinel, X2: 150, Y1: 110},

		{Text: "15 Dec", X1: 0, X2: sentinel, Y1: 100},
		{Text: "First Purchase", X1: 50, X2: sentinel, Y1: 100},
		{Text: "20.00-", X1: sentinel, X2: 150, Y1: 100},

		{Text: "3 Jan", X1: 0, X2: sentinel, Y1: 90},
		{Text: "Second Purchase", X1: 50, X2: sentinel, Y1: 90},
		{Text: "50.00", X1: sentinel, X2: 150, Y1: 90},

		{Text: "17 Jan", X1: 0, X2: sentinel, Y1: 80},
		{Text: "Third Purchase", X1: 50, X2: sentinel, Y1: 80},
		{Text: "10.00-", X1: sentinel, X2: 150, Y1: 80},
	}

	reg := registry.New()
	mustRegister(t, reg, cfg)

	data, attempts, err := Run(fragment.Stream{Fragments: frags}, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v (attempts: %+v)", err, attempts)
	}
	if !data.ErrorFree() {
		t.Fatalf("expected error-free attempt, got %v", data.Errors)
	}
	if len(data.Transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(data.Transactions))
	}

	want := []struct{ year, month, day int }{
		{2024, 12, 15},
		{2025, 1, 3},
		{2025, 1, 17},
	}
	for i, w := range want {
		got := data.Transactions[i].Date
		if got.Year != w.year || got.Month != w.month || got.Day != w.day {
			t.Errorf("tx%d date = %+v, want %04d-%02d-%02d", i, got, w.year, w.month, w.day)
		}
	}
}

func TestRunFromPagesNoApplicableConfig(t *testing.T) {
	reg := registry.New()
	mustRegister(t, reg, metroCfg("gb__metro__checking__01"))

	page := layout.Page{{Text: "a statement from an entirely different bank"}}
	data, attempts, err := RunFromPages([]layout.Page{page}, layout.Options{}, reg)
	if data != nil {
		t.Errorf("expected nil data, got %+v", data)
	}
	if attempts != nil {
		t.Errorf("expected no attempts, got %+v", attempts)
	}
	if err == nil {
		t.Fatal("expected NoApplicableConfig error")
	}
}
