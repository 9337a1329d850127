package table

import (
	"testing"

	"github.com/insightdelivered/transtractor/internal/config"
	"github.com/insightdelivered/transtractor/internal/fragment"
)

func baseCfg() *config.Config {
	return &config.Config{
		Key:                     "gb__metro__checking__01",
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

const sentinel = 9999.0

// anchorFrag is the line that introduces the transaction table; it is
// deliberately distinct from any column header term so it is never
// mistaken for one once findHeaders scans past it.
func anchorFrag() fragment.Fragment {
	return fragment.Fragment{Text: "Transactions", Y1: 120}
}

func headerRow() []fragment.Fragment {
	return []fragment.Fragment{
		{Text: "Date", X1: 0, X2: sentinel, Y1: 110},
		{Text: "Description", X1: 50, X2: sentinel, Y1: 110},
		{Text: "Amount", X1: sentinel, X2: 150, Y1: 110},
		{Text: "Balance", X1: sentinel, X2: 200, Y1: 110},
	}
}

func TestExtractTwoRecords(t *testing.T) {
	cfg := baseCfg()
	frags := append([]fragment.Fragment{anchorFrag()}, headerRow()...)
	frags = append(frags,
		fragment.Fragment{Text: "24/3/2020", X1: 0, X2: sentinel, Y1: 100},
		fragment.Fragment{Text: "Shop Purchase", X1: 50, X2: sentinel, Y1: 100},
		fragment.Fragment{Text: "50.00", X1: sentinel, X2: 150, Y1: 100},
		fragment.Fragment{Text: "150.00", X1: sentinel, X2: 200, Y1: 100},

		fragment.Fragment{Text: "25/3/2020", X1: 0, X2: sentinel, Y1: 90},
		fragment.Fragment{Text: "Another Purchase", X1: 50, X2: sentinel, Y1: 90},
		fragment.Fragment{Text: "30.00-", X1: sentinel, X2: 150, Y1: 90},
		fragment.Fragment{Text: "120.00", X1: sentinel, X2: 200, Y1: 90},
	)
	s := fragment.Stream{Fragments: frags}

	txs, errs := Extract(s, cfg, 0)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Description != "Shop Purchase" || txs[0].Amount.String() != "50.00" || txs[0].Balance.String() != "150.00" {
		t.Errorf("tx0 = %+v", txs[0])
	}
	if txs[1].Description != "Another Purchase" || txs[1].Amount.String() != "-30.00" || txs[1].Balance.String() != "120.00" {
		t.Errorf("tx1 = %+v", txs[1])
	}
	if txs[0].Date.Month != 3 || txs[0].Date.Day != 24 || txs[0].Date.Year != 2020 {
		t.Errorf("tx0 date = %+v", txs[0].Date)
	}
}

func TestMissingAmountHeader(t *testing.T) {
	cfg := baseCfg()
	frags := []fragment.Fragment{
		anchorFrag(),
		{Text: "Date", X1: 0, X2: sentinel, Y1: 110},
		{Text: "Description", X1: 50, X2: sentinel, Y1: 110},
		{Text: "Balance", X1: sentinel, X2: 200, Y1: 110},
	}
	s := fragment.Stream{Fragments: frags}

	txs, errs := Extract(s, cfg, 0)
	if len(txs) != 0 {
		t.Errorf("expected no transactions, got %d", len(txs))
	}
	if len(errs) != 1 || errs[0].Kind != "MissingHeader" || errs[0].Field != "amount" {
		t.Fatalf("expected MissingHeader(amount), got %v", errs)
	}
}

func TestNoTransactionTable(t *testing.T) {
	cfg := baseCfg()
	s := fragment.Stream{Fragments: []fragment.Fragment{{Text: "irrelevant document text"}}}
	txs, errs := Extract(s, cfg, 0)
	if len(txs) != 0 {
		t.Errorf("expected no transactions, got %d", len(txs))
	}
	if len(errs) != 1 || errs[0].Kind != "NoTransactionTable" {
		t.Fatalf("expected NoTransactionTable, got %v", errs)
	}
}

func TestDescriptionMultiLineWrap(t *testing.T) {
	cfg := baseCfg()
	frags := append([]fragment.Fragment{anchorFrag()}, headerRow()...)
	frags = append(frags,
		fragment.Fragment{Text: "24/3/2020", X1: 0, X2: sentinel, Y1: 100},
		fragment.Fragment{Text: "Shop Purchase", X1: 50, X2: sentinel, Y1: 100},
		// Continuation line of the description beyond new-line tol (5)
		// inserts a newline token via slotAccum.append rather than a
		// plain space join.
		fragment.Fragment{Text: "extra detail", X1: 50, X2: sentinel, Y1: 93},
		fragment.Fragment{Text: "50.00", X1: sentinel, X2: 150, Y1: 100},
		fragment.Fragment{Text: "150.00", X1: sentinel, X2: 200, Y1: 100},
	)
	s := fragment.Stream{Fragments: frags}

	txs, errs := Extract(s, cfg, 0)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Description != "Shop Purchase \nextra detail" {
		t.Errorf("got description %q", txs[0].Description)
	}
}

func TestDescriptionSameLineContinuationJoinsWithSpace(t *testing.T) {
	cfg := baseCfg()
	frags := append([]fragment.Fragment{anchorFrag()}, headerRow()...)
	frags = append(frags,
		fragment.Fragment{Text: "24/3/2020", X1: 0, X2: sentinel, Y1: 100},
		fragment.Fragment{Text: "Shop", X1: 50, X2: sentinel, Y1: 100},
		// Within new-line tol (5): same visual line, still a plain
		// space-joined continuation of the description slot.
		fragment.Fragment{Text: "Purchase", X1: 50, X2: sentinel, Y1: 99},
		fragment.Fragment{Text: "50.00", X1: sentinel, X2: 150, Y1: 100},
		fragment.Fragment{Text: "150.00", X1: sentinel, X2: 200, Y1: 100},
	)
	s := fragment.Stream{Fragments: frags}

	txs, errs := Extract(s, cfg, 0)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Description != "Shop Purchase" {
		t.Errorf("got description %q", txs[0].Description)
	}
}

func TestAmountInvertColumn(t *testing.T) {
	cfg := baseCfg()
	cfg.AmountInvert = config.ColumnRule{HeaderTerms: []string{"Paid Out"}, Align: config.AlignX2}

	frags := []fragment.Fragment{
		anchorFrag(),
		{Text: "Date", X1: 0, X2: sentinel, Y1: 110},
		{Text: "Description", X1: 50, X2: sentinel, Y1: 110},
		{Text: "Paid Out", X1: sentinel, X2: 150, Y1: 110},
		{Text: "Balance", X1: sentinel, X2: 200, Y1: 110},

		{Text: "24/3/2020", X1: 0, X2: sentinel, Y1: 100},
		{Text: "Card Payment", X1: 50, X2: sentinel, Y1: 100},
		{Text: "25.00", X1: sentinel, X2: 150, Y1: 100},
		{Text: "75.00", X1: sentinel, X2: 200, Y1: 100},
	}
	s := fragment.Stream{Fragments: frags}

	txs, errs := Extract(s, cfg, 0)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Amount.String() != "-25.00" {
		t.Errorf("expected amount_invert column to negate, got %q", txs[0].Amount.String())
	}
}

func TestAmountInvertColumnStacksWithConfigLevelInvert(t *testing.T) {
	cfg := baseCfg()
	cfg.AmountInvert = config.ColumnRule{HeaderTerms: []string{"Paid Out"}, Align: config.AlignX2}
	cfg.TransactionAmountInvert = true

	frags := []fragment.Fragment{
		anchorFrag(),
		{Text: "Date", X1: 0, X2: sentinel, Y1: 110},
		{Text: "Description", X1: 50, X2: sentinel, Y1: 110},
		{Text: "Paid Out", X1: sentinel, X2: 150, Y1: 110},
		{Text: "Balance", X1: sentinel, X2: 200, Y1: 110},

		{Text: "24/3/2020", X1: 0, X2: sentinel, Y1: 100},
		{Text: "Card Payment", X1: 50, X2: sentinel, Y1: 100},
		{Text: "25.00", X1: sentinel, X2: 150, Y1: 100},
		{Text: "75.00", X1: sentinel, X2: 200, Y1: 100},
	}
	s := fragment.Stream{Fragments: frags}

	txs, errs := Extract(s, cfg, 0)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	// The amount_invert column's negation composes with the
	// config-level flag, so the two cancel out.
	if txs[0].Amount.String() != "25.00" {
		t.Errorf("expected the two inversions to cancel, got %q", txs[0].Amount.String())
	}
}

func TestAmbiguousAlignmentReported(t *testing.T) {
	cfg := baseCfg()
	// Two columns anchored at the exact same x-coordinate: any
	// fragment landing there within tolerance is ambiguous.
	cfg.DescriptionColumn = config.ColumnRule{HeaderTerms: []string{"Description"}, Align: config.AlignX1}
	frags := []fragment.Fragment{
		anchorFrag(),
		{Text: "Date", X1: 0, X2: sentinel, Y1: 110},
		{Text: "Description", X1: 0, X2: sentinel, Y1: 110},
		{Text: "Amount", X1: sentinel, X2: 150, Y1: 110},
		{Text: "Balance", X1: sentinel, X2: 200, Y1: 110},

		{Text: "24/3/2020", X1: 0, X2: sentinel, Y1: 100},
	}
	s := fragment.Stream{Fragments: frags}

	_, errs := Extract(s, cfg, 0)
	found := false
	for _, e := range errs {
		if e.Kind == "AmbiguousAlignment" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an AmbiguousAlignment error, got %v", errs)
	}
}

func TestRecordParseFailureOnUnparseableAmount(t *testing.T) {
	cfg := baseCfg()
	frags := append([]fragment.Fragment{anchorFrag()}, headerRow()...)
	frags = append(frags,
		fragment.Fragment{Text: "24/3/2020", X1: 0, X2: sentinel, Y1: 100},
		fragment.Fragment{Text: "Shop Purchase", X1: 50, X2: sentinel, Y1: 100},
		fragment.Fragment{Text: "garbage", X1: sentinel, X2: 150, Y1: 100},
		fragment.Fragment{Text: "150.00", X1: sentinel, X2: 200, Y1: 100},
	)
	s := fragment.Stream{Fragments: frags}

	txs, errs := Extract(s, cfg, 0)
	if len(txs) != 0 {
		t.Errorf("expected no transactions, got %d", len(txs))
	}
	if len(errs) != 1 || errs[0].Kind != "RecordParseFailure" {
		t.Fatalf("expected RecordParseFailure, got %v", errs)
	}
}

func TestStartDateCarriedForwardWhenFormatOmitsDate(t *testing.T) {
	cfg := baseCfg()
	cfg.TransactionStartDateRequired = true
	cfg.TransactionFormats = []config.TransactionFormat{
		{"date", "description", "amount", "balance"},
		{"description", "amount", "balance"},
	}
	frags := append([]fragment.Fragment{anchorFrag()}, headerRow()...)
	frags = append(frags,
		fragment.Fragment{Text: "24/3/2020", X1: 0, X2: sentinel, Y1: 100},
		fragment.Fragment{Text: "Shop Purchase", X1: 50, X2: sentinel, Y1: 100},
		fragment.Fragment{Text: "50.00", X1: sentinel, X2: 150, Y1: 100},
		fragment.Fragment{Text: "150.00", X1: sentinel, X2: 200, Y1: 100},

		// Second record has no date fragment at all; it should carry
		// the first record's date forward.
		fragment.Fragment{Text: "Another Purchase", X1: 50, X2: sentinel, Y1: 90},
		fragment.Fragment{Text: "30.00-", X1: sentinel, X2: 150, Y1: 90},
		fragment.Fragment{Text: "120.00", X1: sentinel, X2: 200, Y1: 90},
	)
	s := fragment.Stream{Fragments: frags}

	txs, errs := Extract(s, cfg, 0)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[1].Date.Year != 2020 || txs[1].Date.Month != 3 || txs[1].Date.Day != 24 {
		t.Errorf("expected carried-forward date, got %+v", txs[1].Date)
	}
}
