// Package config defines the declarative per-statement ruleset (C4)
// that drives preamble extraction and transaction table assembly, and
// its validation.
package config

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/insightdelivered/transtractor/internal/format"
)

// Alignment names one of the four bounding-box coordinates a rule can
// pin a candidate fragment to, or "none" for "next fragment in
// reading order".
type Alignment string

const (
	AlignX1   Alignment = "x1"
	AlignX2   Alignment = "x2"
	AlignY1   Alignment = "y1"
	AlignY2   Alignment = "y2"
	AlignNone Alignment = "none"
)

func (a Alignment) valid() bool {
	switch a {
	case AlignX1, AlignX2, AlignY1, AlignY2, AlignNone:
		return true
	default:
		return false
	}
}

// FieldRule describes how to locate one preamble field (account
// number, opening/closing balance, start date): the anchor terms,
// the alignment + tolerance a candidate fragment must satisfy, and
// (for balances and dates) the ordered list of formats to try.
type FieldRule struct {
	Terms     []string  `json:"terms" validate:"required,min=1"`
	Formats   []string  `json:"formats,omitempty"`
	Align     Alignment `json:"align" validate:"required"`
	Tolerance float64   `json:"tolerance" validate:"gte=0"`
	Invert    bool      `json:"invert,omitempty"`
}

// ColumnRule describes one column of the transaction table: the
// header terms that locate its anchor fragment and the alignment
// (x1 or x2) that anchor imposes on member fragments.
type ColumnRule struct {
	HeaderTerms []string  `json:"header_terms"`
	Align       Alignment `json:"align"`
}

// TransactionFormat is one permitted left-to-right sequence of field
// slots a transaction record may take, e.g. ["date", "description",
// "amount", "balance"].
type TransactionFormat []string

var validSlots = map[string]bool{
	"date": true, "description": true, "amount": true, "balance": true,
}

// Config is one declarative statement-type ruleset, on the wire as a
// JSON object with every field named here (unknown keys rejected by
// the loader, not this type).
type Config struct {
	Key         string `json:"key" validate:"required,statement_key"`
	BankName    string `json:"bank_name"`
	AccountType string `json:"account_type" validate:"required,account_type"`

	AccountTerms          []string `json:"account_terms" validate:"required,min=1"`
	AccountNumberPatterns []string `json:"account_number_patterns,omitempty"`
	AccountExamples       []string `json:"account_examples,omitempty"`

	// ApplyYPatch snaps fragment Y1 to a line-height grid before C2
	// binning, correcting PDF producers with sub-pixel line jitter.
	ApplyYPatch           bool    `json:"apply_y_patch,omitempty"`
	ApplyYPatchLineHeight float64 `json:"apply_y_patch_line_height,omitempty" validate:"gte=0"`

	AccountNumber  FieldRule `json:"account_number"`
	OpeningBalance FieldRule `json:"opening_balance"`
	ClosingBalance FieldRule `json:"closing_balance"`
	StartDate      FieldRule `json:"start_date"`

	TransactionTerms             []string            `json:"transaction_terms" validate:"required,min=1"`
	TransactionTermsStop         []string            `json:"transaction_terms_stop,omitempty"`
	TransactionFormats           []TransactionFormat `json:"transaction_formats" validate:"required,min=1"`
	TransactionAlignmentTol      float64             `json:"transaction_alignment_tol" validate:"gte=0"`
	TransactionNewLineTol        float64             `json:"transaction_new_line_tol" validate:"gte=0"`
	TransactionStartDateRequired bool                `json:"transaction_start_date_required,omitempty"`

	DateColumn        ColumnRule `json:"date_column"`
	DescriptionColumn ColumnRule `json:"description_column"`
	AmountColumn      ColumnRule `json:"amount_column"`
	AmountInvert      ColumnRule `json:"amount_invert_column"`
	BalanceColumn     ColumnRule `json:"balance_column,omitempty"`

	TransactionDateFormats        []string `json:"transaction_date_formats"`
	TransactionAmountFormats      []string `json:"transaction_amount_formats"`
	TransactionBalanceFormats     []string `json:"transaction_balance_formats,omitempty"`
	TransactionAmountInvert       bool     `json:"transaction_amount_invert,omitempty"`
	TransactionBalanceInvert      bool     `json:"transaction_balance_invert,omitempty"`
	TransactionDescriptionExclude []string `json:"transaction_description_exclude,omitempty"`
}

var keyPattern = regexp.MustCompile(`^[a-z]{2}__[a-z0-9]+__[a-z0-9_]+__[0-9]+$`)

var accountTypes = map[string]bool{
	"Checking": true, "Savings": true, "Credit Card": true, "Loan": true,
	"Mortgage": true, "Investment": true, "Mixed": true, "Other": true,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("statement_key", func(fl validator.FieldLevel) bool {
		return keyPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("account_type", func(fl validator.FieldLevel) bool {
		return accountTypes[fl.Field().String()]
	})
	return v
}

// Validate checks struct-tag constraints (key shape, account type
// enum, required slices, non-negative tolerances) via
// go-playground/validator, then runs the cross-registry checks
// validator tags can't express: every referenced format label must be
// registered in internal/format, every alignment value must be legal,
// and every transaction_formats slot name must be one of the four
// known slots.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config %q: %w", c.Key, err)
	}
	return c.validateCrossReferences()
}

func (c *Config) validateCrossReferences() error {
	if !c.AccountNumber.Align.valid() {
		return fmt.Errorf("config %q: account_number: invalid align %q", c.Key, c.AccountNumber.Align)
	}
	for _, field := range []struct {
		name string
		rule FieldRule
	}{
		{"opening_balance", c.OpeningBalance},
		{"closing_balance", c.ClosingBalance},
		{"start_date", c.StartDate},
	} {
		if !field.rule.Align.valid() {
			return fmt.Errorf("config %q: %s: invalid align %q", c.Key, field.name, field.rule.Align)
		}
		for _, label := range field.rule.Formats {
			if field.name == "start_date" {
				if _, ok := format.DateFormats[label]; !ok {
					return fmt.Errorf("config %q: %s: unregistered date format %q", c.Key, field.name, label)
				}
			} else if _, ok := format.AmountFormats[label]; !ok {
				return fmt.Errorf("config %q: %s: unregistered amount format %q", c.Key, field.name, label)
			}
		}
	}

	for _, col := range []struct {
		name  string
		align Alignment
	}{
		{"date_column", c.DateColumn.Align},
		{"description_column", c.DescriptionColumn.Align},
		{"amount_column", c.AmountColumn.Align},
		{"amount_invert_column", c.AmountInvert.Align},
		{"balance_column", c.BalanceColumn.Align},
	} {
		if col.align != "" && !col.align.valid() {
			return fmt.Errorf("config %q: %s: invalid align %q", c.Key, col.name, col.align)
		}
	}

	for _, label := range c.TransactionDateFormats {
		if _, ok := format.DateFormats[label]; !ok {
			return fmt.Errorf("config %q: transaction_date_formats: unregistered format %q", c.Key, label)
		}
	}
	for _, label := range c.TransactionAmountFormats {
		if _, ok := format.AmountFormats[label]; !ok {
			return fmt.Errorf("config %q: transaction_amount_formats: unregistered format %q", c.Key, label)
		}
	}
	for _, label := range c.TransactionBalanceFormats {
		if _, ok := format.AmountFormats[label]; !ok {
			return fmt.Errorf("config %q: transaction_balance_formats: unregistered format %q", c.Key, label)
		}
	}
	if len(c.TransactionBalanceFormats) == 0 && c.BalanceColumn.Align != "" {
		// Config declares a balance column with no way to parse it;
		// tolerated per spec only when no balance header is configured
		// at all, so an explicitly configured column needs formats.
		return fmt.Errorf("config %q: balance_column configured without transaction_balance_formats", c.Key)
	}

	for i, tf := range c.TransactionFormats {
		if len(tf) == 0 {
			return fmt.Errorf("config %q: transaction_formats[%d]: empty slot sequence", c.Key, i)
		}
		for _, slot := range tf {
			if !validSlots[slot] {
				return fmt.Errorf("config %q: transaction_formats[%d]: unknown slot %q", c.Key, i, slot)
			}
		}
	}

	for _, pattern := range c.AccountNumberPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("config %q: account_number_patterns: invalid regex %q: %w", c.Key, pattern, err)
		}
	}
	for _, pattern := range c.TransactionDescriptionExclude {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("config %q: transaction_description_exclude: invalid regex %q: %w", c.Key, pattern, err)
		}
	}

	return nil
}
