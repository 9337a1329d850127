// Package statement defines the extraction result types (StatementData,
// Transaction, structured Error) shared by the preamble extractor (C6),
// transaction table extractor (C7), post-processor (C8), and the
// driver in internal/driver.
package statement

import (
	"fmt"

	"github.com/insightdelivered/transtractor/internal/format"
	"github.com/insightdelivered/transtractor/internal/money"
)

// Kind names one of the structured error categories from spec §7.
type Kind string

const (
	KindInvalidConfig      Kind = "InvalidConfig"
	KindNoApplicableConfig Kind = "NoApplicableConfig"
	KindNoTransactionTable Kind = "NoTransactionTable"
	KindMissingAnchor      Kind = "MissingAnchor"
	KindUnparseableValue   Kind = "UnparseableValue"
	KindMissingHeader      Kind = "MissingHeader"
	KindRecordParseFailure Kind = "RecordParseFailure"
	KindArithmeticMismatch Kind = "ArithmeticMismatch"
	KindAmbiguousAlignment Kind = "AmbiguousAlignment"
)

// Span identifies the contiguous range of fragments (indices into the
// normalized stream) a record or error pertains to.
type Span struct {
	Start int
	End   int
}

// Error is a structured, non-fatal-within-attempt diagnostic produced
// by any extraction stage.
type Error struct {
	Kind    Kind
	Message string
	Field   string // populated for MissingAnchor/UnparseableValue/MissingHeader
	Span    Span   // populated for RecordParseFailure/AmbiguousAlignment, zero value otherwise
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, field, message string, span Span) *Error {
	return &Error{Kind: kind, Field: field, Message: message, Span: span}
}

// MissingAnchor reports that a preamble field's term list was never
// found in the fragment stream.
func MissingAnchor(field string) *Error {
	return newError(KindMissingAnchor, field, "anchor term not found", Span{})
}

// UnparseableValue reports that every configured format failed to
// parse a candidate value for field.
func UnparseableValue(field string, formats []string) *Error {
	return newError(KindUnparseableValue, field, fmt.Sprintf("no configured format matched (tried %v)", formats), Span{})
}

// NoTransactionTable reports that the transaction_terms anchor was
// never found, so no table could be located at all.
func NoTransactionTable() *Error {
	return newError(KindNoTransactionTable, "", "transaction table anchor not found", Span{})
}

// InvalidConfig reports that a config failed its own validation (key
// shape, cross-registry checks) before it could even be tried.
func InvalidConfig(reason string) *Error {
	return newError(KindInvalidConfig, "", reason, Span{})
}

// NoApplicableConfig reports that the registry has no config whose
// account_terms are all present in the fragment stream, so no
// candidate could be tried at all.
func NoApplicableConfig() *Error {
	return newError(KindNoApplicableConfig, "", "no registered config's account terms matched this statement", Span{})
}

// MissingHeader reports that a transaction column's header anchor was
// not found.
func MissingHeader(column string) *Error {
	return newError(KindMissingHeader, column, "column header not found", Span{})
}

// RecordParseFailure reports that a transaction record could not be
// assembled or validated.
func RecordParseFailure(span Span, reason string) *Error {
	return newError(KindRecordParseFailure, "", reason, span)
}

// ArithmeticMismatch reports a balance or date-ordering violation.
func ArithmeticMismatch(reason string) *Error {
	return newError(KindArithmeticMismatch, "", reason, Span{})
}

// AmbiguousAlignment reports that a fragment aligned with multiple
// transaction columns within tolerance at exactly the same offset.
func AmbiguousAlignment(span Span) *Error {
	return newError(KindAmbiguousAlignment, "", "fragment aligned with multiple columns", span)
}

// Transaction is one assembled, post-processed transaction record.
type Transaction struct {
	Date        format.StatementDate
	Description string
	Amount      money.Money
	Balance     money.Money
	HasBalance  bool
	Span        Span
}

// StatementData is the result of running C6->C7->C8 for one candidate
// config against one fragment stream.
type StatementData struct {
	ConfigKey string

	AccountNumber    string
	HasAccountNumber bool

	StartDate    format.StatementDate
	HasStartDate bool

	OpeningBalance    money.Money
	HasOpeningBalance bool

	ClosingBalance    money.Money
	HasClosingBalance bool

	Transactions []Transaction
	Errors       []*Error
}

// ErrorFree reports whether d has no structured errors. Arithmetic
// invariants are checked separately in internal/postprocess and, when
// violated, are recorded as ArithmeticMismatch errors in Errors — so
// this alone is equivalent to spec §3's "error-free" definition.
func (d *StatementData) ErrorFree() bool {
	return len(d.Errors) == 0
}

// AddError appends err to d's error list.
func (d *StatementData) AddError(err *Error) {
	d.Errors = append(d.Errors, err)
}
