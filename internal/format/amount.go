// Package format holds the registries of amount and date recognizers
// (C3): small, independently labelled parsers tried in a fixed order
// against a candidate string, each yielding a signed value or
// declining to match.
package format

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/transtractor/internal/money"
)

// AmountFormat recognizes one lexical shape of signed monetary amount.
type AmountFormat interface {
	// Label is the registered name, e.g. "format1".
	Label() string
	// NumTerms is the number of whitespace-delimited terms the format
	// consumes.
	NumTerms() int
	// Parse attempts to interpret s as this format's shape, returning
	// ok=false if it doesn't match.
	Parse(s string) (money.Money, bool)
}

// The integer part is either comma-grouped ("1,234") or a plain digit
// run ("1234"); thousand separators are optional.
var amountFormat1Re = regexp.MustCompile(`^-?(\d{1,3}(,\d{3})*|\d+)\.\d{2}-?$`)
var amountFormat2Re = regexp.MustCompile(`^-?\$(\d{1,3}(,\d{3})*|\d+)\.\d{2}-?$`)
var amountFormat3Re = regexp.MustCompile(`^-?\$(\d{1,3}(,\d{3})*|\d+)\.\d{2} (cr|dr)$`)
var amountFormat4Re = regexp.MustCompile(`^-?(\d{1,3}(,\d{3})*|\d+)\.\d{2} (cr|dr)$`)

// amountFormat1 parses "1,234.56", "-1,234.56", "1,234.56-".
type amountFormat1 struct{}

func (amountFormat1) Label() string    { return "format1" }
func (amountFormat1) NumTerms() int    { return 1 }
func (amountFormat1) Parse(s string) (money.Money, bool) {
	if !amountFormat1Re.MatchString(s) {
		return money.Money{}, false
	}
	return parseSignedDecimal(s, "")
}

// amountFormat2 parses "$1,234.56", "-$1,234.56", "$1,234.56-".
type amountFormat2 struct{}

func (amountFormat2) Label() string { return "format2" }
func (amountFormat2) NumTerms() int  { return 1 }
func (amountFormat2) Parse(s string) (money.Money, bool) {
	if !amountFormat2Re.MatchString(s) {
		return money.Money{}, false
	}
	return parseSignedDecimal(s, "$")
}

// amountFormat3 parses "$1,234.56 CR", "-$1,234.56 CR", "$1,234.56 DR".
// DR negates, CR keeps, an explicit leading sign composes with the
// marker's sign.
type amountFormat3 struct{}

func (amountFormat3) Label() string { return "format3" }
func (amountFormat3) NumTerms() int { return 2 }
func (amountFormat3) Parse(s string) (money.Money, bool) {
	lower := strings.ToLower(s)
	if !amountFormat3Re.MatchString(lower) {
		return money.Money{}, false
	}
	return parseMarkedDecimal(lower, "$")
}

// amountFormat4 is format3 without the currency symbol: "1,234.56 CR",
// "-1,234.56 DR".
type amountFormat4 struct{}

func (amountFormat4) Label() string { return "format4" }
func (amountFormat4) NumTerms() int { return 2 }
func (amountFormat4) Parse(s string) (money.Money, bool) {
	lower := strings.ToLower(s)
	if !amountFormat4Re.MatchString(lower) {
		return money.Money{}, false
	}
	return parseMarkedDecimal(lower, "")
}

// amountFormat5 parses "nil" or "zero" (case-insensitive) as 0.00.
type amountFormat5 struct{}

func (amountFormat5) Label() string { return "format5" }
func (amountFormat5) NumTerms() int { return 1 }
func (amountFormat5) Parse(s string) (money.Money, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if trimmed == "nil" || trimmed == "zero" {
		return money.Zero, true
	}
	return money.Money{}, false
}

// parseSignedDecimal strips the given currency symbol, commas, and a
// leading or trailing minus sign, then parses the remainder.
func parseSignedDecimal(s, currency string) (money.Money, bool) {
	cleaned := strings.ReplaceAll(s, ",", "")
	if currency != "" {
		cleaned = strings.ReplaceAll(cleaned, currency, "")
	}
	negative := strings.Contains(cleaned, "-")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	m, err := money.Parse(cleaned)
	if err != nil {
		return money.Money{}, false
	}
	if negative {
		m = m.Neg()
	}
	return m, true
}

// parseMarkedDecimal handles the CR/DR-suffixed formats: the marker
// sets the base sign (DR negative, CR positive), a leading/trailing
// minus sign then flips that again.
func parseMarkedDecimal(s, currency string) (money.Money, bool) {
	negative := strings.Contains(s, "dr")
	cleaned := strings.ReplaceAll(s, "cr", "")
	cleaned = strings.ReplaceAll(cleaned, "dr", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if currency != "" {
		cleaned = strings.ReplaceAll(cleaned, currency, "")
	}
	if strings.Contains(cleaned, "-") {
		negative = !negative
		cleaned = strings.ReplaceAll(cleaned, "-", "")
	}
	cleaned = strings.TrimSpace(cleaned)
	m, err := money.Parse(cleaned)
	if err != nil {
		return money.Money{}, false
	}
	if negative {
		m = m.Neg()
	}
	return m, true
}

// AmountFormats is the complete registry of labelled amount
// recognizers, keyed by label; callers supply the trial order.
var AmountFormats = map[string]AmountFormat{
	"format1": amountFormat1{},
	"format2": amountFormat2{},
	"format3": amountFormat3{},
	"format4": amountFormat4{},
	"format5": amountFormat5{},
}

// AmountFormatLabels lists the registered amount format labels in
// label order.
func AmountFormatLabels() []string {
	return []string{"format1", "format2", "format3", "format4", "format5"}
}

// ParseAmount tries s against each of the given format labels in
// order, returning the first match.
func ParseAmount(s string, labels []string) (money.Money, string, bool) {
	for _, label := range labels {
		f, ok := AmountFormats[label]
		if !ok {
			continue
		}
		if m, ok := f.Parse(s); ok {
			return m, label, true
		}
	}
	return money.Money{}, "", false
}
