// Package preamble implements C6: locating the account number,
// opening/closing balances, and statement start date ahead of the
// transaction table.
package preamble

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/transtractor/internal/config"
	"github.com/insightdelivered/transtractor/internal/format"
	"github.com/insightdelivered/transtractor/internal/fragment"
	"github.com/insightdelivered/transtractor/internal/money"
	"github.com/insightdelivered/transtractor/internal/statement"
)

// sameLineNeighborhood returns the text of f concatenated with every
// other fragment on the same visual line (within yBinTol of f's Y1),
// in reading order, matching spec §4.4's "concatenation of each
// fragment's text and its same-line neighborhood" substring-match
// rule.
func sameLineNeighborhood(s fragment.Stream, i int, yBinTol float64) string {
	f := s.At(i)
	var b strings.Builder
	for j := 0; j < s.Len(); j++ {
		other := s.At(j)
		if fragment.SameLine(f, other, yBinTol) {
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			b.WriteString(other.Text)
		}
	}
	return b.String()
}

const lineTol = 2.0

// findAnchor scans the stream in order for the first fragment whose
// text contains any of terms, returning its index or -1.
func findAnchor(s fragment.Stream, terms []string) int {
	for i := 0; i < s.Len(); i++ {
		text := s.At(i).Text
		for _, term := range terms {
			if strings.Contains(text, term) {
				return i
			}
		}
	}
	return -1
}

func alignmentOK(anchor, candidate fragment.Fragment, align config.Alignment, tol float64) bool {
	switch align {
	case config.AlignNone:
		return true
	case config.AlignX1:
		return fragment.Aligned(anchor, candidate, fragment.X1, tol)
	case config.AlignX2:
		return fragment.Aligned(anchor, candidate, fragment.X2, tol)
	case config.AlignY1:
		return fragment.Aligned(anchor, candidate, fragment.Y1, tol)
	case config.AlignY2:
		return fragment.Aligned(anchor, candidate, fragment.Y2, tol)
	default:
		return false
	}
}

// ExtractAccountNumber locates and returns the account number, per
// spec §4.5: candidates must additionally match one of
// account_number_patterns (applied to the fragment's same-line
// neighborhood, since the number may be split across fragments).
func ExtractAccountNumber(s fragment.Stream, rule config.FieldRule, patterns []string) (string, *statement.Error) {
	anchorIdx := findAnchor(s, rule.Terms)
	if anchorIdx == -1 {
		return "", statement.MissingAnchor("account_number")
	}
	anchor := s.At(anchorIdx)

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}

	for i := anchorIdx; i < s.Len(); i++ {
		candidate := s.At(i)
		if !alignmentOK(anchor, candidate, rule.Align, rule.Tolerance) {
			continue
		}
		neighborhood := sameLineNeighborhood(s, i, lineTol)
		for _, re := range compiled {
			if m := re.FindString(neighborhood); m != "" {
				return m, nil
			}
			if m := re.FindString(candidate.Text); m != "" {
				return m, nil
			}
		}
		if len(compiled) == 0 && i != anchorIdx {
			return strings.TrimSpace(candidate.Text), nil
		}
	}
	return "", statement.UnparseableValue("account_number", patterns)
}

// ExtractBalance locates and returns a signed Money value (opening or
// closing balance), applying rule.Invert per spec §4.5 step 3.
func ExtractBalance(s fragment.Stream, rule config.FieldRule, fieldName string) (money.Money, *statement.Error) {
	anchorIdx := findAnchor(s, rule.Terms)
	if anchorIdx == -1 {
		return money.Money{}, statement.MissingAnchor(fieldName)
	}
	anchor := s.At(anchorIdx)

	for i := anchorIdx; i < s.Len(); i++ {
		candidate := s.At(i)
		if i != anchorIdx && !alignmentOK(anchor, candidate, rule.Align, rule.Tolerance) {
			continue
		}
		text := candidate.Text
		if i == anchorIdx {
			text = strings.TrimSpace(strings.Join(stripTerms(text, rule.Terms), " "))
			if text == "" {
				continue
			}
		}
		if m, _, ok := format.ParseAmount(text, rule.Formats); ok {
			if rule.Invert {
				m = m.Neg()
			}
			return m, nil
		}
	}
	return money.Money{}, statement.UnparseableValue(fieldName, rule.Formats)
}

// ExtractStartDate locates and returns the statement start date.
func ExtractStartDate(s fragment.Stream, rule config.FieldRule) (format.StatementDate, *statement.Error) {
	anchorIdx := findAnchor(s, rule.Terms)
	if anchorIdx == -1 {
		return format.StatementDate{}, statement.MissingAnchor("start_date")
	}
	anchor := s.At(anchorIdx)

	for i := anchorIdx; i < s.Len(); i++ {
		candidate := s.At(i)
		if i != anchorIdx && !alignmentOK(anchor, candidate, rule.Align, rule.Tolerance) {
			continue
		}
		text := candidate.Text
		if i == anchorIdx {
			text = strings.TrimSpace(strings.Join(stripTerms(text, rule.Terms), " "))
			if text == "" {
				continue
			}
		}
		if d, _, ok := format.ParseDate(text, rule.Formats, 0); ok {
			return d, nil
		}
	}
	return format.StatementDate{}, statement.UnparseableValue("start_date", rule.Formats)
}

// stripTerms removes every occurrence of each term from text, used to
// pull a trailing value off an anchor fragment whose text is
// "Label: value" rather than the value standing alone.
func stripTerms(text string, terms []string) []string {
	cleaned := text
	for _, term := range terms {
		cleaned = strings.ReplaceAll(cleaned, term, "")
	}
	cleaned = strings.TrimLeft(cleaned, ": \t")
	return strings.Fields(cleaned)
}
