// Package table implements C7: locating the transaction table and
// assembling its rows from classified fragments via the
// SEEK_FIELD_START / IN_RECORD state machine driven by
// config.TransactionFormats.
package table

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/transtractor/internal/config"
	"github.com/insightdelivered/transtractor/internal/format"
	"github.com/insightdelivered/transtractor/internal/fragment"
	"github.com/insightdelivered/transtractor/internal/statement"
)

// column names the five possible column classifications a fragment
// can take. amountInvert shares the "amount" record slot but carries
// an extra negation.
type column string

const (
	colDate         column = "date"
	colDescription  column = "description"
	colAmount       column = "amount"
	colAmountInvert column = "amount_invert"
	colBalance      column = "balance"
)

// columnPriority is the order in which classify checks the columns.
// It does not break ties: a fragment at exactly the same smallest
// offset from two columns is reported as ambiguous.
var columnPriority = []column{colDate, colDescription, colAmount, colAmountInvert, colBalance}

func (c column) slot() string {
	if c == colAmountInvert {
		return "amount"
	}
	return string(c)
}

// anchors holds the located header-row fragment for each configured
// column, paired with its alignment rule.
type anchors struct {
	byColumn map[column]fragment.Fragment
	align    map[column]config.Alignment
}

func alignCoord(f fragment.Fragment, align config.Alignment) (float64, bool) {
	switch align {
	case config.AlignX1:
		return f.X1, true
	case config.AlignX2:
		return f.X2, true
	default:
		return 0, false
	}
}

// findHeaders locates the first fragment in [start, stop) matching
// each configured column's header terms.
func findHeaders(s fragment.Stream, start, stop int, cfg *config.Config) (anchors, int) {
	a := anchors{byColumn: make(map[column]fragment.Fragment), align: make(map[column]config.Alignment)}
	rules := map[column]config.ColumnRule{
		colDate:        cfg.DateColumn,
		colDescription: cfg.DescriptionColumn,
		colAmount:      cfg.AmountColumn,
	}
	if len(cfg.AmountInvert.HeaderTerms) > 0 {
		rules[colAmountInvert] = cfg.AmountInvert
	}
	if len(cfg.BalanceColumn.HeaderTerms) > 0 {
		rules[colBalance] = cfg.BalanceColumn
	}

	lastIdx := start
	for col, rule := range rules {
		for i := start; i < stop; i++ {
			text := s.At(i).Text
			found := false
			for _, term := range rule.HeaderTerms {
				if strings.Contains(text, term) {
					found = true
					break
				}
			}
			if found {
				a.byColumn[col] = s.At(i)
				a.align[col] = rule.Align
				if i > lastIdx {
					lastIdx = i
				}
				break
			}
		}
	}
	return a, lastIdx
}

// classify determines which column (if any) fragment f belongs to,
// returning the column, whether the match was ambiguous (tied with
// another column at the same offset), and whether any match was
// found at all.
func classify(f fragment.Fragment, a anchors, tol float64) (column, bool, bool) {
	type candidate struct {
		col    column
		offset float64
	}
	var matches []candidate

	for _, col := range columnPriority {
		anchor, ok := a.byColumn[col]
		if !ok {
			continue
		}
		align := a.align[col]
		anchorCoord, ok := alignCoord(anchor, align)
		if !ok {
			continue
		}
		var candidateCoord float64
		switch align {
		case config.AlignX1:
			candidateCoord = f.X1
		case config.AlignX2:
			candidateCoord = f.X2
		}
		offset := candidateCoord - anchorCoord
		if offset < 0 {
			offset = -offset
		}
		if offset <= tol {
			matches = append(matches, candidate{col: col, offset: offset})
		}
	}

	if len(matches) == 0 {
		return "", false, false
	}
	best := matches[0]
	ambiguous := false
	for _, m := range matches[1:] {
		if m.offset < best.offset {
			best = m
			ambiguous = false
		} else if m.offset == best.offset {
			ambiguous = true
		}
	}
	return best.col, ambiguous, true
}

// slotAccum accumulates the fragments classified into one record
// slot as the state machine runs.
type slotAccum struct {
	texts        []string
	lastFragment fragment.Fragment
	invert       bool
	set          bool
}

func (sa *slotAccum) append(s fragment.Stream, f fragment.Fragment, newLineTol float64, isDescription bool) {
	if sa.set && isDescription {
		gap := f.Y1 - sa.lastFragment.Y1
		if gap < 0 {
			gap = -gap
		}
		if gap > newLineTol {
			sa.texts = append(sa.texts, "\n"+f.Text)
			sa.lastFragment = f
			return
		}
	}
	sa.texts = append(sa.texts, f.Text)
	sa.lastFragment = f
	sa.set = true
}

func (sa *slotAccum) text() string {
	return strings.Join(sa.texts, " ")
}

// record is one in-progress or completed transaction row.
type record struct {
	slots map[string]*slotAccum
	start int
	end   int
}

func newRecord(start int) *record {
	return &record{slots: make(map[string]*slotAccum), start: start, end: start}
}

// formatHasSlot reports whether slot appears anywhere in tf.
func formatHasSlot(tf config.TransactionFormat, slot string) bool {
	for _, s := range tf {
		if s == slot {
			return true
		}
	}
	return false
}

func nextExpectedSlot(tf config.TransactionFormat, seen []string) (string, bool) {
	if len(seen) >= len(tf) {
		return "", false
	}
	return tf[len(seen)], true
}

// Extract locates the transaction table within s and assembles its
// records per cfg.TransactionFormats. It returns the assembled
// transactions plus any non-fatal errors (MissingHeader,
// RecordParseFailure, AmbiguousAlignment) encountered along the way.
// startYearHint seeds the year for the first year-absent date
// (format1/format6) — normally the statement's own start-date year,
// or 0 when no start date was extracted — since there is no preceding
// transaction date to carry forward yet.
func Extract(s fragment.Stream, cfg *config.Config, startYearHint int) ([]statement.Transaction, []*statement.Error) {
	var errs []*statement.Error

	anchorIdx := -1
	for i := 0; i < s.Len(); i++ {
		text := s.At(i).Text
		for _, term := range cfg.TransactionTerms {
			if strings.Contains(text, term) {
				anchorIdx = i
				break
			}
		}
		if anchorIdx != -1 {
			break
		}
	}
	if anchorIdx == -1 {
		return nil, []*statement.Error{statement.NoTransactionTable()}
	}

	start := anchorIdx + 1
	stop := s.Len()
	for i := start; i < s.Len(); i++ {
		text := s.At(i).Text
		matched := false
		for _, term := range cfg.TransactionTermsStop {
			if strings.Contains(text, term) {
				matched = true
				break
			}
		}
		if matched {
			stop = i
			break
		}
	}

	a, headerEnd := findHeaders(s, start, stop, cfg)
	if _, ok := a.byColumn[colDate]; !ok {
		errs = append(errs, statement.MissingHeader("date"))
		return nil, errs
	}
	if _, ok := a.byColumn[colDescription]; !ok {
		errs = append(errs, statement.MissingHeader("description"))
		return nil, errs
	}
	if _, ok := a.byColumn[colAmount]; !ok {
		errs = append(errs, statement.MissingHeader("amount"))
		return nil, errs
	}
	if _, ok := a.byColumn[colBalance]; !ok && len(cfg.TransactionBalanceFormats) > 0 {
		errs = append(errs, statement.MissingHeader("balance"))
		return nil, errs
	}

	excludeRes := make([]*regexp.Regexp, 0, len(cfg.TransactionDescriptionExclude))
	for _, p := range cfg.TransactionDescriptionExclude {
		if re, err := regexp.Compile(p); err == nil {
			excludeRes = append(excludeRes, re)
		}
	}

	var transactions []statement.Transaction
	var lastDate *format.StatementDate

	var cur *record
	var candidateFormats []config.TransactionFormat
	var seenSlots []string

	finalize := func() {
		if cur == nil {
			return
		}
		tx, err := validateRecord(cur, candidateFormats, seenSlots, cfg, excludeRes, lastDate, startYearHint)
		if err != nil {
			errs = append(errs, err)
		} else {
			if tx.Date.Year != 0 || tx.Date.Month != 0 {
				d := tx.Date
				lastDate = &d
			}
			transactions = append(transactions, tx)
		}
		cur = nil
		candidateFormats = nil
		seenSlots = nil
	}

	for i := headerEnd + 1; i < stop; i++ {
		f := s.At(i)
		col, ambiguous, matched := classify(f, a, cfg.TransactionAlignmentTol)
		if ambiguous {
			errs = append(errs, statement.AmbiguousAlignment(statement.Span{Start: i, End: i}))
			continue
		}
		if !matched {
			continue
		}
		slot := col.slot()
		isFirstSlotOfAnyFormat := false
		for _, tf := range cfg.TransactionFormats {
			if len(tf) > 0 && tf[0] == slot {
				isFirstSlotOfAnyFormat = true
				break
			}
		}

		if cur == nil {
			if !isFirstSlotOfAnyFormat {
				continue
			}
			cur = newRecord(i)
			candidateFormats = filterByFirstSlot(cfg.TransactionFormats, slot)
			seenSlots = []string{slot}
			cur.slots[slot] = &slotAccum{}
			cur.slots[slot].append(s, f, cfg.TransactionNewLineTol, slot == "description")
			if col == colAmountInvert {
				cur.slots[slot].invert = true
			}
			cur.end = i
			continue
		}

		// New visual line starting the first slot of any format
		// terminates the current record.
		onNewLine := f.Y1-cur.end2Y(s) > cfg.TransactionNewLineTol || f.Y1-cur.end2Y(s) < -cfg.TransactionNewLineTol
		if isFirstSlotOfAnyFormat && onNewLine {
			finalize()
			cur = newRecord(i)
			candidateFormats = filterByFirstSlot(cfg.TransactionFormats, slot)
			seenSlots = []string{slot}
			cur.slots[slot] = &slotAccum{}
			cur.slots[slot].append(s, f, cfg.TransactionNewLineTol, slot == "description")
			if col == colAmountInvert {
				cur.slots[slot].invert = true
			}
			cur.end = i
			continue
		}

		nextSlot, hasNext := nextExpectedSlotAmongCandidates(candidateFormats, seenSlots)
		switch {
		case hasNext && slot == nextSlot:
			seenSlots = append(seenSlots, slot)
			candidateFormats = filterByPrefix(candidateFormats, seenSlots)
			sa, ok := cur.slots[slot]
			if !ok {
				sa = &slotAccum{}
				cur.slots[slot] = sa
			}
			sa.append(s, f, cfg.TransactionNewLineTol, slot == "description")
			if col == colAmountInvert {
				sa.invert = true
			}
			cur.end = i
		case len(seenSlots) > 0 && slot == seenSlots[len(seenSlots)-1]:
			sa := cur.slots[slot]
			sa.append(s, f, cfg.TransactionNewLineTol, slot == "description")
			cur.end = i
		default:
			// Doesn't extend or advance the record; ignore.
		}
	}
	finalize()

	return transactions, errs
}

func (r *record) end2Y(s fragment.Stream) float64 {
	return s.At(r.end).Y1
}

func filterByFirstSlot(formats []config.TransactionFormat, slot string) []config.TransactionFormat {
	var out []config.TransactionFormat
	for _, tf := range formats {
		if len(tf) > 0 && tf[0] == slot {
			out = append(out, tf)
		}
	}
	return out
}

func filterByPrefix(formats []config.TransactionFormat, seen []string) []config.TransactionFormat {
	var out []config.TransactionFormat
	for _, tf := range formats {
		if len(tf) < len(seen) {
			continue
		}
		ok := true
		for i, s := range seen {
			if tf[i] != s {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, tf)
		}
	}
	return out
}

func nextExpectedSlotAmongCandidates(formats []config.TransactionFormat, seen []string) (string, bool) {
	for _, tf := range formats {
		if slot, ok := nextExpectedSlot(tf, seen); ok {
			return slot, true
		}
	}
	return "", false
}

// validateRecord finalizes one candidate record: picks the
// surviving transaction_format, parses every slot under its
// configured format list, applies sign inversion and description
// cleanup, and returns the assembled Transaction or a
// RecordParseFailure.
func validateRecord(r *record, candidates []config.TransactionFormat, seen []string, cfg *config.Config, excludeRes []*regexp.Regexp, lastDate *format.StatementDate, startYearHint int) (statement.Transaction, *statement.Error) {
	if len(candidates) == 0 {
		return statement.Transaction{}, statement.RecordParseFailure(statement.Span{Start: r.start, End: r.end}, "no transaction_formats entry matched the observed slot sequence")
	}
	tf := candidates[0]

	if !formatHasSlot(tf, "date") {
		if !cfg.TransactionStartDateRequired || lastDate == nil {
			return statement.Transaction{}, statement.RecordParseFailure(statement.Span{Start: r.start, End: r.end}, "record format omits date and no prior date to carry forward")
		}
	}

	var tx statement.Transaction
	tx.Span = statement.Span{Start: r.start, End: r.end}

	if sa, ok := r.slots["date"]; ok {
		yearHint := startYearHint
		if lastDate != nil {
			yearHint = lastDate.Year
		}
		d, _, ok := format.ParseDate(sa.text(), cfg.TransactionDateFormats, yearHint)
		if !ok {
			return statement.Transaction{}, statement.RecordParseFailure(statement.Span{Start: r.start, End: r.end}, "unparseable date")
		}
		tx.Date = d
	} else if lastDate != nil {
		tx.Date = *lastDate
	}

	sa, ok := r.slots["description"]
	if !ok {
		return statement.Transaction{}, statement.RecordParseFailure(statement.Span{Start: r.start, End: r.end}, "missing description slot")
	}
	desc := sa.text()
	for _, re := range excludeRes {
		desc = re.ReplaceAllString(desc, "")
	}
	tx.Description = desc

	sa, ok = r.slots["amount"]
	if !ok {
		return statement.Transaction{}, statement.RecordParseFailure(statement.Span{Start: r.start, End: r.end}, "missing amount slot")
	}
	amt, _, ok := format.ParseAmount(sa.text(), cfg.TransactionAmountFormats)
	if !ok {
		return statement.Transaction{}, statement.RecordParseFailure(statement.Span{Start: r.start, End: r.end}, "unparseable amount")
	}
	if sa.invert {
		amt = amt.Neg()
	}
	if cfg.TransactionAmountInvert {
		amt = amt.Neg()
	}
	tx.Amount = amt

	if sa, ok := r.slots["balance"]; ok && len(cfg.TransactionBalanceFormats) > 0 {
		bal, _, ok := format.ParseAmount(sa.text(), cfg.TransactionBalanceFormats)
		if !ok {
			return statement.Transaction{}, statement.RecordParseFailure(statement.Span{Start: r.start, End: r.end}, "unparseable balance")
		}
		if cfg.TransactionBalanceInvert {
			bal = bal.Neg()
		}
		tx.Balance = bal
		tx.HasBalance = true
	}

	return tx, nil
}
