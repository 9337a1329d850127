// Package driver runs the full C6->C7->C8 pipeline against every
// registry-applicable config for a fragment stream, picking the first
// error-free result. Grounded on original_source/src/parsers/parser.rs's
// Parser::parse_text_items: identify candidate configs, run each
// independently, and surface the first error-free StatementData (or
// every attempt's failures if none qualifies).
package driver

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/insightdelivered/transtractor/internal/config"
	"github.com/insightdelivered/transtractor/internal/fragment"
	"github.com/insightdelivered/transtractor/internal/layout"
	"github.com/insightdelivered/transtractor/internal/postprocess"
	"github.com/insightdelivered/transtractor/internal/preamble"
	"github.com/insightdelivered/transtractor/internal/registry"
	"github.com/insightdelivered/transtractor/internal/statement"
	"github.com/insightdelivered/transtractor/internal/table"
)

// Attempt is the result of running the full pipeline for one
// candidate config.
type Attempt struct {
	ConfigKey string
	Data      *statement.StatementData
}

// Run tries every config the registry's Applicable considers a match
// for s, in registration order, and returns the first error-free
// StatementData. If none qualifies, it returns every attempt made
// alongside a combined error (via go.uber.org/multierr) summarizing
// each attempt's failures, so a caller can inspect why every
// candidate was rejected.
//
// Run assumes s is already the one stream every candidate should read.
// Callers whose candidate configs disagree on ApplyYPatch (so each
// candidate needs its own re-normalized copy of the raw pages) should
// use RunFromPages instead.
func Run(s fragment.Stream, reg *registry.Registry) (*statement.StatementData, []Attempt, error) {
	keys := reg.Applicable(s)
	if len(keys) == 0 {
		return nil, nil, statement.NoApplicableConfig()
	}
	return run(keys, reg, func(*config.Config) fragment.Stream { return s })
}

// RunFromPages mirrors Run, but takes raw per-page fragments instead of
// a single pre-normalized stream. Grounded on
// original_source/src/parsers/parser.rs's Parser::parse_text_items:
// statement typing runs once against a base normalization (opts as
// given), but each candidate config that sets ApplyYPatch gets its own
// fresh re-normalization with that candidate's own
// ApplyYPatch/ApplyYPatchLineHeight substituted in, rather than sharing
// the base stream's y-patching (or lack of it).
func RunFromPages(pages []layout.Page, opts layout.Options, reg *registry.Registry) (*statement.StatementData, []Attempt, error) {
	base := layout.Normalize(pages, opts)

	keys := reg.Applicable(base)
	if len(keys) == 0 {
		return nil, nil, statement.NoApplicableConfig()
	}

	streamFor := func(cfg *config.Config) fragment.Stream {
		if !cfg.ApplyYPatch {
			return base
		}
		patched := opts
		patched.ApplyYPatch = true
		patched.YPatchLineHeight = cfg.ApplyYPatchLineHeight
		return layout.Normalize(pages, patched)
	}
	return run(keys, reg, streamFor)
}

// run shares the attempt loop between Run and RunFromPages: each
// candidate key gets its own stream (via streamFor, which may return
// the same shared stream or re-derive one per config) and is attempted
// independently, stopping at the first error-free result.
func run(keys []string, reg *registry.Registry, streamFor func(*config.Config) fragment.Stream) (*statement.StatementData, []Attempt, error) {
	attempts := make([]Attempt, 0, len(keys))
	var combined error
	for _, key := range keys {
		cfg := reg.Get(key)
		data := runOne(streamFor(cfg), cfg)
		attempts = append(attempts, Attempt{ConfigKey: key, Data: data})
		if data.ErrorFree() {
			return data, attempts, nil
		}
		combined = multierr.Append(combined, fmt.Errorf("config %q: %d error(s), first: %s", key, len(data.Errors), data.Errors[0]))
	}
	return nil, attempts, combined
}

// runOne executes C6 (preamble), C7 (transaction table), and C8
// (post-processing) against s for a single candidate config,
// collecting every non-fatal error encountered along the way rather
// than aborting on the first one.
func runOne(s fragment.Stream, cfg *config.Config) *statement.StatementData {
	data := &statement.StatementData{ConfigKey: cfg.Key}

	if acct, err := preamble.ExtractAccountNumber(s, cfg.AccountNumber, cfg.AccountNumberPatterns); err != nil {
		data.AddError(err)
	} else {
		data.AccountNumber = acct
		data.HasAccountNumber = true
	}

	if bal, err := preamble.ExtractBalance(s, cfg.OpeningBalance, "opening_balance"); err != nil {
		data.AddError(err)
	} else {
		data.OpeningBalance = bal
		data.HasOpeningBalance = true
	}

	if bal, err := preamble.ExtractBalance(s, cfg.ClosingBalance, "closing_balance"); err != nil {
		data.AddError(err)
	} else {
		data.ClosingBalance = bal
		data.HasClosingBalance = true
	}

	if d, err := preamble.ExtractStartDate(s, cfg.StartDate); err != nil {
		data.AddError(err)
	} else {
		data.StartDate = d
		data.HasStartDate = true
	}

	startYearHint := 0
	if data.HasStartDate {
		startYearHint = data.StartDate.Year
	}
	txs, errs := table.Extract(s, cfg, startYearHint)
	data.Transactions = txs
	for _, e := range errs {
		data.AddError(e)
	}

	postprocess.Run(data)

	return data
}

// Attempts splits errors combined with multierr by Run back into one
// error per failed candidate config (each naming the config key, its
// error count and its first error). The full per-attempt
// StatementData is in the []Attempt that Run returns, not here.
func Attempts(errs ...error) []error {
	var out []error
	for _, err := range errs {
		out = append(out, multierr.Errors(err)...)
	}
	return out
}
