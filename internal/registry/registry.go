// Package registry stores validated Config records and identifies
// which of them apply to a given fragment stream (C5).
package registry

import (
	"fmt"
	"strings"

	"github.com/insightdelivered/transtractor/internal/config"
	"github.com/insightdelivered/transtractor/internal/fragment"
)

// entry pairs a registered config with its optional source text (the
// raw JSON it was loaded from, retained for diagnostics).
type entry struct {
	cfg    *config.Config
	source string
}

// Registry holds validated configs in registration order, keyed by
// Config.Key.
type Registry struct {
	keys    []string
	entries map[string]entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register validates cfg and adds it under cfg.Key, retaining
// sourceText (may be empty) for diagnostics. Registering a key that
// already exists replaces it in place, preserving its original
// registration-order position.
func (r *Registry) Register(cfg *config.Config, sourceText string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	if _, exists := r.entries[cfg.Key]; !exists {
		r.keys = append(r.keys, cfg.Key)
	}
	r.entries[cfg.Key] = entry{cfg: cfg, source: sourceText}
	return nil
}

// Keys returns every registered key in registration order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	_, ok := r.entries[key]
	return ok
}

// Get returns the config registered under key, or nil if absent.
func (r *Registry) Get(key string) *config.Config {
	e, ok := r.entries[key]
	if !ok {
		return nil
	}
	return e.cfg
}

// Source returns the retained source text for key, if any was given
// at registration.
func (r *Registry) Source(key string) (string, bool) {
	e, ok := r.entries[key]
	if !ok {
		return "", false
	}
	return e.source, e.source != ""
}

// token is one whitespace-split word of a fragment's text (the
// fragment's position is not kept), mirroring tokenise_items in the ported
// original: a multi-word fragment's text is split before matching so
// a term phrase can span what were originally separate fragments.
type token struct {
	text string
}

func tokenize(s fragment.Stream) []token {
	var out []token
	for i := 0; i < s.Len(); i++ {
		for _, word := range strings.Fields(s.At(i).Text) {
			out = append(out, token{text: word})
		}
	}
	return out
}

// Applicable returns, preserving registration order, every config
// whose full set of account_terms is present in the normalized
// fragment stream. A term may span what were originally multiple
// fragments: tokens are re-joined into sliding-window phrases up to
// the longest configured term's word count, and a term matches if any
// window starts with it (case-sensitive), per
// original_source/src/configs/typer.rs's StatementTyper.identify —
// a refinement of the substring-match floor in spec.md's minimum bar.
func (r *Registry) Applicable(s fragment.Stream) []string {
	tokens := tokenize(s)
	if len(tokens) == 0 {
		return nil
	}

	maxLookahead := 0
	termsByKey := make(map[string][]string, len(r.keys))
	for _, key := range r.keys {
		terms := r.entries[key].cfg.AccountTerms
		termsByKey[key] = terms
		for _, term := range terms {
			if n := len(strings.Fields(term)); n > maxLookahead {
				maxLookahead = n
			}
		}
	}
	if maxLookahead == 0 {
		maxLookahead = 1
	}

	foundTerms := make(map[string]bool)
	for i := 0; i < len(tokens); i++ {
		windowEnd := i + maxLookahead
		if windowEnd > len(tokens) {
			windowEnd = len(tokens)
		}
		var words []string
		for j := i; j < windowEnd; j++ {
			words = append(words, tokens[j].text)
		}
		phrase := strings.Join(words, " ")

		for key, terms := range termsByKey {
			for _, term := range terms {
				if foundTerms[key+"\x00"+term] {
					continue
				}
				if len(term) > len(phrase) {
					continue
				}
				if strings.HasPrefix(phrase, term) {
					foundTerms[key+"\x00"+term] = true
				}
			}
		}
	}

	var out []string
	for _, key := range r.keys {
		terms := termsByKey[key]
		complete := true
		for _, term := range terms {
			if !foundTerms[key+"\x00"+term] {
				complete = false
				break
			}
		}
		if complete {
			out = append(out, key)
		}
	}
	return out
}
