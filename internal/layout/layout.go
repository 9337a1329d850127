// Package layout reconstructs visual reading order from unordered
// positional fragments: tolerant line binning, then horizontal gap
// merging, one page at a time, pages concatenated in ascending index.
package layout

import (
	"math"
	"sort"

	"github.com/insightdelivered/transtractor/internal/fragment"
)

// Options controls the normalizer. YBin and XGap must be >= 0.
type Options struct {
	// YBin is the line-binning tolerance in points. 0 disables binning
	// (fragments are emitted in provider order, one implicit line per
	// page).
	YBin float64
	// XGap is the gap-merge threshold, expressed as a multiple of the
	// left fragment's mean glyph advance. 0 disables merging.
	XGap float64
	// ApplyYPatch snaps each fragment's Y1 to the nearest multiple of
	// YPatchLineHeight before line binning, correcting PDF producers
	// that emit sub-pixel Y jitter within what is visually one line.
	ApplyYPatch      bool
	YPatchLineHeight float64
}

// DefaultOptions is a reasonable starting normalization for real PDF
// extraction: a 2pt line-binning tolerance (tighter than a typical
// 10-12pt font's line height, loose enough to absorb sub-pixel Y
// jitter) and a 1.5x-glyph-advance gap merge. Callers with a known-bad
// producer should still override ApplyYPatch/YPatchLineHeight per
// config via the driver rather than baking it in here.
var DefaultOptions = Options{YBin: 2, XGap: 1.5}

// Page is one page's worth of raw, unordered fragments as produced by
// the PDF provider.
type Page []fragment.Fragment

// Normalize reconstructs reading order across all pages and returns the
// canonical fragment.Stream.
func Normalize(pages []Page, opts Options) fragment.Stream {
	var out []fragment.Fragment
	for _, page := range pages {
		out = append(out, normalizePage(page, opts)...)
	}
	return fragment.Stream{Fragments: out}
}

func normalizePage(page Page, opts Options) []fragment.Fragment {
	frags := make([]fragment.Fragment, len(page))
	copy(frags, page)

	if opts.ApplyYPatch && opts.YPatchLineHeight > 0 {
		for i := range frags {
			frags[i].Y1 = math.Round(frags[i].Y1/opts.YPatchLineHeight) * opts.YPatchLineHeight
		}
	}

	lines := binLines(frags, opts.YBin)

	var result []fragment.Fragment
	for _, line := range lines {
		if opts.YBin != 0 {
			sort.SliceStable(line, func(i, j int) bool { return line[i].X1 < line[j].X1 })
		}
		if opts.XGap > 0 {
			line = mergeGaps(line, opts.XGap)
		}
		result = append(result, line...)
	}
	return result
}

// binLines groups fragments into visual lines. With yBin == 0, fragments
// stay in provider order as a single line (no sort, no rebinning). With
// yBin > 0, a fragment joins the line whose running mean Y1 is within
// yBin/2, else starts a new line; lines are finally sorted by
// descending mean Y1 (PDF y-up: higher Y is visually higher on the
// page).
func binLines(frags []fragment.Fragment, yBin float64) [][]fragment.Fragment {
	if yBin == 0 {
		return [][]fragment.Fragment{frags}
	}

	type line struct {
		meanY float64
		count int
		items []fragment.Fragment
	}
	var lines []*line

	half := yBin / 2
	for _, f := range frags {
		var best *line
		bestDist := math.Inf(1)
		for _, l := range lines {
			d := math.Abs(f.Y1 - l.meanY)
			if d <= half && d < bestDist {
				best = l
				bestDist = d
			}
		}
		if best == nil {
			lines = append(lines, &line{meanY: f.Y1, count: 1, items: []fragment.Fragment{f}})
			continue
		}
		best.items = append(best.items, f)
		best.count++
		best.meanY = best.meanY + (f.Y1-best.meanY)/float64(best.count)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].meanY > lines[j].meanY })

	out := make([][]fragment.Fragment, len(lines))
	for i, l := range lines {
		out[i] = l.items
	}
	return out
}

// mergeGaps walks a line left to right, merging adjacent fragments
// whose horizontal gap is within xGap times the left fragment's mean
// glyph advance.
func mergeGaps(line []fragment.Fragment, xGap float64) []fragment.Fragment {
	if len(line) == 0 {
		return line
	}
	var out []fragment.Fragment
	curr := line[0]
	for _, next := range line[1:] {
		advance := curr.GlyphAdvance()
		gap := next.X1 - curr.X2
		if gap <= xGap*advance {
			curr = curr.Merge(next)
		} else {
			out = append(out, curr)
			curr = next
		}
	}
	out = append(out, curr)
	return out
}
