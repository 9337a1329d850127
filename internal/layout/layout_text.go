package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/insightdelivered/transtractor/internal/fragment"
)

// Render serializes a fragment.Stream into the layout-text wire format
// from spec.md §6: one "[Page N]" section per page, each subsequent
// line a space-separated list of ["text",x1,x2,y1,y2] blocks with
// coordinates truncated toward zero.
func Render(s fragment.Stream) string {
	if s.Len() == 0 {
		return ""
	}

	var b strings.Builder
	currPage := s.At(0).Page
	fmt.Fprintf(&b, "[Page %d]\n", currPage)

	for i := 0; i < s.Len(); i++ {
		f := s.At(i)
		if f.Page != currPage {
			currPage = f.Page
			fmt.Fprintf(&b, "\n[Page %d]\n", currPage)
		} else if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "[%q,%d,%d,%d,%d]", f.Text, int(f.X1), int(f.X2), int(f.Y1), int(f.Y2))
	}
	return b.String()
}

// Parse is the inverse of Render: it reconstructs a fragment.Stream
// from layout text, splitting each block's text on whitespace into
// separate fragments sharing that block's bounding box (mirroring how
// Render's upstream producer originally split glyph runs). It exists
// for golden-fixture round-trip tests and CLI debugging; it is not
// required by any CORE operation.
func Parse(text string) (fragment.Stream, error) {
	var out []fragment.Fragment
	page := 1
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "[Page") {
			inner := strings.Trim(trimmed, "[]")
			parts := strings.Fields(inner)
			if len(parts) != 2 || parts[0] != "Page" {
				return fragment.Stream{}, fmt.Errorf("layout: malformed page header %q", trimmed)
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				return fragment.Stream{}, fmt.Errorf("layout: invalid page number %q: %w", parts[1], err)
			}
			page = n
			continue
		}
		blocks, err := splitBlocks(trimmed)
		if err != nil {
			return fragment.Stream{}, err
		}
		for _, blk := range blocks {
			frags, err := parseBlock(blk, page)
			if err != nil {
				return fragment.Stream{}, err
			}
			out = append(out, frags...)
		}
	}
	return fragment.Stream{Fragments: out}, nil
}

// splitBlocks splits a line of "[...]" blocks on the boundary between
// them: a "]" followed by a "[", with or without spaces in between.
func splitBlocks(line string) ([]string, error) {
	var blocks []string
	start := 0
	for i := 0; i+1 < len(line); i++ {
		if line[i] != ']' {
			continue
		}
		j := i + 1
		for j < len(line) && line[j] == ' ' {
			j++
		}
		if j < len(line) && line[j] == '[' {
			blocks = append(blocks, line[start:i+1])
			start = j
			i = j - 1
		}
	}
	blocks = append(blocks, line[start:])
	return blocks, nil
}

func parseBlock(raw string, page int) ([]fragment.Fragment, error) {
	cleaned := strings.Trim(strings.TrimSpace(raw), "[]")
	if cleaned == "" {
		return nil, nil
	}
	parts, err := splitCSVRespectingQuotes(cleaned)
	if err != nil {
		return nil, err
	}
	if len(parts) != 5 {
		return nil, fmt.Errorf("layout: expected 5 fields in block %q, got %d", raw, len(parts))
	}

	text := strings.Trim(strings.TrimSpace(parts[0]), "\"")
	x1, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("layout: invalid x1 in block %q: %w", raw, err)
	}
	x2, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return nil, fmt.Errorf("layout: invalid x2 in block %q: %w", raw, err)
	}
	y1, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return nil, fmt.Errorf("layout: invalid y1 in block %q: %w", raw, err)
	}
	y2, err := strconv.ParseFloat(strings.TrimSpace(parts[4]), 64)
	if err != nil {
		return nil, fmt.Errorf("layout: invalid y2 in block %q: %w", raw, err)
	}

	var out []fragment.Fragment
	for _, tok := range strings.Fields(text) {
		out = append(out, fragment.Fragment{Text: tok, X1: x1, X2: x2, Y1: y1, Y2: y2, Page: page})
	}
	return out, nil
}

func splitCSVRespectingQuotes(s string) ([]string, error) {
	var parts []string
	var buf strings.Builder
	inQuotes := false
	for _, c := range s {
		switch {
		case c == '"':
			inQuotes = !inQuotes
			buf.WriteRune(c)
		case c == ',' && !inQuotes:
			parts = append(parts, buf.String())
			buf.Reset()
		default:
			buf.WriteRune(c)
		}
	}
	if buf.Len() > 0 {
		parts = append(parts, buf.String())
	}
	if inQuotes {
		return nil, fmt.Errorf("layout: unterminated quote in %q", s)
	}
	return parts, nil
}
