package extractor

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/insightdelivered/transtractor/internal/fragment"
	"github.com/insightdelivered/transtractor/internal/layout"
)

// ExtractFragments reads a PDF file and returns one layout.Page per PDF
// page, each holding the page's raw, unordered fragment.Fragments. It
// tries the structured library's per-glyph-run coordinates first (real
// bounding boxes); if the library can't produce readable text (custom
// fonts, no text layer), it falls through to raw stream parsing and
// then the external pdftotext command, degrading each line of text
// from those lower tiers into word fragments with synthesized,
// left-to-right-only X coordinates — enough for anchor-based preamble
// extraction, but not for column-alignment-based table extraction,
// since no tier below the structured library reports true glyph
// positions.
func ExtractFragments(filePath string) ([]layout.Page, error) {
	pages, libErr := extractFragmentsByContent(filePath)
	if libErr == nil && isReadableFragmentPages(pages) {
		return pages, nil
	}

	rawPages, rawErr := ExtractTextRaw(filePath)
	if rawErr == nil && isReadableText(rawPages) {
		return degradeToFragments(rawPages), nil
	}

	popplerPages, popplerErr := extractWithPdftotext(filePath)
	if popplerErr == nil && isReadableText(popplerPages) {
		return degradeToFragments(popplerPages), nil
	}

	if libErr != nil {
		return nil, fmt.Errorf("PDF fragment extraction failed: %v. The PDF may use custom fonts or be image-based/scanned", libErr)
	}
	return nil, fmt.Errorf("no readable text could be extracted from PDF for fragment reconstruction")
}

// isReadableFragmentPages applies the same quality gate the text tiers
// use, against the flattened fragment text, so the same "is this
// garbage" heuristic governs both the string and fragment extraction
// paths.
func isReadableFragmentPages(pages []layout.Page) bool {
	texts := make([]string, len(pages))
	for i, page := range pages {
		var b strings.Builder
		for _, f := range page {
			b.WriteString(f.Text)
			b.WriteString(" ")
		}
		texts[i] = b.String()
	}
	return isReadableText(texts)
}

// extractFragmentsByContent is ExtractFragments' structured-library
// tier: it reads Page.Content()'s text runs directly, keeping each
// run's own X/Y/width rather than collapsing it into a joined row
// string. Font size approximates glyph height, since the library
// exposes only a baseline point and width per run, not a full
// bounding box.
func extractFragmentsByContent(filePath string) (pages []layout.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	f, r, openErr := pdf.Open(filePath)
	if openErr != nil {
		return nil, openErr
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	pages = make([]layout.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()

		var frags layout.Page
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			height := t.FontSize
			if height <= 0 {
				height = 10
			}
			frags = append(frags, fragment.Fragment{
				Text: t.S,
				X1:   t.X,
				Y1:   t.Y,
				X2:   t.X + t.W,
				Y2:   t.Y + height,
				Page: i - 1,
			})
		}
		pages = append(pages, frags)
	}
	return pages, nil
}

// degradeToFragments turns page-level plain text (from a tier with no
// glyph coordinates) into coarse fragments: one per whitespace-split
// word, ordered left to right on a synthesized line, lines stacked
// top to bottom by descending Y. X is approximated from the word's
// character offset within its line at a nominal fixed-width advance,
// since nothing below the structured library reports real glyph
// widths — sufficient for AlignNone/sequential preamble scanning, not
// for column-alignment-based table extraction.
func degradeToFragments(pageTexts []string) []layout.Page {
	const charWidth = 6.0
	const lineHeight = 12.0

	pages := make([]layout.Page, 0, len(pageTexts))
	for pageIdx, text := range pageTexts {
		lines := strings.Split(text, "\n")
		var frags layout.Page
		y := float64(len(lines)) * lineHeight
		for _, line := range lines {
			words := strings.Fields(line)
			searchFrom := 0
			for _, w := range words {
				offset := strings.Index(line[searchFrom:], w)
				if offset < 0 {
					offset = 0
				} else {
					offset += searchFrom
				}
				x1 := float64(offset) * charWidth
				frags = append(frags, fragment.Fragment{
					Text: w,
					X1:   x1,
					Y1:   y,
					X2:   x1 + float64(len([]rune(w)))*charWidth,
					Y2:   y + lineHeight,
					Page: pageIdx,
				})
				searchFrom = offset + len(w)
			}
			y -= lineHeight
		}
		pages = append(pages, frags)
	}
	return pages
}

// textQuality returns the ratio of basic ASCII readable characters (a-z, A-Z,
// 0-9, common punctuation, whitespace) to total characters. Returns 0.0-1.0.
// Uses a strict ASCII check — unicode.IsLetter() is too broad and matches
// accented characters that appear in garbage from identity-encoded fonts.
func textQuality(pages []string) float64 {
	total := 0
	readable := 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
				(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
				r == '.' || r == ',' || r == '-' || r == '/' || r == ':' ||
				r == ';' || r == '(' || r == ')' || r == '\'' || r == '"' ||
				r == '£' || r == '$' || r == '€' || r == '%' || r == '&' ||
				r == '@' || r == '#' || r == '!' || r == '?' || r == '+' ||
				r == '=' || r == '*' || r == '\t' {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// commonWords that appear in virtually all bank statements.
// If the extracted text contains none of these, it's likely garbage.
var commonWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "sort code",
	"money", "paid", "opening", "closing", "transfer", "direct",
	"number", "page", "period",
}

// containsCommonWords checks whether the text contains at least one word
// that would be expected in a bank statement.
func containsCommonWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadableText checks that pages contain enough text, that it's actually
// readable (not binary garbage), AND that it contains recognizable words.
// Requires >50 chars, >60% readable ASCII characters, and at least one common word.
func isReadableText(pages []string) bool {
	if totalTextLen(pages) <= 50 {
		return false
	}
	if textQuality(pages) <= 0.6 {
		return false
	}
	// Final check: the text must contain at least one recognizable word
	return containsCommonWords(pages)
}

// extractWithPdftotext uses the external pdftotext command from poppler-utils
// as a fallback for PDFs that the Go library cannot handle.
func extractWithPdftotext(filePath string) ([]string, error) {
	// Check if pdftotext is available
	_, err := exec.LookPath("pdftotext")
	if err != nil {
		return nil, fmt.Errorf("pdftotext not available: %v", err)
	}

	// First, get the number of pages
	pageCountOut, err := exec.Command("pdfinfo", filePath).Output()
	numPages := 1
	if err == nil {
		for _, line := range strings.Split(string(pageCountOut), "\n") {
			if strings.HasPrefix(line, "Pages:") {
				n, parseErr := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
				if parseErr == nil && n > 0 {
					numPages = n
				}
			}
		}
	}

	// Extract each page separately to preserve page boundaries
	var pages []string
	for i := 1; i <= numPages; i++ {
		pageStr := strconv.Itoa(i)
		out, err := exec.Command("pdftotext", "-layout", "-f", pageStr, "-l", pageStr, filePath, "-").Output()
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(out))
		if text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		// Try whole document at once as fallback
		out, err := exec.Command("pdftotext", "-layout", filePath, "-").Output()
		if err != nil {
			return nil, fmt.Errorf("pdftotext failed: %v", err)
		}
		text := strings.TrimSpace(string(out))
		if text != "" {
			return []string{text}, nil
		}
		return nil, fmt.Errorf("pdftotext produced no output")
	}

	return pages, nil
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}
