package pdf

import (
	"path/filepath"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/ledongthuc/pdf"
)

// TestSanitizeText verifies control characters drop and whitespace
// collapses to single spaces.
func TestSanitizeText(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "Hello World", "Hello World"},
		{"multiple spaces", "Hello    World", "Hello World"},
		{"tabs and newlines", "Hello\t\nWorld", "Hello World"},
		{"leading and trailing", "  Hello World  ", "Hello World"},
		{"control characters", "Hel\x00lo\x01 World", "Hello World"},
		{"replacement character", "Hello � World", "Hello World"},
		{"empty", "", ""},
		{"only whitespace", " \t\n ", ""},
		{"accents preserved", "déjà  vu", "déjà vu"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeText(tc.input); got != tc.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

// TestIsDigitOnly verifies the page-number/counter detection that keeps
// numeric blocks away from the translation backend.
func TestIsDigitOnly(t *testing.T) {
	testCases := []struct {
		text string
		want bool
	}{
		{"42", true},
		{"1.2.3", true},
		{"12 / 36", true},
		{"2024-01-15", true},
		{"1,234", true},
		{"", false},
		{"   ", false},
		{"...", false},
		{"page 42", false},
		{"4x2", false},
		{"Hello", false},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			if got := IsDigitOnly(tc.text); got != tc.want {
				t.Errorf("IsDigitOnly(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

// TestIsOperatorCode verifies operator-stream junk is filtered while real
// document text passes through.
func TestIsOperatorCode(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want bool
	}{
		{"prose", "The quick brown fox jumps over the lazy dog.", false},
		{"name def", "/pgsave save def", true},
		{"null def", "/x null def", true},
		{"stx marker", "@stx something", true},
		{"burl", "/BURL@ annotation", true},
		{"postscript operators", "gsave 0 setgray newpath", true},
		{"many slash names", "/F1 /F2 /F3 resources", true},
		{"url with slashes", "see https://example.com/a/b/c for details", false},
		{"fraction", "3/4 of respondents agreed", false},
		{"empty", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isOperatorCode(tc.text); got != tc.want {
				t.Errorf("isOperatorCode(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

// TestHasExcessiveNonPrintable verifies the garbage-text threshold.
func TestHasExcessiveNonPrintable(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want bool
	}{
		{"clean text", "perfectly normal sentence", false},
		{"empty", "", false},
		{"mostly control chars", "\x01\x02\x03\x04ab", true},
		{"one control char in long text", "a long enough sentence with one\x01 stray byte", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hasExcessiveNonPrintable(tc.text); got != tc.want {
				t.Errorf("hasExcessiveNonPrintable(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

// TestDetermineBlockType verifies block classification from text and font
// characteristics.
func TestDetermineBlockType(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		fontSize float64
		isBold   bool
		want     string
	}{
		{"plain paragraph", "This is a normal sentence in the body of the document, long enough not to look like a heading at all.", 10, false, "paragraph"},
		{"numbered heading", "3.1 Experimental Setup", 10, false, "heading"},
		{"named section", "Introduction", 10, false, "heading"},
		{"references", "References", 10, false, "heading"},
		{"bold large short", "Results", 14, true, "heading"},
		{"figure caption", "Figure 3: Measured throughput over time", 9, false, "caption"},
		{"table caption", "Table 1: Summary of results", 9, false, "caption"},
		{"bullet item", "• first item in the list", 10, false, "list_item"},
		{"formula", "f(x) = a+b", 10, false, "formula"},
		{"empty", "", 10, false, "paragraph"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := determineBlockType(tc.text, tc.fontSize, tc.isBold); got != tc.want {
				t.Errorf("determineBlockType(%q, %v, %v) = %q, want %q",
					tc.text, tc.fontSize, tc.isBold, got, tc.want)
			}
		})
	}
}

// TestIsNumberedHeading covers the numbered-prefix forms.
func TestIsNumberedHeading(t *testing.T) {
	testCases := []struct {
		text string
		want bool
	}{
		{"1.1 Background", true},
		{"2.3.4 Details", true},
		{"1. Overview", true},
		{"A.1 Proofs", true},
		{"Chapter 5", true},
		{"Appendix B", true},
		{"1 is the loneliest number in this overly long sentence that keeps going well past any plausible heading length and then keeps going some more", false},
		{"just prose", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			if got := isNumberedHeading(tc.text); got != tc.want {
				t.Errorf("isNumberedHeading(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

// TestIsAllUpperCase verifies the all-caps check requires a letter.
func TestIsAllUpperCase(t *testing.T) {
	testCases := []struct {
		text string
		want bool
	}{
		{"ABSTRACT", true},
		{"SECTION 2", true},
		{"Abstract", false},
		{"123", false},
		{"", false},
	}

	for _, tc := range testCases {
		if got := isAllUpperCase(tc.text); got != tc.want {
			t.Errorf("isAllUpperCase(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

// TestIsListItem covers bullet and enumerated forms.
func TestIsListItem(t *testing.T) {
	testCases := []struct {
		text string
		want bool
	}{
		{"• bullet point", true},
		{"- dash item", true},
		{"1) numbered", true},
		{"a. lettered", true},
		{"(a) parenthesized", true},
		{"regular sentence", false},
		{"x", false},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			if got := isListItem(tc.text); got != tc.want {
				t.Errorf("isListItem(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

// TestIsValidTextBlock verifies the extraction filter for degenerate
// blocks.
func TestIsValidTextBlock(t *testing.T) {
	valid := TextBlock{Page: 1, Text: "hello", X: 10, Y: 20, Width: 50, Height: 12}
	if !valid.IsValidTextBlock() {
		t.Error("valid block rejected")
	}

	testCases := []struct {
		name  string
		block TextBlock
	}{
		{"empty text", TextBlock{Page: 1, X: 10, Y: 20, Width: 50, Height: 12}},
		{"zero page", TextBlock{Page: 0, Text: "hello", X: 10, Y: 20, Width: 50, Height: 12}},
		{"negative x", TextBlock{Page: 1, Text: "hello", X: -1, Y: 20, Width: 50, Height: 12}},
		{"negative width", TextBlock{Page: 1, Text: "hello", X: 10, Y: 20, Width: -5, Height: 12}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.block.IsValidTextBlock() {
				t.Error("invalid block accepted")
			}
		})
	}
}

// TestBlockFromSpansFontAverage verifies the block font size averages
// only the spans that contributed text; empty and operator spans are
// filtered out and must not drag the average down.
func TestBlockFromSpansFontAverage(t *testing.T) {
	spans := []pdf.Text{
		{S: "Measured ", X: 72, Y: 700, Font: "Helvetica", FontSize: 12},
		{S: "throughput", X: 130, Y: 700, Font: "Helvetica", FontSize: 10},
		{S: ""},
		{S: "/pgsave save def"},
	}

	block, ok := blockFromSpans(spans, 1, 1)
	if !ok {
		t.Fatal("expected a block from real text spans")
	}
	if block.Text != "Measured throughput" {
		t.Errorf("Text = %q, want %q", block.Text, "Measured throughput")
	}
	if block.FontSize != 11 {
		t.Errorf("FontSize = %v, want 11 (average of the two text spans)", block.FontSize)
	}
	if block.X != 72 || block.Y != 700 {
		t.Errorf("position = (%v, %v), want (72, 700)", block.X, block.Y)
	}
}

// TestBlockFromSpansAllFiltered verifies rows of pure operator junk
// produce no block.
func TestBlockFromSpansAllFiltered(t *testing.T) {
	spans := []pdf.Text{
		{S: ""},
		{S: "/pgsave save def"},
	}
	if _, ok := blockFromSpans(spans, 1, 1); ok {
		t.Error("expected no block from filtered spans")
	}
}

// TestExtractTextPositions verifies blocks extracted from a generated
// document carry the real page coordinates and font size of their text
// rather than zeroed geometry.
func TestExtractTextPositions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.pdf")

	doc := fpdf.New("P", "pt", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.Text(100, 292, "Hello")
	if err := doc.OutputFileAndClose(path); err != nil {
		t.Fatal(err)
	}

	p := NewParser("")
	blocks, err := p.ExtractText(path)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(blocks))
	}

	b := blocks[0]
	if b.Text != "Hello" {
		t.Errorf("Text = %q, want Hello", b.Text)
	}
	if b.X < 99 || b.X > 101 {
		t.Errorf("X = %v, want ~100", b.X)
	}
	// An A4 page is 841.89pt tall and the writer flips to a bottom-left
	// origin, so y lands at pageHeight - 292.
	wantY := 841.89 - 292
	if b.Y < wantY-2 || b.Y > wantY+2 {
		t.Errorf("Y = %v, want ~%v", b.Y, wantY)
	}
	if b.FontSize < 11.5 || b.FontSize > 12.5 {
		t.Errorf("FontSize = %v, want ~12", b.FontSize)
	}
}

// TestGetPDFInfoMissingFile verifies a not-found error code for missing
// input files.
func TestGetPDFInfoMissingFile(t *testing.T) {
	p := NewParser("")

	_, err := p.GetPDFInfo("/nonexistent/path/file.pdf")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	pdfErr, ok := err.(*PDFError)
	if !ok || pdfErr.Code != ErrPDFNotFound {
		t.Errorf("expected code %s, got %v", ErrPDFNotFound, err)
	}
}
