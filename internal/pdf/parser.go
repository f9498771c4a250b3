package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"pdf-tools/internal/logger"
)

// Parser extracts positioned text blocks from PDF files.
type Parser struct {
	workDir string
}

// NewParser creates a new Parser with the specified working directory
func NewParser(workDir string) *Parser {
	return &Parser{
		workDir: workDir,
	}
}

// GetPDFInfo returns basic information about a PDF file: page count,
// file size and whether it carries extractable text.
func (p *Parser) GetPDFInfo(pdfPath string) (*PDFInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewPDFError(ErrPDFNotFound, "file does not exist", err)
		}
		return nil, NewPDFError(ErrPDFInvalid, "cannot access file", err)
	}

	if fileInfo.IsDir() {
		return nil, NewPDFError(ErrPDFInvalid, "path is a directory, not a file", nil)
	}

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "cannot open PDF file", err)
	}
	defer f.Close()

	pageCount := r.NumPage()

	isTextPDF, err := p.IsTextPDF(pdfPath)
	if err != nil {
		// Unknown text status is not fatal for info purposes.
		isTextPDF = false
	}

	return &PDFInfo{
		FilePath:  pdfPath,
		FileName:  filepath.Base(pdfPath),
		PageCount: pageCount,
		FileSize:  fileInfo.Size(),
		IsTextPDF: isTextPDF,
	}, nil
}

// IsTextPDF reports whether the PDF contains extractable text, as opposed
// to scanned page images. It samples the first few pages.
func (p *Parser) IsTextPDF(pdfPath string) (bool, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		if os.IsNotExist(err) {
			return false, NewPDFError(ErrPDFNotFound, "file does not exist", err)
		}
		return false, NewPDFError(ErrPDFInvalid, "cannot access file", err)
	}

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return false, NewPDFError(ErrPDFInvalid, "cannot open PDF file", err)
	}
	defer f.Close()

	maxPagesToCheck := 3
	if r.NumPage() < maxPagesToCheck {
		maxPagesToCheck = r.NumPage()
	}

	totalTextLength := 0
	for pageNum := 1; pageNum <= maxPagesToCheck; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		for _, c := range content {
			if !unicode.IsSpace(c) {
				totalTextLength++
			}
		}

		if totalTextLength > 50 {
			return true, nil
		}
	}

	return totalTextLength > 0, nil
}

// ExtractText extracts text blocks with position and font metadata from a
// PDF, in top-to-bottom, left-to-right reading order per page.
func (p *Parser) ExtractText(pdfPath string) ([]TextBlock, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		if os.IsNotExist(err) {
			return nil, NewPDFError(ErrPDFNotFound, "file does not exist", err)
		}
		return nil, NewPDFError(ErrPDFInvalid, "cannot access file", err)
	}

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "cannot open PDF file", err)
	}
	defer f.Close()

	var textBlocks []TextBlock
	blockID := 0

	totalPages := r.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		if page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			logger.Warn("failed to read page text, skipping page",
				logger.Int("page", pageNum), logger.Err(err))
			continue
		}

		// Row extraction reads positions only from Tm operators.
		// Documents that position text with Td come back at the origin
		// with no font data; glyph-level content parsing recovers the
		// real geometry for those pages.
		if !hasUsablePositions(rows) {
			textBlocks = append(textBlocks, p.blocksFromContent(page, pageNum, &blockID)...)
			continue
		}

		for _, row := range rows {
			if len(row.Content) == 0 {
				continue
			}
			blockID++
			block, ok := blockFromSpans(row.Content, pageNum, blockID)
			if !ok {
				continue
			}
			textBlocks = append(textBlocks, block)
		}
	}

	// PDF origin is bottom-left, so descending Y is top-to-bottom reading
	// order. Rows within a Y tolerance count as the same line.
	sort.Slice(textBlocks, func(i, j int) bool {
		if textBlocks[i].Page != textBlocks[j].Page {
			return textBlocks[i].Page < textBlocks[j].Page
		}
		const yTolerance = 5.0
		if abs(textBlocks[i].Y-textBlocks[j].Y) < yTolerance {
			return textBlocks[i].X < textBlocks[j].X
		}
		return textBlocks[i].Y > textBlocks[j].Y
	})

	for i := range textBlocks {
		textBlocks[i].ID = fmt.Sprintf("block_%d", i+1)
	}

	logger.Info("text extraction complete",
		logger.String("file", filepath.Base(pdfPath)),
		logger.Int("pages", totalPages),
		logger.Int("blocks", len(textBlocks)))

	return textBlocks, nil
}

// hasUsablePositions reports whether row extraction carried any real
// coordinates.
func hasUsablePositions(rows pdf.Rows) bool {
	for _, row := range rows {
		for _, text := range row.Content {
			if text.X > 0 || text.Y > 0 {
				return true
			}
		}
	}
	return false
}

// blocksFromContent rebuilds text rows from glyph-level page content and
// aggregates them into blocks. Every glyph carries its own position and
// font size here, at the cost of a second pass over the content stream.
func (p *Parser) blocksFromContent(page pdf.Page, pageNum int, blockID *int) (blocks []TextBlock) {
	// The content interpreter panics on malformed streams.
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("failed to parse page content, skipping page",
				logger.Int("page", pageNum),
				logger.String("reason", fmt.Sprint(r)))
			blocks = nil
		}
	}()

	content := page.Content()
	if len(content.Text) == 0 {
		return nil
	}

	glyphs := make([]pdf.Text, len(content.Text))
	copy(glyphs, content.Text)
	sort.Sort(pdf.TextVertical(glyphs))

	// Glyphs whose baselines sit within the tolerance belong to one line.
	const lineTolerance = 2.0
	lineStart := 0
	for i := 1; i <= len(glyphs); i++ {
		if i < len(glyphs) && abs(glyphs[i].Y-glyphs[lineStart].Y) < lineTolerance {
			continue
		}
		*blockID++
		if block, ok := blockFromSpans(glyphs[lineStart:i], pageNum, *blockID); ok {
			blocks = append(blocks, block)
		}
		lineStart = i
	}
	return blocks
}

// blockFromSpans aggregates the text spans of one row into a block.
// Returns false when nothing translatable remains after filtering.
func blockFromSpans(spans []pdf.Text, pageNum, id int) (TextBlock, bool) {
	var textBuilder strings.Builder
	var minX, maxX, minY, maxY float64
	var totalFontSize float64
	var fontName string
	var isBold, isItalic bool
	spanCount := 0
	first := true

	for _, text := range spans {
		if text.S == "" {
			continue
		}

		// Skip PDF/PostScript operator code that leaks into the text
		// stream of some documents.
		if isOperatorCode(text.S) {
			continue
		}

		textBuilder.WriteString(text.S)
		spanCount++

		if first {
			minX, maxX = text.X, text.X
			minY, maxY = text.Y, text.Y
			fontName = text.Font
			first = false
		} else {
			if text.X < minX {
				minX = text.X
			}
			if text.X > maxX {
				maxX = text.X
			}
			if text.Y < minY {
				minY = text.Y
			}
			if text.Y > maxY {
				maxY = text.Y
			}
		}

		totalFontSize += text.FontSize

		fontLower := strings.ToLower(text.Font)
		if strings.Contains(fontLower, "bold") {
			isBold = true
		}
		if strings.Contains(fontLower, "italic") || strings.Contains(fontLower, "oblique") {
			isItalic = true
		}
	}

	text := SanitizeText(textBuilder.String())
	if text == "" {
		return TextBlock{}, false
	}

	if isOperatorCode(text) || hasExcessiveNonPrintable(text) {
		return TextBlock{}, false
	}

	// Only spans that contributed text count toward the average; empty
	// and operator spans are filtered above.
	var avgFontSize float64
	if spanCount > 0 {
		avgFontSize = totalFontSize / float64(spanCount)
	}
	if avgFontSize <= 0 {
		avgFontSize = 10.0
	}

	// Width is estimated from glyph count; span origins alone do not
	// carry the advance width of the last glyph.
	estimatedWidth := float64(len(text)) * avgFontSize * 0.5
	if maxX > minX {
		actualWidth := maxX - minX + avgFontSize
		if actualWidth > estimatedWidth {
			estimatedWidth = actualWidth
		}
	}
	if estimatedWidth < avgFontSize {
		estimatedWidth = avgFontSize * float64(len(text)) * 0.5
	}

	estimatedHeight := avgFontSize * 1.2
	if estimatedHeight <= 0 {
		estimatedHeight = 12.0
	}

	block := TextBlock{
		ID:        fmt.Sprintf("block_%d_%d", pageNum, id),
		Page:      pageNum,
		Text:      text,
		X:         minX,
		Y:         minY,
		Width:     estimatedWidth,
		Height:    estimatedHeight,
		FontSize:  avgFontSize,
		FontName:  fontName,
		IsBold:    isBold,
		IsItalic:  isItalic,
		BlockType: determineBlockType(text, avgFontSize, isBold),
	}
	if !block.IsValidTextBlock() {
		return TextBlock{}, false
	}
	return block, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// SanitizeText normalizes extracted text for translation: control
// characters are dropped and runs of whitespace collapse to single spaces.
func SanitizeText(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		if r == 0xFFFD {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// IsDigitOnly reports whether text consists solely of digits, whitespace
// and simple numeric punctuation. Such blocks (page numbers, counters)
// are never sent to the translation backend.
func IsDigitOnly(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	hasDigit := false
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSpace(r), r == '.', r == ',', r == '-', r == '/':
		default:
			return false
		}
	}
	return hasDigit
}

// isOperatorCode checks if text looks like PostScript/PDF operator code
// rather than document text.
func isOperatorCode(text string) bool {
	if len(text) == 0 {
		return false
	}

	textLower := strings.ToLower(text)

	// "/name def" style definitions almost never occur in prose.
	if strings.Contains(text, " def ") || strings.HasSuffix(text, " def") {
		if strings.Contains(text, "/") {
			return true
		}
	}

	if strings.Contains(textLower, "null def") {
		return true
	}

	if strings.Contains(text, "@stx") || strings.Contains(text, "@etx") {
		return true
	}

	if strings.Contains(textLower, "/burl") || strings.Contains(textLower, "burl@") {
		return true
	}

	psSpecificPatterns := []string{
		"currentpoint", "gsave", "grestore", "newpath", "closepath",
		"setrgbcolor", "setgray", "setlinewidth", "showpage",
		"moveto", "lineto", "curveto",
	}
	for _, pattern := range psSpecificPatterns {
		if strings.Contains(textLower, pattern) {
			return true
		}
	}

	// Several "/Name" tokens in a row indicate PostScript names, unless
	// the text is a URL.
	if !strings.Contains(text, "://") && !strings.Contains(textLower, "http") {
		slashNameCount := 0
		for _, word := range strings.Fields(text) {
			if len(word) > 1 && word[0] == '/' {
				isName := true
				for _, c := range word[1:] {
					if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
						(c >= '0' && c <= '9') || c == '_' || c == '@') {
						isName = false
						break
					}
				}
				if isName {
					slashNameCount++
				}
			}
		}
		if slashNameCount >= 3 {
			return true
		}
	}

	return false
}

// hasExcessiveNonPrintable checks if text has too many non-printable characters
func hasExcessiveNonPrintable(text string) bool {
	if len(text) == 0 {
		return false
	}

	nonPrintableCount := 0
	for _, r := range text {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			nonPrintableCount++
		}
		if r >= 0x7F && r <= 0x9F {
			nonPrintableCount++
		}
	}

	ratio := float64(nonPrintableCount) / float64(len(text))
	return ratio > 0.1
}

// determineBlockType classifies a block as heading, caption, formula,
// list_item, footnote or paragraph from its text and font characteristics.
func determineBlockType(text string, fontSize float64, isBold bool) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "paragraph"
	}

	if isMathFormula(text) {
		return "formula"
	}

	isShort := len(text) < 100
	isNumberedSection := isNumberedHeading(text)
	isAllCaps := isAllUpperCase(text) && len(text) > 2
	isLargeFont := fontSize > 12

	if isNumberedSection {
		return "heading"
	}
	if isBold && isShort && (isLargeFont || isAllCaps) {
		return "heading"
	}
	if isLargeFont && isShort && !strings.Contains(text, ".") {
		return "heading"
	}

	textLower := strings.ToLower(text)
	if strings.HasPrefix(textLower, "figure") ||
		strings.HasPrefix(textLower, "table") ||
		strings.HasPrefix(textLower, "fig.") ||
		strings.HasPrefix(textLower, "tab.") {
		return "caption"
	}

	if len(text) > 0 && (text[0] >= '0' && text[0] <= '9') && len(text) < 200 {
		if strings.Contains(text, ".") && !strings.HasSuffix(text, ".") {
			return "footnote"
		}
	}

	if isListItem(text) {
		return "list_item"
	}

	return "paragraph"
}

// isMathFormula checks if text looks like a mathematical formula
func isMathFormula(text string) bool {
	if len(text) == 0 {
		return false
	}

	mathSymbolCount := 0
	totalChars := 0

	mathSymbols := "∫∑∏√∂∇±×÷≤≥≠≈∞∈∉⊂⊃∪∩∧∨¬∀∃αβγδεζηθικλμνξοπρστυφχψω"

	for _, r := range text {
		totalChars++
		if r == '+' || r == '-' || r == '*' || r == '/' || r == '=' ||
			r == '<' || r == '>' || r == '^' || r == '_' || r == '~' {
			mathSymbolCount++
		}
		if strings.ContainsRune(mathSymbols, r) {
			mathSymbolCount++
		}
		if r == '(' || r == ')' || r == '[' || r == ']' || r == '{' || r == '}' {
			mathSymbolCount++
		}
	}

	if totalChars > 0 && float64(mathSymbolCount)/float64(totalChars) > 0.3 {
		return true
	}

	if strings.Contains(text, "=") && (strings.Contains(text, "(") ||
		strings.Contains(text, "+") || strings.Contains(text, "-")) {
		wordCount := len(strings.Fields(text))
		if wordCount <= 5 && len(text) < 100 {
			return true
		}
	}

	if strings.ContainsAny(text, "∫∑∏√∂∇") {
		return true
	}

	underscoreCount := strings.Count(text, "_")
	caretCount := strings.Count(text, "^")
	if underscoreCount+caretCount > 2 && len(text) < 100 {
		return true
	}

	return false
}

// isNumberedHeading checks if text looks like a numbered section heading
func isNumberedHeading(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return false
	}

	patterns := []string{
		"chapter", "section", "appendix", "abstract", "introduction",
		"conclusion", "references", "bibliography", "acknowledgment",
	}
	textLower := strings.ToLower(text)
	for _, pattern := range patterns {
		if strings.HasPrefix(textLower, pattern) {
			return true
		}
	}

	if len(text) >= 2 {
		if (text[0] >= '0' && text[0] <= '9') || (text[0] >= 'A' && text[0] <= 'Z') {
			i := 0
			for i < len(text) && i < 15 {
				ch := text[i]
				if (ch >= '0' && ch <= '9') || ch == '.' || (ch >= 'A' && ch <= 'Z') {
					i++
				} else {
					break
				}
			}

			if i > 0 && i < len(text) {
				numberPart := text[:i]
				hasDot := strings.Contains(numberPart, ".")
				nextChar := text[i]

				if hasDot && (nextChar == ' ' || nextChar == '\t') {
					remainingText := strings.TrimSpace(text[i:])
					if len(remainingText) < 80 {
						return true
					}
				} else if !hasDot && (nextChar == '.' || nextChar == ')') {
					if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
						remainingText := strings.TrimSpace(text[i+1:])
						if len(remainingText) < 80 {
							return true
						}
					}
				}
			}
		}
	}

	return false
}

// isAllUpperCase checks if text is all uppercase letters
func isAllUpperCase(text string) bool {
	hasLetter := false
	for _, r := range text {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// isListItem checks if text looks like a list item
func isListItem(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) < 2 {
		return false
	}

	firstRune := []rune(text)[0]
	bulletChars := []rune{'•', '◦', '▪', '▫', '●', '○', '■', '□', '-', '*', '–', '—'}
	for _, bullet := range bulletChars {
		if firstRune == bullet {
			return true
		}
	}

	if len(text) >= 3 {
		if text[0] == '(' && (text[2] == ')' || (len(text) > 3 && text[3] == ')')) {
			return true
		}
		if (text[0] >= '0' && text[0] <= '9') || (text[0] >= 'a' && text[0] <= 'z') {
			if text[1] == ')' || text[1] == '.' {
				return true
			}
		}
	}

	return false
}
