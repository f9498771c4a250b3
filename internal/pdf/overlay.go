package pdf

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"

	"pdf-tools/internal/logger"
)

// minOverlayFontSize is the floor for the shrink-to-fit loop, in points.
const minOverlayFontSize = 4.0

// overlayColors is the palette for overlay text.
var overlayColors = map[string][3]int{
	"darkred":   {139, 0, 0},
	"black":     {0, 0, 0},
	"blue":      {0, 0, 255},
	"darkgreen": {0, 100, 0},
	"purple":    {128, 0, 128},
}

// OverlayColorNames returns the supported overlay color names.
func OverlayColorNames() []string {
	return []string{"darkred", "black", "blue", "darkgreen", "purple"}
}

// OverlayOptions configures the translation layer written over a document.
type OverlayOptions struct {
	// LayerName is the optional-content-group name, default "Translation".
	LayerName string
	// TextColor names a palette color, default "darkred".
	TextColor string
	// KeepOriginal keeps the source rendition always visible. When false
	// the original page goes into a default-off "Original" layer.
	KeepOriginal bool
	// FontFile is an optional UTF-8 TTF for non-Latin target scripts.
	FontFile string
}

// OverlayWriter writes translated blocks into a new PDF as an optional
// content layer, with every source page imported unchanged underneath.
type OverlayWriter struct {
	opts      OverlayOptions
	inspector *Inspector
}

// NewOverlayWriter creates a new OverlayWriter
func NewOverlayWriter(opts OverlayOptions) *OverlayWriter {
	if opts.LayerName == "" {
		opts.LayerName = "Translation"
	}
	if opts.TextColor == "" {
		opts.TextColor = "darkred"
	}
	return &OverlayWriter{
		opts:      opts,
		inspector: NewInspector(),
	}
}

// Write produces outputPath from inputPath with translations overlaid.
// Blocks with an empty translation, or a translation identical to the
// source text, are not drawn. The input file is never modified.
func (w *OverlayWriter) Write(inputPath, outputPath string, blocks []TranslatedBlock) (err error) {
	// gofpdi panics on malformed input rather than returning errors.
	defer func() {
		if r := recover(); r != nil {
			err = NewPDFError(ErrGenerateFailed,
				"failed to import source pages", fmt.Errorf("%v", r))
		}
	}()

	sizes, err := w.inspector.PageSizes(inputPath)
	if err != nil {
		return err
	}
	if len(sizes) == 0 {
		return NewPDFError(ErrPDFInvalid, "PDF has no pages", nil)
	}

	color, ok := overlayColors[strings.ToLower(w.opts.TextColor)]
	if !ok {
		return NewPDFErrorWithDetails(ErrGenerateFailed,
			"unknown overlay color", w.opts.TextColor, nil)
	}

	byPage := make(map[int][]TranslatedBlock)
	for _, b := range blocks {
		byPage[b.Page] = append(byPage[b.Page], b)
	}

	doc := fpdf.New("P", "pt", "", "")
	doc.SetAutoPageBreak(false, 0)

	fontFamily := "Helvetica"
	if w.opts.FontFile != "" {
		fontFamily = "overlay"
		doc.AddUTF8Font(fontFamily, "", w.opts.FontFile)
	}

	translationLayer := doc.AddLayer(w.opts.LayerName, true)
	originalLayer := -1
	if !w.opts.KeepOriginal {
		originalLayer = doc.AddLayer("Original", false)
	}
	doc.OpenLayerPane()

	importer := gofpdi.NewImporter()

	for pageNum := 1; pageNum <= len(sizes); pageNum++ {
		size := sizes[pageNum-1]
		doc.AddPageFormat("P", fpdf.SizeType{Wd: size.Width, Ht: size.Height})

		tpl := importer.ImportPage(doc, inputPath, pageNum, "/MediaBox")
		if originalLayer >= 0 {
			doc.BeginLayer(originalLayer)
			importer.UseImportedTemplate(doc, tpl, 0, 0, size.Width, 0)
			doc.EndLayer()
		} else {
			importer.UseImportedTemplate(doc, tpl, 0, 0, size.Width, 0)
		}

		pageBlocks := byPage[pageNum]
		if len(pageBlocks) == 0 {
			continue
		}

		doc.BeginLayer(translationLayer)
		for _, block := range pageBlocks {
			if block.TranslatedText == "" {
				continue
			}
			if IsIdentityTranslation(block.Text, block.TranslatedText) {
				continue
			}
			w.drawBlock(doc, fontFamily, color, size.Height, block)
		}
		doc.EndLayer()
	}

	if err := doc.Error(); err != nil {
		return NewPDFError(ErrGenerateFailed, "failed to build overlay PDF", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return NewPDFError(ErrGenerateFailed, "failed to create output directory", err)
		}
	}
	if err := doc.OutputFileAndClose(outputPath); err != nil {
		return NewPDFError(ErrGenerateFailed, "failed to write output PDF", err)
	}

	logger.Info("overlay PDF written",
		logger.String("output", filepath.Base(outputPath)),
		logger.Int("pages", len(sizes)),
		logger.String("layer", w.opts.LayerName))
	return nil
}

// drawBlock paints one translated block: a white backing rectangle over
// the source text, then the translation shrunk to fit the source bbox.
func (w *OverlayWriter) drawBlock(doc *fpdf.Fpdf, fontFamily string, color [3]int, pageHeight float64, block TranslatedBlock) {
	x := block.X
	y := TopLeftY(block.Y, block.Height, pageHeight)
	width := block.Width
	height := block.Height

	doc.SetFillColor(255, 255, 255)
	doc.Rect(x, y, width, height, "F")

	fontSize := FitFontSize(doc, fontFamily, block.TranslatedText, width, height, block.FontSize)

	doc.SetFont(fontFamily, "", fontSize)
	doc.SetTextColor(color[0], color[1], color[2])
	doc.SetXY(x, y)
	doc.MultiCell(width, fontSize*1.2, block.TranslatedText, "", "L", false)
}

// TopLeftY converts a block's bottom-left PDF y coordinate to the
// top-left origin used by the overlay writer. The transform is its own
// inverse for a fixed page height.
func TopLeftY(y, height, pageHeight float64) float64 {
	return pageHeight - y - height
}

// FitFontSize shrinks the font size stepwise until the wrapped text fits
// the box, with a floor of minOverlayFontSize.
func FitFontSize(doc *fpdf.Fpdf, fontFamily, text string, width, height, startSize float64) float64 {
	if startSize <= 0 {
		startSize = 10.0
	}
	size := startSize
	for size > minOverlayFontSize {
		doc.SetFont(fontFamily, "", size)
		textWidth := doc.GetStringWidth(text)
		lines := math.Ceil(textWidth / math.Max(width, 1))
		if lines*size*1.2 <= height+0.5 {
			return size
		}
		size -= 0.5
	}
	return minOverlayFontSize
}

// IsIdentityTranslation reports whether the translation equals the source
// text modulo case and whitespace. Drawing those would only obscure the
// original.
func IsIdentityTranslation(source, translation string) bool {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	return norm(source) == norm(translation)
}
