// Package pdf provides the translation-layer pipeline: text extraction,
// batch translation, caching, and overlay generation for PDF documents.
package pdf

import "time"

// PDFInfo holds basic information about a PDF file.
type PDFInfo struct {
	FilePath  string `json:"file_path"`
	FileName  string `json:"file_name"`
	PageCount int    `json:"page_count"`
	FileSize  int64  `json:"file_size"`
	IsTextPDF bool   `json:"is_text_pdf"`
}

// TextBlock is a positioned run of text extracted from a PDF page.
// Coordinates are in PDF points with the origin at the bottom-left corner.
type TextBlock struct {
	ID        string  `json:"id"`
	Page      int     `json:"page"`
	Text      string  `json:"text"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	FontSize  float64 `json:"font_size"`
	FontName  string  `json:"font_name"`
	IsBold    bool    `json:"is_bold"`
	IsItalic  bool    `json:"is_italic"`
	BlockType string  `json:"block_type"` // paragraph, heading, caption, etc.
}

// TranslatedBlock pairs a source block with its translation.
// An empty TranslatedText means the block keeps its original text and
// the overlay writer draws nothing for it.
type TranslatedBlock struct {
	TextBlock
	TranslatedText string `json:"translated_text"`
	FromCache      bool   `json:"from_cache"`
}

// TranslationResult summarizes a completed pipeline run.
type TranslationResult struct {
	OriginalPDFPath   string `json:"original_pdf_path"`
	TranslatedPDFPath string `json:"translated_pdf_path"`
	TotalBlocks       int    `json:"total_blocks"`
	TranslatedBlocks  int    `json:"translated_blocks"`
	SkippedBlocks     int    `json:"skipped_blocks"`
	FailedBlocks      int    `json:"failed_blocks"`
	CachedBlocks      int    `json:"cached_blocks"`
}

// CacheEntry is one stored translation keyed by the hash of its source text.
type CacheEntry struct {
	Hash        string    `json:"hash"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheFile is the on-disk cache format.
type CacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// PDFErrorCode enumerates PDF processing error categories.
type PDFErrorCode string

const (
	ErrPDFNotFound     PDFErrorCode = "PDF_NOT_FOUND"
	ErrPDFInvalid      PDFErrorCode = "PDF_INVALID"
	ErrPDFEncrypted    PDFErrorCode = "PDF_ENCRYPTED"
	ErrPDFNoText       PDFErrorCode = "PDF_NO_TEXT"
	ErrExtractFailed   PDFErrorCode = "EXTRACT_FAILED"
	ErrTranslateFailed PDFErrorCode = "TRANSLATE_FAILED"
	ErrGenerateFailed  PDFErrorCode = "GENERATE_FAILED"
	ErrCacheFailed     PDFErrorCode = "CACHE_FAILED"
	ErrAPIFailed       PDFErrorCode = "API_FAILED"
	ErrCancelled       PDFErrorCode = "CANCELLED"
)

// PDFError is the error type for PDF processing failures.
type PDFError struct {
	Code    PDFErrorCode `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Cause   error        `json:"-"`
}

// Error implements the error interface for PDFError
func (e *PDFError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error
func (e *PDFError) Unwrap() error {
	return e.Cause
}

// NewPDFError creates a new PDFError with the given code, message, and optional cause
func NewPDFError(code PDFErrorCode, message string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewPDFErrorWithDetails creates a new PDFError with details
func NewPDFErrorWithDetails(code PDFErrorCode, message, details string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// IsValidTextBlock checks if the TextBlock has valid values
func (b *TextBlock) IsValidTextBlock() bool {
	return b.X >= 0 && b.Y >= 0 &&
		b.Width >= 0 && b.Height >= 0 &&
		b.Page > 0 && len(b.Text) > 0
}
