// Package organizer implements page reorganization across multiple PDFs:
// building an ordered page list, reordering and deselecting pages, and
// assembling an output PDF whose pages are exact copies of the sources.
package organizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pdf-tools/internal/logger"
	"pdf-tools/internal/types"
)

// Document is one loaded source PDF.
type Document struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	PageCount int    `json:"page_count"`
}

// PageRef identifies one page of one loaded document.
type PageRef struct {
	FileIndex int  `json:"file_index"` // 0-based index into Documents
	Page      int  `json:"page"`       // 1-based page in the source file
	Selected  bool `json:"selected"`
}

// PageItem is a PageRef decorated for display.
type PageItem struct {
	PageRef
	Label string `json:"label"` // "file.pdf — Page N"
	URL   string `json:"url"`   // source document URL for preview
}

// Organizer holds the working set of documents and the arranged page list.
type Organizer struct {
	mu    sync.RWMutex
	docs  []Document
	pages []PageRef
	conf  *model.Configuration
}

// New creates an empty Organizer
func New() *Organizer {
	return &Organizer{
		conf: model.NewDefaultConfiguration(),
	}
}

// AddPDF validates the file, appends it to the document list and appends
// all of its pages, selected, to the end of the page list.
func (o *Organizer) AddPDF(path string) (*Document, error) {
	return o.InsertPDF(path, -1)
}

// InsertPDF is AddPDF with the pages inserted at a position in the page
// list. A negative position appends.
func (o *Organizer) InsertPDF(path string, at int) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "file does not exist", err)
	}
	if err := api.ValidateFile(path, o.conf); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"not a valid PDF", filepath.Base(path), err)
	}

	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "cannot read PDF", err)
	}
	if ctx.PageCount == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"PDF has no pages", filepath.Base(path), nil)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	doc := Document{
		Path:      path,
		Name:      filepath.Base(path),
		PageCount: ctx.PageCount,
	}
	o.docs = append(o.docs, doc)
	fileIndex := len(o.docs) - 1

	newPages := make([]PageRef, 0, doc.PageCount)
	for page := 1; page <= doc.PageCount; page++ {
		newPages = append(newPages, PageRef{
			FileIndex: fileIndex,
			Page:      page,
			Selected:  true,
		})
	}

	if at < 0 || at >= len(o.pages) {
		o.pages = append(o.pages, newPages...)
	} else {
		o.pages = append(o.pages[:at], append(newPages, o.pages[at:]...)...)
	}

	logger.Info("PDF added to organizer",
		logger.String("file", doc.Name),
		logger.Int("pages", doc.PageCount),
		logger.Int("totalPages", len(o.pages)))

	return &doc, nil
}

// Documents returns a copy of the loaded documents.
func (o *Organizer) Documents() []Document {
	o.mu.RLock()
	defer o.mu.RUnlock()

	docs := make([]Document, len(o.docs))
	copy(docs, o.docs)
	return docs
}

// Pages returns the arranged page list as display items.
func (o *Organizer) Pages() []PageItem {
	o.mu.RLock()
	defer o.mu.RUnlock()

	items := make([]PageItem, len(o.pages))
	for i, ref := range o.pages {
		doc := o.docs[ref.FileIndex]
		items[i] = PageItem{
			PageRef: ref,
			Label:   fmt.Sprintf("%s — Page %d", doc.Name, ref.Page),
		}
	}
	return items
}

// MovePage moves the page at index from to index to.
func (o *Organizer) MovePage(from, to int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if from < 0 || from >= len(o.pages) || to < 0 || to >= len(o.pages) {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"page index out of range", fmt.Sprintf("from=%d to=%d len=%d", from, to, len(o.pages)), nil)
	}
	if from == to {
		return nil
	}

	page := o.pages[from]
	o.pages = append(o.pages[:from], o.pages[from+1:]...)
	o.pages = append(o.pages[:to], append([]PageRef{page}, o.pages[to:]...)...)
	return nil
}

// ToggleSelection flips whether the page at index is included in the output.
func (o *Organizer) ToggleSelection(index int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if index < 0 || index >= len(o.pages) {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"page index out of range", strconv.Itoa(index), nil)
	}
	o.pages[index].Selected = !o.pages[index].Selected
	return nil
}

// RemovePage removes the page at index from the list. The source file is
// untouched.
func (o *Organizer) RemovePage(index int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if index < 0 || index >= len(o.pages) {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"page index out of range", strconv.Itoa(index), nil)
	}
	o.pages = append(o.pages[:index], o.pages[index+1:]...)
	return nil
}

// SetOrder replaces the arranged page list. Every reference must point at
// a loaded document and an existing page.
func (o *Organizer) SetOrder(refs []PageRef) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, ref := range refs {
		if ref.FileIndex < 0 || ref.FileIndex >= len(o.docs) {
			return types.NewAppErrorWithDetails(types.ErrInvalidInput,
				"file reference out of range", fmt.Sprintf("file %d", ref.FileIndex+1), nil)
		}
		if ref.Page < 1 || ref.Page > o.docs[ref.FileIndex].PageCount {
			return types.NewAppErrorWithDetails(types.ErrInvalidInput,
				"page reference out of range",
				fmt.Sprintf("%s page %d", o.docs[ref.FileIndex].Name, ref.Page), nil)
		}
	}

	o.pages = make([]PageRef, len(refs))
	copy(o.pages, refs)
	return nil
}

// Clear removes all documents and pages.
func (o *Organizer) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.docs = nil
	o.pages = nil
}

// Assemble writes the selected pages, in list order, to outputPath.
// Pages are exact copies: the sources are merged unchanged and the
// arranged pages collected from the merged file, with no re-rendering.
func (o *Organizer) Assemble(outputPath string) error {
	o.mu.RLock()
	docs := make([]Document, len(o.docs))
	copy(docs, o.docs)
	pages := make([]PageRef, 0, len(o.pages))
	for _, ref := range o.pages {
		if ref.Selected {
			pages = append(pages, ref)
		}
	}
	o.mu.RUnlock()

	if len(docs) == 0 {
		return types.NewAppError(types.ErrInvalidInput, "no PDFs loaded", nil)
	}
	if len(pages) == 0 {
		return types.NewAppError(types.ErrInvalidInput, "no pages selected", nil)
	}

	// Page offsets of each document inside the merged file.
	offsets := make([]int, len(docs))
	total := 0
	for i, doc := range docs {
		offsets[i] = total
		total += doc.PageCount
	}

	inputPaths := make([]string, len(docs))
	for i, doc := range docs {
		inputPaths[i] = doc.Path
	}

	tmpDir, err := os.MkdirTemp("", "pdf-tools-organize-")
	if err != nil {
		return types.NewAppError(types.ErrOutput, "failed to create temp directory", err)
	}
	defer os.RemoveAll(tmpDir)

	merged := filepath.Join(tmpDir, "merged.pdf")
	if err := api.MergeCreateFile(inputPaths, merged, false, o.conf); err != nil {
		return types.NewAppError(types.ErrOutput, "failed to merge source PDFs", err)
	}

	selection := make([]string, len(pages))
	for i, ref := range pages {
		selection[i] = strconv.Itoa(offsets[ref.FileIndex] + ref.Page)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewAppError(types.ErrOutput, "failed to create output directory", err)
		}
	}

	if err := api.CollectFile(merged, outputPath, selection, o.conf); err != nil {
		return types.NewAppError(types.ErrOutput, "failed to collect pages", err)
	}

	logger.Info("arranged PDF written",
		logger.String("output", filepath.Base(outputPath)),
		logger.Int("pages", len(pages)),
		logger.Int("sources", len(docs)))

	return nil
}

// MergedSelection maps arranged page refs to 1-based page numbers inside
// a file produced by merging the documents in order.
func MergedSelection(docs []Document, pages []PageRef) ([]string, error) {
	offsets := make([]int, len(docs))
	total := 0
	for i, doc := range docs {
		offsets[i] = total
		total += doc.PageCount
	}

	selection := make([]string, len(pages))
	for i, ref := range pages {
		if ref.FileIndex < 0 || ref.FileIndex >= len(docs) {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
				"file reference out of range", fmt.Sprintf("file %d", ref.FileIndex+1), nil)
		}
		if ref.Page < 1 || ref.Page > docs[ref.FileIndex].PageCount {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
				"page reference out of range",
				fmt.Sprintf("%s page %d", docs[ref.FileIndex].Name, ref.Page), nil)
		}
		selection[i] = strconv.Itoa(offsets[ref.FileIndex] + ref.Page)
	}
	return selection, nil
}

// ParseOrderSpec parses a CLI order specification into page references.
// Tokens are "file.page" where file is a 1-based number or a letter
// (A=first input, B=second, ...). With a single document a bare page
// number is also accepted.
func ParseOrderSpec(spec string, docs []Document) ([]PageRef, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, types.NewAppError(types.ErrInvalidInput, "order specification is empty", nil)
	}

	var refs []PageRef
	for _, raw := range strings.Split(spec, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}

		fileIdx := -1
		pageToken := token

		if dot := strings.Index(token, "."); dot >= 0 {
			fileToken := token[:dot]
			pageToken = token[dot+1:]

			idx, err := parseFileToken(fileToken)
			if err != nil {
				return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
					"invalid file reference", token, err)
			}
			fileIdx = idx
		} else {
			// Bare page numbers are only unambiguous with one input.
			if len(docs) != 1 {
				return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
					"bare page number requires exactly one input file", token, nil)
			}
			fileIdx = 0
		}

		page, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
				"invalid page number", token, err)
		}

		if fileIdx < 0 || fileIdx >= len(docs) {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
				"file reference out of range", token, nil)
		}
		if page < 1 || page > docs[fileIdx].PageCount {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput,
				"page reference out of range", token, nil)
		}

		refs = append(refs, PageRef{FileIndex: fileIdx, Page: page, Selected: true})
	}

	if len(refs) == 0 {
		return nil, types.NewAppError(types.ErrInvalidInput, "order specification has no pages", nil)
	}
	return refs, nil
}

// parseFileToken turns "1" or "A"/"a" into a 0-based file index.
func parseFileToken(token string) (int, error) {
	if token == "" {
		return 0, fmt.Errorf("empty file reference")
	}

	if n, err := strconv.Atoi(token); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("file number must be positive")
		}
		return n - 1, nil
	}

	if len(token) == 1 {
		c := token[0]
		if c >= 'A' && c <= 'Z' {
			return int(c - 'A'), nil
		}
		if c >= 'a' && c <= 'z' {
			return int(c - 'a'), nil
		}
	}

	return 0, fmt.Errorf("unrecognized file reference %q", token)
}
