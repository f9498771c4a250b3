package pdf

import (
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pdf-tools/internal/logger"
)

// Inspector validates PDF files and reads structural information
// through pdfcpu.
type Inspector struct {
	conf *model.Configuration
}

// NewInspector creates a new Inspector with the default pdfcpu configuration
func NewInspector() *Inspector {
	return &Inspector{
		conf: model.NewDefaultConfiguration(),
	}
}

// Validate checks that the file is a structurally valid, unencrypted PDF.
func (in *Inspector) Validate(pdfPath string) error {
	if err := api.ValidateFile(pdfPath, in.conf); err != nil {
		if isEncryptionError(err) {
			return NewPDFError(ErrPDFEncrypted, "PDF file is encrypted", err)
		}
		return NewPDFError(ErrPDFInvalid, "PDF file is not valid", err)
	}
	return nil
}

// PageCount returns the number of pages in the PDF.
func (in *Inspector) PageCount(pdfPath string) (int, error) {
	ctx, err := api.ReadContextFile(pdfPath)
	if err != nil {
		if isEncryptionError(err) {
			return 0, NewPDFError(ErrPDFEncrypted, "PDF file is encrypted", err)
		}
		return 0, NewPDFError(ErrPDFInvalid, "cannot read PDF file", err)
	}
	return ctx.PageCount, nil
}

// PageSize holds the media box dimensions of one page in PDF points.
type PageSize struct {
	Width  float64
	Height float64
}

// PageSizes returns the dimensions of every page, 1-based by index+1.
func (in *Inspector) PageSizes(pdfPath string) ([]PageSize, error) {
	dims, err := api.PageDimsFile(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "cannot read page dimensions", err)
	}

	sizes := make([]PageSize, len(dims))
	for i, d := range dims {
		sizes[i] = PageSize{Width: d.Width, Height: d.Height}
	}

	logger.Debug("page dimensions read",
		logger.String("file", pdfPath),
		logger.Int("pages", len(sizes)))
	return sizes, nil
}

func isEncryptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "encrypt") || strings.Contains(msg, "password")
}
