// Package export converts stored section text into downloadable document
// formats.
package export

import "errors"

// Format represents the conversion output format
type Format string

const (
	FormatOriginal Format = "original"
	FormatPDF      Format = "pdf"
	FormatXLSX     Format = "xlsx"
	FormatDOCX     Format = "docx"
	FormatPPTX     Format = "pptx"
	FormatText     Format = "txt"
)

// ParseFormat validates a query-string format value. The empty string
// means "original".
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case "":
		return FormatOriginal, nil
	case FormatOriginal, FormatPDF, FormatXLSX, FormatDOCX, FormatPPTX, FormatText:
		return Format(value), nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Result contains the conversion output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat indicates an unknown format value.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrOfficeDependencyMissing indicates DOCX/PPTX export runtime dependencies are unavailable.
	ErrOfficeDependencyMissing = errors.New("export office dependency missing")
)
