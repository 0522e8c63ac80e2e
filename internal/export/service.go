package export

import (
	"fmt"
)

// Service converts stored section text into download formats. It is
// stateless; callers pass the content and the name the download should
// carry.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Convert produces the requested rendition of the given plain-text content.
// FormatOriginal is not handled here; the caller streams the stored file
// for that case.
func (s *Service) Convert(content, baseName, sectionName string, format Format) (*Result, error) {
	switch format {
	case FormatText:
		return &Result{
			Data:     []byte(content),
			Filename: sanitizeFilename(baseName) + ".txt",
			MimeType: "text/plain; charset=utf-8",
		}, nil
	case FormatXLSX:
		return exportXLSX(content, baseName)
	case FormatPDF, FormatDOCX, FormatPPTX:
		html, err := RenderDocumentHTML(TemplateData{
			Title:       baseName,
			SectionName: sectionName,
			ContentHTML: ContentToHTML(content),
		})
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		switch format {
		case FormatPDF:
			return exportPDF(html, baseName)
		case FormatDOCX:
			return exportDOCX(html, baseName)
		default:
			return exportPPTX(html, baseName)
		}
	default:
		return nil, ErrUnsupportedFormat
	}
}

// sanitizeFilename creates a safe filename from a display name
func sanitizeFilename(name string) string {
	result := ""
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		default:
			// Skip other characters
		}
	}

	if len(result) > 50 {
		result = result[:50]
	}

	if result == "" {
		result = "dokumen"
	}

	return result
}
