package export

import (
	"bytes"
	"html/template"
	"strings"
)

// TemplateData holds data for the HTML rendition used by the PDF, DOCX and
// PPTX converters.
type TemplateData struct {
	Title       string
	SectionName string
	ContentHTML template.HTML
}

var documentTemplate = template.Must(template.New("document").Parse(documentTemplateHTML))

// ContentToHTML escapes the stored plain text and turns blank-line-separated
// blocks into paragraphs.
func ContentToHTML(content string) template.HTML {
	blocks := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n")
	var b strings.Builder
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		escaped := template.HTMLEscapeString(block)
		escaped = strings.ReplaceAll(escaped, "\n", "<br>")
		b.WriteString("<p>")
		b.WriteString(escaped)
		b.WriteString("</p>\n")
	}
	return template.HTML(b.String())
}

// RenderDocumentHTML renders the document template with provided data
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const documentTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{if .SectionName}}<div class="meta">{{.SectionName}}</div>{{end}}
  <div>{{.ContentHTML}}</div>
</body>
</html>`
