package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/ehtisham-afzal/outline/internal/decoration"
)

//go:embed templates/*.html
var templateFS embed.FS

var documentTemplate = template.Must(template.New("document.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/document.html"))

// TemplateData holds data for document template rendering
type TemplateData struct {
	Title       string
	Version     int
	UpdatedAt   time.Time
	ContentHTML template.HTML
	// Contents lists the headings for the table of contents.
	Contents []decoration.Anchor
}

// RenderDocumentHTML renders a standalone HTML page around the content.
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
