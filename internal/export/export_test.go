package export

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"testing"
	"time"

	"github.com/ehtisham-afzal/outline/internal/decoration"
	"github.com/ehtisham-afzal/outline/internal/editor"
	"github.com/ehtisham-afzal/outline/internal/model"
)

func parse(t *testing.T, text string) (*model.Node, []decoration.Anchor) {
	t.Helper()
	m, err := editor.NewManager(editor.Options{})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	doc, _, err := m.Parser().Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", text, err)
	}
	heading, err := m.Schema().NodeType("heading")
	if err != nil {
		t.Fatalf("NodeType(heading) error = %v", err)
	}
	return doc, decoration.HeadingAnchors(doc, heading)
}

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
	}{
		{
			name:     "paragraph with marks",
			input:    "Hello **world** and *you*",
			contains: []string{"<p>Hello <strong>world</strong> and <em>you</em></p>"},
		},
		{
			name:     "heading carries anchor id",
			input:    "# Setup\n\n## Setup",
			contains: []string{`<h1 id="setup">Setup</h1>`, `<h2 id="setup-1">Setup</h2>`},
		},
		{
			name:     "escapes text",
			input:    "a < b & c",
			contains: []string{"<p>a &lt; b &amp; c</p>"},
		},
		{
			name:     "code block language",
			input:    "```go\nx := 1\n```",
			contains: []string{`<pre><code class="language-go">x := 1`},
		},
		{
			name:     "ordered list start",
			input:    "3. three\n4. four",
			contains: []string{`<ol start="3">`, "<li><p>three</p>"},
		},
		{
			name:     "link with title",
			input:    `[docs](https://example.com "Docs")`,
			contains: []string{`<a href="https://example.com" title="Docs">docs</a>`},
		},
		{
			name:     "quote and rule",
			input:    "> quoted\n\n---",
			contains: []string{"<blockquote>\n<p>quoted</p>", "<hr>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, anchors := parse(t, tt.input)
			got := RenderHTML(doc, anchors)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("RenderHTML() = %q, want it to contain %q", got, want)
				}
			}
		})
	}
}

func TestRenderHTMLNil(t *testing.T) {
	if got := RenderHTML(nil, nil); got != "" {
		t.Errorf("RenderHTML(nil) = %q, want empty", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Simple Title", "Simple-Title"},
		{"Title/With\\Slashes", "TitleWithSlashes"},
		{"Special!@#$%Characters", "SpecialCharacters"},
		{"", "document"},
		{"A very long title that exceeds the fifty character limit for filenames", "A-very-long-title-that-exceeds-the-fifty-character"},
	}

	for _, tt := range tests {
		if got := sanitizeFilename(tt.input); got != tt.expected {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL(`<p class="a">x y</p>`)
	want := "%3Cp%20class%3D%22a%22%3Ex%20y%3C%2Fp%3E"
	if got != want {
		t.Errorf("percentEncodeForDataURL() = %q, want %q", got, want)
	}
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]Format{"": FormatMarkdown, "markdown": FormatMarkdown, "md": FormatMarkdown, "html": FormatHTML, "pdf": FormatPDF, "docx": FormatDOCX} {
		got, err := ParseFormat(input)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	if _, err := ParseFormat("odt"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ParseFormat(odt) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestRenderDocumentHTML(t *testing.T) {
	html, err := RenderDocumentHTML(TemplateData{
		Title:       "Guide <draft>",
		Version:     4,
		UpdatedAt:   time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		ContentHTML: template.HTML(`<h1 id="setup">Setup</h1>`),
		Contents:    []decoration.Anchor{{ID: "setup", Level: 1, Text: "Setup"}},
	})
	if err != nil {
		t.Fatalf("RenderDocumentHTML() error = %v", err)
	}
	for _, want := range []string{
		"<title>Guide &lt;draft&gt;</title>",
		"Version 4 | Mar 9, 2024",
		`<a href="#setup">Setup</a>`,
		`<h1 id="setup">Setup</h1>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("RenderDocumentHTML() missing %q", want)
		}
	}
}

type fakeUploader struct {
	key         string
	contentType string
	data        []byte
}

func (f *fakeUploader) Upload(_ context.Context, key string, data []byte, contentType string) (string, error) {
	f.key, f.data, f.contentType = key, data, contentType
	return "https://files.local/" + key, nil
}

func TestServiceExport(t *testing.T) {
	doc, anchors := parse(t, "# Setup\n\nInstall it.")
	document := Document{ID: "doc-1", Title: "Guide", Version: 3, Markdown: "# Setup\n\nInstall it.", Doc: doc, Anchors: anchors}

	res, err := NewService(nil).Export(context.Background(), Request{Document: document, Format: FormatMarkdown})
	if err != nil {
		t.Fatalf("Export(md) error = %v", err)
	}
	if string(res.Data) != document.Markdown || res.Filename != "Guide.md" || res.URL != "" {
		t.Errorf("Export(md) = %+v", res)
	}

	res, err = NewService(nil).Export(context.Background(), Request{Document: document, Format: FormatHTML})
	if err != nil {
		t.Fatalf("Export(html) error = %v", err)
	}
	if !strings.Contains(string(res.Data), `<h1 id="setup">Setup</h1>`) || !strings.Contains(string(res.Data), `href="#setup"`) {
		t.Errorf("Export(html) missing anchors: %s", res.Data)
	}

	_, err = NewService(nil).Export(context.Background(), Request{Document: document, Format: FormatMarkdown, Publish: true})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Export(publish) without storage error = %v, want ErrStorageUnavailable", err)
	}

	uploader := &fakeUploader{}
	res, err = NewService(uploader).Export(context.Background(), Request{Document: document, Format: FormatMarkdown, Publish: true})
	if err != nil {
		t.Fatalf("Export(publish) error = %v", err)
	}
	if uploader.key != "exports/doc-1/3/Guide.md" {
		t.Errorf("uploaded key = %q", uploader.key)
	}
	if res.URL != "https://files.local/exports/doc-1/3/Guide.md" {
		t.Errorf("Result.URL = %q", res.URL)
	}
}

func TestPDFFooterEscapesTitle(t *testing.T) {
	footer := pdfFooter(`Q&A <draft>`)
	if !strings.Contains(footer, "Q&amp;A &lt;draft&gt;") {
		t.Fatalf("title not escaped: %s", footer)
	}
	if !strings.Contains(footer, `class="pageNumber"`) || !strings.Contains(footer, `class="totalPages"`) {
		t.Fatalf("footer lacks page counters: %s", footer)
	}
}
