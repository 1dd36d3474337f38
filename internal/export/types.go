// Package export renders documents to markdown, HTML, PDF and DOCX and can
// publish the result to object storage.
package export

import (
	"errors"
	"fmt"
	"time"

	"github.com/ehtisham-afzal/outline/internal/decoration"
	"github.com/ehtisham-afzal/outline/internal/model"
)

// Format represents the export output format
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
)

// ParseFormat accepts a format name, defaulting to markdown when empty.
func ParseFormat(value string) (Format, error) {
	switch f := Format(value); f {
	case "", "markdown":
		return FormatMarkdown, nil
	case FormatMarkdown, FormatHTML, FormatPDF, FormatDOCX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
	}
}

// Document is what gets exported: the node tree for rich formats, the
// markdown for plain text, and the heading anchors so exported headings
// keep the identifiers copied links point at.
type Document struct {
	ID        string
	Title     string
	Version   int
	Markdown  string
	Doc       *model.Node
	Anchors   []decoration.Anchor
	UpdatedAt time.Time
}

// Request contains parameters for an export operation
type Request struct {
	Document Document
	Format   Format
	// Publish uploads the result and fills Result.URL.
	Publish bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	URL      string
}

var (
	ErrUnsupportedFormat     = errors.New("unsupported export format")
	ErrPDFDependencyMissing  = errors.New("export pdf dependency missing")
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
	ErrStorageUnavailable    = errors.New("export storage not configured")
)
