package export

import (
	"context"
	"fmt"
	"html/template"
)

// Service renders exports and optionally publishes them.
type Service struct {
	uploader Uploader
}

// NewService creates an export service. uploader may be nil, in which
// case publishing fails with ErrStorageUnavailable.
func NewService(uploader Uploader) *Service {
	return &Service{uploader: uploader}
}

// Export renders req.Document in req.Format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	res, err := s.render(ctx, req.Document, req.Format)
	if err != nil {
		return nil, err
	}
	if !req.Publish {
		return res, nil
	}
	if s.uploader == nil {
		return nil, ErrStorageUnavailable
	}
	url, err := s.uploader.Upload(ctx, objectKey(req.Document, res.Filename), res.Data, res.MimeType)
	if err != nil {
		return nil, fmt.Errorf("publish export: %w", err)
	}
	res.URL = url
	return res, nil
}

func (s *Service) render(ctx context.Context, doc Document, format Format) (*Result, error) {
	if format == FormatMarkdown {
		return &Result{
			Data:     []byte(doc.Markdown),
			Filename: sanitizeFilename(doc.Title) + ".md",
			MimeType: "text/markdown; charset=utf-8",
		}, nil
	}

	html, err := RenderDocumentHTML(TemplateData{
		Title:       doc.Title,
		Version:     doc.Version,
		UpdatedAt:   doc.UpdatedAt,
		ContentHTML: template.HTML(RenderHTML(doc.Doc, doc.Anchors)),
		Contents:    doc.Anchors,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(doc.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(ctx, html, doc.Title)
	case FormatDOCX:
		return exportDOCX(ctx, html, doc.Title)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
