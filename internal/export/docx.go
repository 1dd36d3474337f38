package export

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const docxMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// exportDOCX converts html to DOCX with pandoc. Pandoc builds the table of
// contents from the heading ids itself.
func exportDOCX(ctx context.Context, html, title string) (*Result, error) {
	bin, err := exec.LookPath("pandoc")
	if err != nil {
		return nil, fmt.Errorf("%w: pandoc not installed", ErrDOCXDependencyMissing)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"--from", "html",
		"--to", "docx",
		"--standalone",
		"--toc",
		"--metadata", "title="+title,
		"--output", "-",
	)
	cmd.Stdin = strings.NewReader(html)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("pandoc: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("pandoc: %w", err)
	}

	return &Result{
		Data:     stdout.Bytes(),
		Filename: sanitizeFilename(title) + ".docx",
		MimeType: docxMime,
	}, nil
}
