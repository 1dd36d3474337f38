package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ehtisham-afzal/outline/internal/decoration"
	"github.com/ehtisham-afzal/outline/internal/export"
)

func exportCmd() *cobra.Command {
	var (
		format string
		output string
		title  string
	)

	cmd := cobra.Command{
		Use:   "export FILE",
		Short: "Render a markdown file as md, html, pdf or docx. Use - for stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			p, err := parseSource(cmd, args[0])
			if err != nil {
				return err
			}
			anchors := decoration.HeadingAnchors(p.doc, p.heading)
			if title == "" {
				title = documentTitle(args[0], anchors)
			}

			res, err := export.NewService(nil).Export(cmd.Context(), export.Request{
				Document: export.Document{
					ID:       title,
					Title:    title,
					Markdown: p.manager.Serializer().Serialize(p.doc),
					Doc:      p.doc,
					Anchors:  anchors,
				},
				Format: f,
			})
			if err != nil {
				return errors.Wrap(err, "export failed")
			}

			switch output {
			case "-":
				_, err = cmd.OutOrStdout().Write(res.Data)
				return errors.Wrap(err, "failed to write result")
			case "":
				output = res.Filename
			}
			if err := os.WriteFile(output, res.Data, 0o644); err != nil {
				return errors.Wrapf(err, "failed to write %q", output)
			}
			cmd.PrintErrln("wrote", output)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&format, "format", "md", "Output format: md, html, pdf or docx.")
	flags.StringVarP(&output, "output", "o", "-", "Output file; - writes to stdout, empty derives a name from the title.")
	flags.StringVar(&title, "title", "", "Document title; defaults to the first heading.")

	return &cmd
}

func documentTitle(source string, anchors []decoration.Anchor) string {
	for _, a := range anchors {
		if strings.TrimSpace(a.Text) != "" {
			return a.Text
		}
	}
	if source != "-" {
		return strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	return "Untitled"
}
