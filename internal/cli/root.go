// Package cli implements the doctool commands for working with markdown
// documents from the shell.
package cli

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ehtisham-afzal/outline/internal/editor"
	"github.com/ehtisham-afzal/outline/internal/extension"
	"github.com/ehtisham-afzal/outline/internal/model"
)

var headingLevels int

func Root() *cobra.Command {
	cmd := cobra.Command{
		Use:           "doctool",
		Short:         "Inspect, normalise and export markdown documents",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pflags := cmd.PersistentFlags()
	pflags.IntVar(&headingLevels, "heading-levels", 4, "Number of heading levels the schema allows.")

	cmd.AddCommand(anchorsCmd())
	cmd.AddCommand(fmtCmd())
	cmd.AddCommand(exportCmd())

	return &cmd
}

// readSource reads the named file, or stdin when name is "-".
func readSource(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return data, errors.Wrap(err, "failed to read from stdin")
	}
	data, err := os.ReadFile(name)
	return data, errors.Wrapf(err, "failed to read file %q", name)
}

type parsed struct {
	manager *extension.Manager
	doc     *model.Node
	heading *model.NodeType
}

func parseSource(cmd *cobra.Command, name string) (*parsed, error) {
	data, err := readSource(cmd, name)
	if err != nil {
		return nil, err
	}
	return parseData(cmd, data)
}

// parseData parses markdown with the default schema, reporting degraded
// content on stderr.
func parseData(cmd *cobra.Command, data []byte) (*parsed, error) {
	manager, err := editor.NewManager(editor.Options{HeadingLevels: headingLevels})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build schema")
	}
	doc, warnings, err := manager.Parser().Parse(string(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}
	for _, w := range warnings {
		cmd.PrintErrln("warning:", w.String())
	}
	heading, err := manager.Schema().NodeType("heading")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &parsed{manager: manager, doc: doc, heading: heading}, nil
}
