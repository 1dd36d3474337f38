package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ehtisham-afzal/outline/internal/decoration"
)

func anchorsCmd() *cobra.Command {
	var asJSON bool

	cmd := cobra.Command{
		Use:   "anchors FILE",
		Short: "List the heading anchors of a markdown file. Use - for stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseSource(cmd, args[0])
			if err != nil {
				return err
			}
			anchors := decoration.HeadingAnchors(p.doc, p.heading)

			if asJSON {
				if anchors == nil {
					anchors = []decoration.Anchor{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return errors.Wrap(enc.Encode(anchors), "failed to encode anchors")
			}

			for _, a := range anchors {
				indent := strings.Repeat("  ", max(a.Level-1, 0))
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s#%s\t%s\n", indent, a.ID, a.Text); err != nil {
					return errors.Wrap(err, "failed to write anchors")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print anchors as JSON.")

	return &cmd
}
