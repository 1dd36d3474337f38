package cli

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var errNotFormatted = errors.New("file is not in canonical format")

func fmtCmd() *cobra.Command {
	var check bool

	cmd := cobra.Command{
		Use:   "fmt FILE",
		Short: "Rewrite a markdown file in canonical form. Use - for stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := parseData(cmd, source)
			if err != nil {
				return err
			}
			result := []byte(p.manager.Serializer().Serialize(p.doc))
			if len(result) > 0 {
				result = append(result, '\n')
			}

			if check {
				if !bytes.Equal(bytes.TrimRight(source, "\n"), bytes.TrimRight(result, "\n")) {
					return errors.Wrapf(errNotFormatted, "%s", args[0])
				}
				return nil
			}

			_, err = cmd.OutOrStdout().Write(result)
			return errors.Wrap(err, "failed to write result")
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Exit with an error instead of printing when the file is not canonical.")

	return &cmd
}
