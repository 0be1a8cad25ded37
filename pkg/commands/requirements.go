package commands

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/brainatlas/atlasfetch/pkg/requirements"
)

func newRequirementsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requirements",
		Short: "Work with pinned dependency manifests",
	}
	cmd.AddCommand(newRequirementsVerifyCommand())
	return cmd
}

func newRequirementsVerifyCommand() *cobra.Command {
	var purl bool
	cmd := &cobra.Command{
		Use:   "verify FILE",
		Short: "Validate a pinned dependency manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := requirements.ParseFile(args[0])
			if err != nil {
				return oops.Wrapf(err, "invalid manifest")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d pinned packages\n", args[0], len(m.Pins))
			if purl {
				for _, pin := range m.Pins {
					fmt.Fprintln(out, pin.PURL())
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&purl, "purl", false, "Print each pin as a package URL")
	return cmd
}
