package commands

import (
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/brainatlas/atlasfetch/pkg/download"
)

func newReferenceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Work with reference volumes",
	}
	cmd.AddCommand(newReferenceDownloadCommand())
	return cmd
}

func newReferenceDownloadCommand() *cobra.Command {
	var (
		output string
		name   string
		url    string
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a reference-volume archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dst := filepath.Join(output, "reference", name)
			return oops.Wrapf(download.Archive(cmd.Context(), url, dst), "failed to download the reference volume")
		},
	}
	cmd.Flags().StringVar(&output, "output", "atlas-data", "Output directory")
	cmd.Flags().StringVar(&name, "name", "", "Reference volume name")
	cmd.Flags().StringVar(&url, "url", "", "Archive URL")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
