package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:           "atlasfetch",
		Short:         "Download atlas data from the Allen Brain Atlas",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if debug {
				slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
					Level: slog.LevelDebug,
				})))
			}
		},
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newSyncCommand(),
		newDatasetCommand(),
		newReferenceCommand(),
		newRequirementsCommand(),
	)
	return cmd
}

func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
