package commands

import (
	"log/slog"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/brainatlas/atlasfetch/pkg/allen"
	"github.com/brainatlas/atlasfetch/pkg/config"
	"github.com/brainatlas/atlasfetch/pkg/download"
	"github.com/brainatlas/atlasfetch/pkg/fetch"
	"github.com/brainatlas/atlasfetch/pkg/index"
)

func newSyncCommand() *cobra.Command {
	var (
		configPath string
		strict     bool
		jobs       int
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download every dataset and reference volume in the config, then index them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return oops.Wrapf(err, "failed to load")
			}

			var opts []allen.Option
			if cfg.APIURL != "" {
				opts = append(opts, allen.WithBaseURL(cfg.APIURL))
			}
			client := allen.NewClient(opts...)

			err = fetch.Datasets(ctx, client, fetch.Options{
				OutDir:   cfg.Output,
				Datasets: cfg.Datasets,
				Jobs:     jobs,
				Strict:   strict,
			})
			if err != nil {
				return oops.Wrapf(err, "failed to download datasets")
			}

			for _, ref := range cfg.References {
				dst := filepath.Join(cfg.Output, "reference", ref.Name)
				if err = download.Archive(ctx, ref.URL, dst); err != nil {
					if strict {
						return oops.Wrapf(err, "strict")
					}
					slog.Warn(err.Error(), slog.String("reference", ref.Name), slog.Any("error", err))
				}
			}

			return oops.Wrap(index.Generate(cfg.Output))
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "atlasfetch.yaml", "Config file")
	cmd.Flags().BoolVar(&strict, "strict", false, "Abort on the first dataset error")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "Parallel image downloads per dataset")
	return cmd
}
