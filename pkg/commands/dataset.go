package commands

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/brainatlas/atlasfetch/pkg/allen"
	"github.com/brainatlas/atlasfetch/pkg/config"
	"github.com/brainatlas/atlasfetch/pkg/fetch"
	"github.com/brainatlas/atlasfetch/pkg/index"
)

func newDatasetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Work with single section datasets",
	}
	cmd.AddCommand(newDatasetDownloadCommand(), newDatasetInfoCommand())
	return cmd
}

func newDatasetDownloadCommand() *cobra.Command {
	var (
		apiURL        string
		output        string
		id            int
		downsampleRef int
		downsampleImg int
		expression    bool
		detectionX    float64
		detectionY    float64
		jobs          int
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download and register one section dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []allen.Option
			if apiURL != "" {
				opts = append(opts, allen.WithBaseURL(apiURL))
			}
			client := allen.NewClient(opts...)

			ds := config.Dataset{
				ID:            id,
				DownsampleRef: downsampleRef,
				DownsampleImg: downsampleImg,
				Expression:    expression,
			}
			err := fetch.Dataset(cmd.Context(), client, ds, fetch.Options{
				OutDir:     output,
				DetectionX: detectionX,
				DetectionY: detectionY,
				Jobs:       jobs,
			})
			if err != nil {
				return oops.Wrapf(err, "failed to download the dataset")
			}
			return oops.Wrap(index.Generate(output))
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL override")
	cmd.Flags().StringVar(&output, "output", "atlas-data", "Output directory")
	cmd.Flags().IntVar(&id, "id", 0, "Section dataset id")
	cmd.Flags().IntVar(&downsampleRef, "downsample-ref", config.DefaultDownsampleRef, "Reference space grid downsampling")
	cmd.Flags().IntVar(&downsampleImg, "downsample-img", config.DefaultDownsampleImg, "Image downsampling exponent (factor 2^n)")
	cmd.Flags().BoolVar(&expression, "expression", false, "Also download the expression view")
	cmd.Flags().Float64Var(&detectionX, "detection-x", 0, "Image x coordinate of the detection point")
	cmd.Flags().Float64Var(&detectionY, "detection-y", 0, "Image y coordinate of the detection point")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "Parallel image downloads")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newDatasetInfoCommand() *cobra.Command {
	var (
		apiURL string
		id     int
	)
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print section dataset metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var opts []allen.Option
			if apiURL != "" {
				opts = append(opts, allen.WithBaseURL(apiURL))
			}
			client := allen.NewClient(opts...)

			meta, err := client.Dataset(ctx, id)
			if err != nil {
				return oops.Wrapf(err, "failed to get dataset metadata")
			}
			images, err := client.SectionImages(ctx, id)
			if err != nil {
				return oops.Wrapf(err, "failed to list section images")
			}
			if len(images) == 0 {
				return oops.Code("dataset_info_error").In("commands").With("datasetID", id).
					Errorf("dataset has no section images")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dataset:           %d\n", meta.ID)
			fmt.Fprintf(out, "Plane of section:  %s\n", meta.PlaneOfSection)
			fmt.Fprintf(out, "Section thickness: %g\n", meta.SectionThickness)
			fmt.Fprintf(out, "Genes:             %s\n", strings.Join(meta.Genes, ", "))
			fmt.Fprintf(out, "Section images:    %d\n", len(images))
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL override")
	cmd.Flags().IntVar(&id, "id", 0, "Section dataset id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
