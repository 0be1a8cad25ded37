package fetch

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"

	"github.com/brainatlas/atlasfetch/pkg/allen"
	"github.com/brainatlas/atlasfetch/pkg/config"
	"github.com/brainatlas/atlasfetch/pkg/imaging"
	"github.com/brainatlas/atlasfetch/pkg/manifest"
	"github.com/brainatlas/atlasfetch/pkg/transform"
)

const defaultJobs = 4

type Options struct {
	OutDir   string
	Datasets []config.Dataset

	// DetectionX and DetectionY locate the image point whose reference-space
	// coordinates determine the slice coordinate of each section.
	DetectionX float64
	DetectionY float64

	// Jobs bounds the per-dataset image download parallelism.
	Jobs   int
	Strict bool

	// OnResult, when set, receives every downloaded image together with its
	// displacement field, in no particular order.
	OnResult func(Result) error
}

// Result is one registered section image.
type Result struct {
	DatasetID       int
	Image           allen.SectionImage
	SliceCoordinate float64
	Field           *transform.DisplacementField
	Img             image.Image
}

// Datasets downloads every configured dataset. Unless Strict is set, a
// failing dataset is logged and the remaining ones still get downloaded.
func Datasets(ctx context.Context, client *allen.Client, opts Options) error {
	for _, ds := range opts.Datasets {
		logger := slog.With(slog.Int("dataset", ds.ID))
		logger.Info("Downloading dataset...")
		if err := Dataset(ctx, client, ds, opts); err != nil {
			if opts.Strict {
				return oops.Wrapf(err, "strict")
			}
			logger.Warn(err.Error(), slog.Any("error", err))
		}
	}
	return nil
}

// Dataset downloads a single section dataset into
// <OutDir>/datasets/<id>/ and writes its manifest. The dataset directory is
// reset first. Images are processed in parallel and the manifest lists them
// by section number, highest first.
func Dataset(ctx context.Context, client *allen.Client, ds config.Dataset, opts Options) error {
	errBuilder := oops.Code("fetch_dataset_error").In("fetch").With("datasetID", ds.ID)

	meta, err := client.Dataset(ctx, ds.ID)
	if err != nil {
		return errBuilder.Wrapf(err, "failed to get dataset metadata")
	}

	images, err := client.SectionImages(ctx, ds.ID)
	if err != nil {
		return errBuilder.Wrapf(err, "failed to list section images")
	}
	if len(images) == 0 {
		slog.Warn("Dataset has no section images", slog.Int("dataset", ds.ID))
		return nil
	}

	a3d, err := client.Alignment3D(ctx, ds.ID)
	if err != nil {
		return errBuilder.Wrapf(err, "failed to get 3D alignment")
	}

	dir := filepath.Join(opts.OutDir, "datasets", strconv.Itoa(ds.ID))

	// Reset the directory
	if err = os.RemoveAll(dir); err != nil {
		return errBuilder.Wrapf(err, "failed to remove the directory")
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return errBuilder.Wrapf(err, "failed to create a directory")
	}

	jobs := opts.Jobs
	if jobs < 1 {
		jobs = defaultJobs
	}

	entries := make([]manifest.Image, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			entry, err := fetchImage(gctx, client, meta, img, a3d, ds, dir, opts)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return errBuilder.Wrap(err)
	}

	m := manifest.Manifest{
		DatasetID:      ds.ID,
		PlaneOfSection: string(meta.PlaneOfSection),
		DownsampleRef:  ds.DownsampleRef,
		DownsampleImg:  ds.DownsampleImg,
		Images:         entries,
	}
	if err = manifest.Write(filepath.Join(dir, manifest.FileName), m); err != nil {
		return errBuilder.Wrap(err)
	}
	return nil
}

func fetchImage(ctx context.Context, client *allen.Client, meta *allen.Dataset, img allen.SectionImage, a3d transform.Affine3D, ds config.Dataset, dir string, opts Options) (manifest.Image, error) {
	errBuilder := oops.Code("fetch_image_error").In("fetch").With("imageID", img.ID)
	logger := slog.With(slog.Int("dataset", ds.ID), slog.Int("image", img.ID))

	pt, err := client.ImageToReference(ctx, img.ID, opts.DetectionX, opts.DetectionY)
	if err != nil {
		return manifest.Image{}, errBuilder.Wrapf(err, "failed to resolve the detection point")
	}

	// The slice is assumed parallel to the sectioning axis.
	sliceCoord := pt.P
	if meta.PlaneOfSection == transform.Sagittal {
		sliceCoord = pt.R
	}

	field, err := transform.ParallelTransform(sliceCoord, img.Alignment, a3d, meta.PlaneOfSection, ds.DownsampleRef, ds.DownsampleImg)
	if err != nil {
		return manifest.Image{}, errBuilder.Wrapf(err, "failed to compute the displacement field")
	}

	logger.Debug("Downloading section image", slog.Float64("sliceCoordinate", sliceCoord))
	decoded, err := downloadImage(ctx, client, img.ID, ds.DownsampleImg, false)
	if err != nil {
		return manifest.Image{}, errBuilder.Wrap(err)
	}

	entry := manifest.Image{
		ID:              img.ID,
		SectionNumber:   img.SectionNumber,
		SliceCoordinate: sliceCoord,
		Path:            fmt.Sprintf("%d.png", img.ID),
	}
	if err = imaging.WritePNG(filepath.Join(dir, entry.Path), decoded); err != nil {
		return manifest.Image{}, errBuilder.Wrap(err)
	}

	if ds.Expression {
		expr, err := downloadImage(ctx, client, img.ID, ds.DownsampleImg, true)
		if err != nil {
			return manifest.Image{}, errBuilder.Wrap(err)
		}
		entry.ExpressionPath = fmt.Sprintf("%d_expression.png", img.ID)
		if err = imaging.WritePNG(filepath.Join(dir, entry.ExpressionPath), expr); err != nil {
			return manifest.Image{}, errBuilder.Wrap(err)
		}
	}

	if opts.OnResult != nil {
		err = opts.OnResult(Result{
			DatasetID:       ds.ID,
			Image:           img,
			SliceCoordinate: sliceCoord,
			Field:           field,
			Img:             decoded,
		})
		if err != nil {
			return manifest.Image{}, errBuilder.Wrapf(err, "result handler error")
		}
	}

	return entry, nil
}

func downloadImage(ctx context.Context, client *allen.Client, imageID, downsample int, expression bool) (image.Image, error) {
	data, err := client.DownloadImage(ctx, imageID, downsample, expression)
	if err != nil {
		return nil, err
	}
	return imaging.DecodeJPEG(data)
}
