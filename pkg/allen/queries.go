package allen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"github.com/samber/oops"

	"github.com/brainatlas/atlasfetch/pkg/transform"
)

// SectionImage is the metadata of a single section image within a dataset.
type SectionImage struct {
	ID            int
	SectionNumber int
	// Alignment maps the intermediate section plane onto image pixels.
	Alignment transform.Affine2D
}

// Dataset is the metadata of a section dataset.
type Dataset struct {
	ID               int
	PlaneOfSection   transform.Axis
	SectionThickness float64
	Genes            []string
}

// ReferencePoint is a point in the common reference space, in microns.
type ReferencePoint struct {
	P float64 `json:"x"`
	I float64 `json:"y"`
	R float64 `json:"z"`
}

type alignment2d struct {
	Tvs00 float64 `json:"tvs_00"`
	Tvs01 float64 `json:"tvs_01"`
	Tvs02 float64 `json:"tvs_02"`
	Tvs03 float64 `json:"tvs_03"`
	Tvs04 float64 `json:"tvs_04"`
	Tvs05 float64 `json:"tvs_05"`
}

type alignment3d struct {
	Tvr00 float64 `json:"tvr_00"`
	Tvr01 float64 `json:"tvr_01"`
	Tvr02 float64 `json:"tvr_02"`
	Tvr03 float64 `json:"tvr_03"`
	Tvr04 float64 `json:"tvr_04"`
	Tvr05 float64 `json:"tvr_05"`
	Tvr06 float64 `json:"tvr_06"`
	Tvr07 float64 `json:"tvr_07"`
	Tvr08 float64 `json:"tvr_08"`
	Tvr09 float64 `json:"tvr_09"`
	Tvr10 float64 `json:"tvr_10"`
	Tvr11 float64 `json:"tvr_11"`
}

// SectionImages returns the alignment metadata of every image in the dataset,
// sorted by section number, highest first.
func (c *Client) SectionImages(ctx context.Context, datasetID int) ([]SectionImage, error) {
	errBuilder := oops.Code("section_images_error").In("allen").With("datasetID", datasetID)

	criteria := fmt.Sprintf("model::SectionImage,rma::criteria,[data_set_id$eq%d],rma::include,alignment2d", datasetID)
	msg, err := c.rma(ctx, criteria)
	if err != nil {
		return nil, errBuilder.Wrap(err)
	}

	var rows []struct {
		ID            int          `json:"id"`
		SectionNumber int          `json:"section_number"`
		Alignment2D   *alignment2d `json:"alignment2d"`
	}
	if err = json.Unmarshal(msg, &rows); err != nil {
		return nil, errBuilder.Wrapf(err, "failed to decode section images")
	}

	var images []SectionImage
	for _, row := range rows {
		if row.Alignment2D == nil {
			return nil, errBuilder.With("imageID", row.ID).Errorf("section image has no 2D alignment")
		}
		a := row.Alignment2D
		images = append(images, SectionImage{
			ID:            row.ID,
			SectionNumber: row.SectionNumber,
			Alignment: transform.NewAffine2D([6]float64{
				a.Tvs00, a.Tvs01, a.Tvs04,
				a.Tvs02, a.Tvs03, a.Tvs05,
			}),
		})
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].SectionNumber > images[j].SectionNumber
	})
	return images, nil
}

// Alignment3D returns the dataset's reference-space-to-image affine.
func (c *Client) Alignment3D(ctx context.Context, datasetID int) (transform.Affine3D, error) {
	errBuilder := oops.Code("alignment3d_error").In("allen").With("datasetID", datasetID)

	criteria := fmt.Sprintf("model::SectionDataSet,rma::criteria,[id$eq%d],rma::include,alignment3d", datasetID)
	msg, err := c.rma(ctx, criteria)
	if err != nil {
		return transform.Affine3D{}, errBuilder.Wrap(err)
	}

	var rows []struct {
		Alignment3D *alignment3d `json:"alignment3d"`
	}
	if err = json.Unmarshal(msg, &rows); err != nil {
		return transform.Affine3D{}, errBuilder.Wrapf(err, "failed to decode dataset")
	}
	if len(rows) == 0 {
		return transform.Affine3D{}, errBuilder.Errorf("dataset not found")
	}
	if rows[0].Alignment3D == nil {
		return transform.Affine3D{}, errBuilder.Errorf("dataset has no 3D alignment")
	}

	a := rows[0].Alignment3D
	return transform.NewAffine3D([12]float64{
		a.Tvr00, a.Tvr01, a.Tvr02, a.Tvr09,
		a.Tvr03, a.Tvr04, a.Tvr05, a.Tvr10,
		a.Tvr06, a.Tvr07, a.Tvr08, a.Tvr11,
	}), nil
}

// Dataset returns the dataset metadata.
func (c *Client) Dataset(ctx context.Context, datasetID int) (*Dataset, error) {
	errBuilder := oops.Code("dataset_error").In("allen").With("datasetID", datasetID)

	criteria := fmt.Sprintf("model::SectionDataSet,rma::criteria,[id$eq%d],rma::include,genes", datasetID)
	msg, err := c.rma(ctx, criteria)
	if err != nil {
		return nil, errBuilder.Wrap(err)
	}

	var rows []struct {
		ID               int     `json:"id"`
		PlaneOfSectionID int     `json:"plane_of_section_id"`
		SectionThickness float64 `json:"section_thickness"`
		Genes            []struct {
			Acronym string `json:"acronym"`
		} `json:"genes"`
	}
	if err = json.Unmarshal(msg, &rows); err != nil {
		return nil, errBuilder.Wrapf(err, "failed to decode dataset")
	}
	if len(rows) == 0 {
		return nil, errBuilder.Errorf("dataset not found")
	}

	axis, err := planeOfSection(rows[0].PlaneOfSectionID)
	if err != nil {
		return nil, errBuilder.Wrap(err)
	}

	dataset := &Dataset{
		ID:               rows[0].ID,
		PlaneOfSection:   axis,
		SectionThickness: rows[0].SectionThickness,
	}
	for _, gene := range rows[0].Genes {
		dataset.Genes = append(dataset.Genes, gene.Acronym)
	}
	return dataset, nil
}

func planeOfSection(id int) (transform.Axis, error) {
	switch id {
	case 1:
		return transform.Coronal, nil
	case 2:
		return transform.Sagittal, nil
	}
	return "", oops.Code("plane_of_section_error").In("allen").
		Errorf("unsupported plane of section: %d", id)
}

// ImageToReference resolves an image point to reference-space (p, i, r)
// coordinates.
func (c *Client) ImageToReference(ctx context.Context, imageID int, x, y float64) (ReferencePoint, error) {
	errBuilder := oops.Code("image_to_reference_error").In("allen").With("imageID", imageID)

	q := url.Values{}
	q.Set("x", fmt.Sprint(x))
	q.Set("y", fmt.Sprint(y))
	rawurl := fmt.Sprintf("%s/api/v2/image_to_reference/%d.json?%s", c.baseURL, imageID, q.Encode())

	var r struct {
		Success bool `json:"success"`
		Msg     struct {
			ImageToReference ReferencePoint `json:"image_to_reference"`
		} `json:"msg"`
	}
	if err := c.getJSON(ctx, rawurl, &r); err != nil {
		return ReferencePoint{}, errBuilder.Wrap(err)
	}
	if !r.Success {
		return ReferencePoint{}, errBuilder.Errorf("lookup rejected")
	}
	return r.Msg.ImageToReference, nil
}

// DownloadImage downloads a section image as JPEG bytes. The image is
// downsampled by 2^downsample in both dimensions. With expression set, the
// processed expression view is downloaded instead of the raw image.
func (c *Client) DownloadImage(ctx context.Context, imageID, downsample int, expression bool) ([]byte, error) {
	q := url.Values{}
	q.Set("downsample", fmt.Sprint(downsample))
	if expression {
		q.Set("view", "expression")
	}
	rawurl := fmt.Sprintf("%s/api/v2/section_image_download/%d?%s", c.baseURL, imageID, q.Encode())

	body, err := c.readAll(ctx, rawurl)
	if err != nil {
		return nil, oops.Code("image_download_error").In("allen").With("imageID", imageID).Wrap(err)
	}
	return body, nil
}
