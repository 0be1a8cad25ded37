package manifest

import (
	"encoding/json"
	"os"

	"github.com/samber/oops"
)

const FileName = "manifest.json"

// Manifest describes one downloaded section dataset.
type Manifest struct {
	DatasetID      int     `json:"dataset_id"`
	PlaneOfSection string  `json:"plane_of_section"`
	DownsampleRef  int     `json:"downsample_ref"`
	DownsampleImg  int     `json:"downsample_img"`
	Images         []Image `json:"images"`
}

// Image is one downloaded section image. Paths are relative to the manifest.
type Image struct {
	ID              int     `json:"id"`
	SectionNumber   int     `json:"section_number"`
	SliceCoordinate float64 `json:"slice_coordinate"`
	Path            string  `json:"path"`
	ExpressionPath  string  `json:"expression_path,omitempty"`
}

func Write(filePath string, m Manifest) error {
	errBuilder := oops.Code("write_manifest_error").In("manifest").With("filePath", filePath)
	f, err := os.Create(filePath)
	if err != nil {
		return errBuilder.Wrapf(err, "failed to create the file")
	}
	defer f.Close()

	e := json.NewEncoder(f)
	e.SetIndent("", "    ")
	if err = e.Encode(m); err != nil {
		return errBuilder.Wrapf(err, "JSON encode error")
	}
	return nil
}

func Read(filePath string) (Manifest, error) {
	errBuilder := oops.Code("read_manifest_error").In("manifest").With("filePath", filePath)
	f, err := os.Open(filePath)
	if err != nil {
		return Manifest{}, errBuilder.Wrapf(err, "failed to open the file")
	}
	defer f.Close()

	var m Manifest
	if err = json.NewDecoder(f).Decode(&m); err != nil {
		return Manifest{}, errBuilder.Wrapf(err, "failed to decode the file")
	}
	return m, nil
}
