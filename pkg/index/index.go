package index

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"

	"github.com/brainatlas/atlasfetch/pkg/manifest"
)

const FileName = "index.json"

// Index is the catalog of every dataset found under the output directory.
type Index struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Datasets  []Dataset `json:"datasets"`
}

type Dataset struct {
	ID       int    `json:"id"`
	Location string `json:"location"` // dataset directory relative to the root
	Images   int    `json:"images"`
}

// Generate walks root for dataset manifests and writes the index next to
// them. Datasets without images are skipped.
func Generate(root string) error {
	slog.Info("Generating the dataset index", slog.String("root", root))
	errBuilder := oops.Code("file_walk_error").In("index")
	idx := Index{
		Version:   1,
		UpdatedAt: time.Now(),
	}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		errBuilder := errBuilder.With("path", path)
		if err != nil {
			return errBuilder.Wrap(err)
		} else if d.IsDir() || filepath.Base(path) != manifest.FileName {
			return nil
		}

		m, err := manifest.Read(path)
		if err != nil {
			return errBuilder.Wrapf(err, "manifest read error")
		} else if len(m.Images) == 0 {
			return nil
		}

		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return errBuilder.Wrapf(err, "file rel error")
		}

		idx.Datasets = append(idx.Datasets, Dataset{
			ID:       m.DatasetID,
			Location: rel,
			Images:   len(m.Images),
		})

		return nil
	})
	if err != nil {
		return errBuilder.Wrap(err)
	}

	f, err := os.Create(filepath.Join(root, FileName))
	if err != nil {
		return errBuilder.Wrapf(err, "file write error")
	}
	defer f.Close()

	e := json.NewEncoder(f)
	e.SetIndent("", "   ")
	return errBuilder.Wrapf(e.Encode(idx), "json encode error")
}
