package fetch_test

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brainatlas/atlasfetch/pkg/allen"
	"github.com/brainatlas/atlasfetch/pkg/config"
	"github.com/brainatlas/atlasfetch/pkg/fetch"
	"github.com/brainatlas/atlasfetch/pkg/manifest"
)

// newAtlasServer serves a single coronal dataset (id 1) with two section
// images, identity-like alignments, and tiny generated JPEGs.
func newAtlasServer(t *testing.T) *httptest.Server {
	t.Helper()

	sectionImages := `{
		"success": true,
		"msg": [
			{"id": 101, "section_number": 10, "alignment2d": {"tvs_00": 1, "tvs_01": 0, "tvs_02": 0, "tvs_03": 1, "tvs_04": 0, "tvs_05": 0}},
			{"id": 102, "section_number": 20, "alignment2d": {"tvs_00": 1, "tvs_01": 0, "tvs_02": 0, "tvs_03": 1, "tvs_04": 0, "tvs_05": 0}}
		]
	}`
	alignment3d := `{
		"success": true,
		"msg": [{"id": 1, "alignment3d": {
			"tvr_00": 0, "tvr_01": 1, "tvr_02": 0,
			"tvr_03": 0, "tvr_04": 0, "tvr_05": 1,
			"tvr_06": 0, "tvr_07": 0, "tvr_08": 0,
			"tvr_09": 0, "tvr_10": 0, "tvr_11": 1
		}}]
	}`
	dataset := `{
		"success": true,
		"msg": [{"id": 1, "plane_of_section_id": 1, "section_thickness": 25,
			"genes": [{"acronym": "Pvalb"}]}]
	}`

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/data/query.json", func(w http.ResponseWriter, r *http.Request) {
		criteria := r.URL.Query().Get("criteria")
		switch {
		case strings.Contains(criteria, "model::SectionImage"):
			fmt.Fprint(w, sectionImages)
		case strings.Contains(criteria, "alignment3d"):
			fmt.Fprint(w, alignment3d)
		case strings.Contains(criteria, "genes"):
			fmt.Fprint(w, dataset)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/api/v2/image_to_reference/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success": true, "msg": {"image_to_reference": {"x": 5200, "y": 4000, "z": 9000}}}`)
	})
	mux.HandleFunc("/api/v2/section_image_download/", func(w http.ResponseWriter, _ *http.Request) {
		img := image.NewGray(image.Rect(0, 0, 4, 4))
		require.NoError(t, jpeg.Encode(w, img, nil))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testDataset() config.Dataset {
	return config.Dataset{
		ID:            1,
		DownsampleRef: 1000,
		DownsampleImg: 0,
	}
}

func TestDataset(t *testing.T) {
	ts := newAtlasServer(t)
	client := allen.NewClient(allen.WithBaseURL(ts.URL))
	out := t.TempDir()

	err := fetch.Dataset(context.Background(), client, testDataset(), fetch.Options{OutDir: out})
	require.NoError(t, err)

	dir := filepath.Join(out, "datasets", "1")
	m, err := manifest.Read(filepath.Join(dir, manifest.FileName))
	require.NoError(t, err)

	require.Equal(t, 1, m.DatasetID)
	require.Equal(t, "coronal", m.PlaneOfSection)
	require.Equal(t, 1000, m.DownsampleRef)
	require.Len(t, m.Images, 2)

	// Highest section number comes first.
	require.Equal(t, 102, m.Images[0].ID)
	require.Equal(t, 20, m.Images[0].SectionNumber)
	require.Equal(t, 101, m.Images[1].ID)

	// Coronal dataset: the slice coordinate is p.
	require.Equal(t, 5200.0, m.Images[0].SliceCoordinate)

	for _, entry := range m.Images {
		f, err := os.Open(filepath.Join(dir, entry.Path))
		require.NoError(t, err)
		img, err := png.Decode(f)
		require.NoError(t, f.Close())
		require.NoError(t, err)
		require.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
		require.Empty(t, entry.ExpressionPath)
	}
}

func TestDataset_Expression(t *testing.T) {
	ts := newAtlasServer(t)
	client := allen.NewClient(allen.WithBaseURL(ts.URL))
	out := t.TempDir()

	ds := testDataset()
	ds.Expression = true
	err := fetch.Dataset(context.Background(), client, ds, fetch.Options{OutDir: out})
	require.NoError(t, err)

	dir := filepath.Join(out, "datasets", "1")
	m, err := manifest.Read(filepath.Join(dir, manifest.FileName))
	require.NoError(t, err)

	for _, entry := range m.Images {
		require.Equal(t, fmt.Sprintf("%d_expression.png", entry.ID), entry.ExpressionPath)
		_, err = os.Stat(filepath.Join(dir, entry.ExpressionPath))
		require.NoError(t, err)
	}
}

func TestDataset_OnResult(t *testing.T) {
	ts := newAtlasServer(t)
	client := allen.NewClient(allen.WithBaseURL(ts.URL))

	var (
		mu      sync.Mutex
		results []fetch.Result
	)
	opts := fetch.Options{
		OutDir: t.TempDir(),
		OnResult: func(r fetch.Result) error {
			mu.Lock()
			defer mu.Unlock()
			results = append(results, r)
			return nil
		},
	}
	err := fetch.Dataset(context.Background(), client, testDataset(), opts)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		require.Equal(t, 1, r.DatasetID)
		require.Equal(t, 5200.0, r.SliceCoordinate)
		require.NotNil(t, r.Img)

		// Coronal grid at downsample_ref=1000.
		rows, cols := r.Field.Shape()
		require.Equal(t, 8, rows)
		require.Equal(t, 11, cols)
	}
}

func TestDataset_DirectoryReset(t *testing.T) {
	ts := newAtlasServer(t)
	client := allen.NewClient(allen.WithBaseURL(ts.URL))
	out := t.TempDir()

	stale := filepath.Join(out, "datasets", "1", "stale.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	err := fetch.Dataset(context.Background(), client, testDataset(), fetch.Options{OutDir: out})
	require.NoError(t, err)

	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))
}

func TestDataset_NoImages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		criteria := r.URL.Query().Get("criteria")
		switch {
		case strings.Contains(criteria, "model::SectionImage"):
			fmt.Fprint(w, `{"success": true, "msg": []}`)
		case strings.Contains(criteria, "genes"):
			fmt.Fprint(w, `{"success": true, "msg": [{"id": 1, "plane_of_section_id": 1}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	client := allen.NewClient(allen.WithBaseURL(ts.URL))
	out := t.TempDir()

	err := fetch.Dataset(context.Background(), client, testDataset(), fetch.Options{OutDir: out})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(out, "datasets", "1"))
	require.True(t, os.IsNotExist(err))
}

func TestDatasets_Strict(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success": false, "msg": "boom"}`)
	}))
	t.Cleanup(ts.Close)
	client := allen.NewClient(allen.WithBaseURL(ts.URL))

	opts := fetch.Options{
		OutDir:   t.TempDir(),
		Datasets: []config.Dataset{testDataset()},
	}

	// Lenient mode logs and carries on.
	require.NoError(t, fetch.Datasets(context.Background(), client, opts))

	opts.Strict = true
	require.ErrorContains(t, fetch.Datasets(context.Background(), client, opts), "boom")
}

