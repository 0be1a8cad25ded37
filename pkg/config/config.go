package config

import (
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDownsampleRef = 25
	DefaultDownsampleImg = 0
)

// Dataset is one section dataset to download.
type Dataset struct {
	ID            int
	DownsampleRef int
	DownsampleImg int
	Expression    bool
}

// Reference is one reference-volume archive to download.
type Reference struct {
	Name string
	URL  string
}

type configFile struct {
	APIURL   string `yaml:"api_url"`
	Output   string `yaml:"output"`
	Datasets []struct {
		ID            int  `yaml:"id"`
		DownsampleRef *int `yaml:"downsample_ref"`
		DownsampleImg *int `yaml:"downsample_img"`
		Expression    bool `yaml:"expression"`
	} `yaml:"datasets"`
	References []struct {
		Name string `yaml:"name"`
		URL  string `yaml:"url"`
	} `yaml:"references"`
}

type Config struct {
	APIURL     string
	Output     string
	Datasets   []Dataset
	References []Reference
}

func Load(configPath string) (*Config, error) {
	errBuilder := oops.Code("load_config_error").In("config").With("filePath", configPath)
	f, err := os.Open(configPath)
	if err != nil {
		return nil, errBuilder.Wrapf(err, "file open error")
	}
	defer f.Close()

	var file configFile
	if err = yaml.NewDecoder(f).Decode(&file); err != nil {
		return nil, errBuilder.Wrapf(err, "failed to decode the file")
	}

	cfg := &Config{
		APIURL: file.APIURL,
		Output: file.Output,
	}
	if cfg.Output == "" {
		return nil, errBuilder.Errorf("output is required")
	}

	for _, d := range file.Datasets {
		if d.ID <= 0 {
			return nil, errBuilder.Errorf("dataset id must be positive: %d", d.ID)
		}
		dataset := Dataset{
			ID:            d.ID,
			DownsampleRef: DefaultDownsampleRef,
			DownsampleImg: DefaultDownsampleImg,
			Expression:    d.Expression,
		}
		if d.DownsampleRef != nil {
			dataset.DownsampleRef = *d.DownsampleRef
		}
		if d.DownsampleImg != nil {
			dataset.DownsampleImg = *d.DownsampleImg
		}
		if dataset.DownsampleRef < 1 {
			return nil, errBuilder.Errorf("downsample_ref must be positive: %d", dataset.DownsampleRef)
		}
		if dataset.DownsampleImg < 0 {
			return nil, errBuilder.Errorf("downsample_img must not be negative: %d", dataset.DownsampleImg)
		}
		cfg.Datasets = append(cfg.Datasets, dataset)
	}

	for _, r := range file.References {
		if r.Name == "" || r.URL == "" {
			return nil, errBuilder.Errorf("reference entries need both name and url")
		}
		cfg.References = append(cfg.References, Reference(r))
	}

	return cfg, nil
}
