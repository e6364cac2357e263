// Package config holds the process-wide tunables named in spec.md's
// external interfaces section: page size, buffer pool capacity, the cost
// model's per-page I/O cost, and the number of histogram bins. Values are
// loaded from an optional YAML file and otherwise fall back to the
// documented defaults, following the AppConfig/NewServerConfig shape used
// elsewhere in the retrieval pack.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPageSize       = 4096
	DefaultBufferCapacity = 50
	DefaultIoCostPerPage  = 1000
	DefaultHistogramBins  = 100
)

// Config is the set of process-scope tunables read by the buffer pool,
// page codec, join optimizer, and histograms.
type Config struct {
	PageSize       int `yaml:"page_size"`
	BufferCapacity int `yaml:"buffer_capacity"`
	IoCostPerPage  int `yaml:"io_cost_per_page"`
	HistogramBins  int `yaml:"histogram_bins"`
}

// New returns a Config populated with the documented defaults.
func New() *Config {
	return &Config{
		PageSize:       DefaultPageSize,
		BufferCapacity: DefaultBufferCapacity,
		IoCostPerPage:  DefaultIoCostPerPage,
		HistogramBins:  DefaultHistogramBins,
	}
}

// Load reads a YAML config file, overlaying any present fields onto the
// defaults. A missing file is not an error -- it simply yields defaults.
func Load(path string) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading config file %q", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %q", path)
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = DefaultBufferCapacity
	}
	if cfg.IoCostPerPage <= 0 {
		cfg.IoCostPerPage = DefaultIoCostPerPage
	}
	if cfg.HistogramBins <= 0 {
		cfg.HistogramBins = DefaultHistogramBins
	}

	return cfg, nil
}
