// Package config defines the pipeline configuration, its loader and its
// validation rules, plus logger construction.
//
// A pipeline file is optional. Every field can also come from CLI flags or
// from interactive prompts, so an empty Pipeline is valid until Validate is
// asked about a run that needs a source.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Pipeline struct {
	Job     string        `yaml:"job" json:"job"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Source  SourceConfig  `yaml:"source" json:"source"`
	Select  SelectConfig  `yaml:"select" json:"select"`
	Dates   DatesConfig   `yaml:"dates" json:"dates"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Export  ExportConfig  `yaml:"export" json:"export"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // console | json
	File   string `yaml:"file" json:"file"`
}

type SourceConfig struct {
	File   string     `yaml:"file" json:"file"`
	API    *APIConfig `yaml:"api,omitempty" json:"api,omitempty"`
	Parser Options    `yaml:"parser,omitempty" json:"parser,omitempty"`
}

type APIConfig struct {
	URL         string        `yaml:"url" json:"url"`
	Key         string        `yaml:"key" json:"key"`
	DataKey     string        `yaml:"data_key" json:"data_key"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	InsecureTLS bool          `yaml:"insecure_tls" json:"insecure_tls"`
}

// SelectConfig holds pre-supplied answers to the column prompts, in the
// prompt syntax (comma separated 0-based indices). Nil means "ask".
type SelectConfig struct {
	Columns *string `yaml:"columns,omitempty" json:"columns,omitempty"`
	Dates   *string `yaml:"dates,omitempty" json:"dates,omitempty"`
}

type DatesConfig struct {
	EpochPolicy string `yaml:"epoch_policy" json:"epoch_policy"` // legacy | auto
	Location    string `yaml:"location" json:"location"`
}

type OutputConfig struct {
	Dir    string `yaml:"dir" json:"dir"`
	Format string `yaml:"format" json:"format"` // parquet | csv
	Sample int    `yaml:"sample" json:"sample"`
}

type ExportConfig struct {
	Kind  string `yaml:"kind" json:"kind"`
	DSN   string `yaml:"dsn" json:"dsn"`
	Table string `yaml:"table" json:"table"`
}

type MetricsConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Tags    string `yaml:"tags" json:"tags"`
}

const (
	DefaultOutputDir    = "data/"
	DefaultOutputFormat = "parquet"
	DefaultSample       = 5
	DefaultJob          = "tabetl"
)

// Load reads a YAML or JSON pipeline file and applies defaults.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	var p Pipeline
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	p.ApplyDefaults()
	return p, nil
}

// ApplyDefaults fills unset fields. It is idempotent.
func (p *Pipeline) ApplyDefaults() {
	if p.Job == "" {
		p.Job = DefaultJob
	}
	if p.Log.Level == "" {
		p.Log.Level = "info"
	}
	if p.Log.Format == "" {
		p.Log.Format = "console"
	}
	if p.Output.Dir == "" {
		p.Output.Dir = DefaultOutputDir
	}
	if p.Output.Format == "" {
		p.Output.Format = DefaultOutputFormat
	}
	if p.Output.Sample == 0 {
		p.Output.Sample = DefaultSample
	}
	if p.Dates.EpochPolicy == "" {
		p.Dates.EpochPolicy = "legacy"
	}
	if p.Metrics.Backend == "" {
		p.Metrics.Backend = "none"
	}
}

// ResolveLocation resolves Location; empty and "Local" mean time.Local.
func (d DatesConfig) ResolveLocation() (*time.Location, error) {
	switch d.Location {
	case "", "Local", "local":
		return time.Local, nil
	}
	return time.LoadLocation(d.Location)
}
