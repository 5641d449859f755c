// Package config holds the run configuration: defaults, optional YAML
// overrides, and validation.
package config

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Grouping modes.
const (
	ModeStrict          = "strict"
	ModeParalogTolerant = "paralog-tolerant"
)

// Config is the full run configuration.
type Config struct {
	Input    InputConfig    `yaml:"input"`
	Search   SearchConfig   `yaml:"search"`
	Grouping GroupingConfig `yaml:"grouping"`
	Phylo    PhyloConfig    `yaml:"phylo"`
	Output   OutputConfig   `yaml:"output"`
}

// InputConfig locates the genome inputs.
type InputConfig struct {
	FeatureDir      string `yaml:"feature_dir"`
	LocusAnnotation string `yaml:"locus_annotation"` // optional
}

func (c *InputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.FeatureDir, validation.Required),
	)
}

// SearchConfig controls the similarity search and edge thresholds.
type SearchConfig struct {
	Binary      string  `yaml:"binary"`
	Threads     int     `yaml:"threads"`
	MinIdentity float64 `yaml:"min_identity"` // percent
	MinCoverage float64 `yaml:"min_coverage"` // percent
	MaxEvalue   float64 `yaml:"max_evalue"`
}

func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinIdentity, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&c.MinCoverage, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&c.MaxEvalue, validation.Min(0.0)),
	)
}

// GroupingConfig controls homolog group resolution.
type GroupingConfig struct {
	Mode            string  `yaml:"mode"`
	MinCompleteness float64 `yaml:"min_completeness"`
}

func (c *GroupingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(ModeStrict, ModeParalogTolerant)),
		validation.Field(&c.MinCompleteness, validation.Min(0.0), validation.Max(1.0)),
	)
}

// PhyloConfig controls alignment and tree building.
type PhyloConfig struct {
	AlignerBinary string `yaml:"aligner_binary"`
	TreeBinary    string `yaml:"tree_binary"`
	Workers       int    `yaml:"workers"`
}

func (c *PhyloConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(1)),
	)
}

// OutputConfig locates run artifacts.
type OutputConfig struct {
	Dir    string `yaml:"dir"`
	DBPath string `yaml:"db_path"` // empty disables the result database
}

func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.Input.Validate(); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Grouping.Validate(); err != nil {
		return fmt.Errorf("grouping: %w", err)
	}
	if err := c.Phylo.Validate(); err != nil {
		return fmt.Errorf("phylo: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

// Default returns the configuration used when no YAML file overrides it.
func Default() Config {
	return Config{
		Search: SearchConfig{
			Binary:      "diamond",
			Threads:     4,
			MinIdentity: 30,
			MinCoverage: 50,
			MaxEvalue:   0.001,
		},
		Grouping: GroupingConfig{
			Mode:            ModeStrict,
			MinCompleteness: 0.25,
		},
		Phylo: PhyloConfig{
			AlignerBinary: "mafft",
			TreeBinary:    "fasttree",
			Workers:       4,
		},
		Output: OutputConfig{
			Dir: "./ggphylo_out",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
