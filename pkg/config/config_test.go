package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Default()
	cfg.Input.FeatureDir = "/data/genomes"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Search.Binary != "diamond" || cfg.Phylo.AlignerBinary != "mafft" || cfg.Phylo.TreeBinary != "fasttree" {
		t.Errorf("tool defaults = %q %q %q", cfg.Search.Binary, cfg.Phylo.AlignerBinary, cfg.Phylo.TreeBinary)
	}
	if cfg.Grouping.Mode != ModeStrict {
		t.Errorf("default mode = %q", cfg.Grouping.Mode)
	}
	if cfg.Search.MinIdentity != 30 || cfg.Search.MinCoverage != 50 || cfg.Search.MaxEvalue != 0.001 {
		t.Errorf("search thresholds = %+v", cfg.Search)
	}
}

func TestValidate(t *testing.T) {
	valid := validConfig()
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		section string
	}{
		{"MissingFeatureDir", func(c *Config) { c.Input.FeatureDir = "" }, "input"},
		{"IdentityOutOfRange", func(c *Config) { c.Search.MinIdentity = 150 }, "search"},
		{"NegativeEvalue", func(c *Config) { c.Search.MaxEvalue = -1 }, "search"},
		{"BadMode", func(c *Config) { c.Grouping.Mode = "whatever" }, "grouping"},
		{"CompletenessAboveOne", func(c *Config) { c.Grouping.MinCompleteness = 1.5 }, "grouping"},
		{"ZeroWorkers", func(c *Config) { c.Phylo.Workers = 0 }, "phylo"},
		{"MissingOutputDir", func(c *Config) { c.Output.Dir = "" }, "output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.HasPrefix(err.Error(), tt.section+":") {
				t.Errorf("error %q should name section %q", err, tt.section)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	yaml := `
input:
  feature_dir: /data/genomes
search:
  min_identity: 40
grouping:
  mode: paralog-tolerant
phylo:
  workers: 8
output:
  dir: /tmp/out
  db_path: /tmp/out/results.db
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Overridden values.
	if cfg.Search.MinIdentity != 40 || cfg.Grouping.Mode != ModeParalogTolerant || cfg.Phylo.Workers != 8 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Output.DBPath != "/tmp/out/results.db" {
		t.Errorf("db path = %q", cfg.Output.DBPath)
	}
	// Untouched defaults survive.
	if cfg.Search.MinCoverage != 50 || cfg.Phylo.AlignerBinary != "mafft" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("missing file must fail")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("grouping: [not, a, map]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Errorf("malformed yaml must fail")
	}

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("input:\n  feature_dir: /data\ngrouping:\n  mode: nonsense\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(invalid); err == nil {
		t.Errorf("invalid mode must fail validation")
	}
}
