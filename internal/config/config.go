package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dusk-indust/segmerge/internal/merge"
	"github.com/dusk-indust/segmerge/internal/segment"
	"github.com/dusk-indust/segmerge/internal/unify"
	"gopkg.in/yaml.v3"
)

// ProjectConfig holds run settings loaded from segmerge.yml. Unset fields
// leave the defaults alone.
type ProjectConfig struct {
	Threshold        *float64 `yaml:"threshold,omitempty"`
	Columns          []string `yaml:"columns,omitempty"`
	Outfile          string   `yaml:"outfile,omitempty"`
	IDColumn         string   `yaml:"idColumn,omitempty"`
	CellColumn       string   `yaml:"cellColumn,omitempty"`
	UnassignedLabels []string `yaml:"unassignedLabels,omitempty"`
	LabelFormat      string   `yaml:"labelFormat,omitempty"`
	MutualBest       bool     `yaml:"mutualBest,omitempty"`
	Workers          int      `yaml:"workers,omitempty"`
	EdgesOut         string   `yaml:"edgesOut,omitempty"`
	ReportOut        string   `yaml:"reportOut,omitempty"`
	GraphDB          string   `yaml:"graphDB,omitempty"`
	Diagram          string   `yaml:"diagram,omitempty"`
	Verbose          bool     `yaml:"verbose,omitempty"`
}

// Load attempts to read segmerge.yml or segmerge.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"segmerge.yml", "segmerge.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return parse(path, data)
	}
	return &ProjectConfig{}, nil
}

// LoadFile reads an explicitly named config file, which must exist.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &segment.ConfigurationError{Field: "config", Msg: "file " + path + " does not exist"}
		}
		return nil, &segment.IOError{Path: path, Op: "read", Err: err}
	}
	return parse(path, data)
}

func parse(path string, data []byte) (*ProjectConfig, error) {
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &segment.ConfigurationError{Field: "config", Msg: path + ": " + err.Error()}
	}
	return &cfg, nil
}

// Apply copies every field set in p onto cfg.
func (p *ProjectConfig) Apply(cfg *merge.Config) {
	if p.Threshold != nil {
		cfg.Threshold = *p.Threshold
	}
	if p.Columns != nil {
		cfg.Columns = append([]string(nil), p.Columns...)
	}
	if p.IDColumn != "" {
		cfg.IDColumn = p.IDColumn
	}
	if p.CellColumn != "" {
		cfg.CellColumn = p.CellColumn
	}
	if p.UnassignedLabels != nil {
		cfg.Unassigned = append([]string(nil), p.UnassignedLabels...)
	}
	if p.LabelFormat != "" {
		cfg.LabelFormat = unify.LabelFormat(p.LabelFormat)
	}
	if p.MutualBest {
		cfg.MutualBest = true
	}
	if p.Workers != 0 {
		cfg.Workers = p.Workers
	}
}
