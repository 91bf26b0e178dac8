package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultProjectFile is loaded when it exists and no -c flag is given.
const DefaultProjectFile = "cbc.yaml"

// Project is the layout of a cbc.yaml file.
type Project struct {
	Include  []string          `yaml:"include,omitempty"`
	Define   map[string]string `yaml:"define,omitempty"`
	Warnings map[string]bool   `yaml:"warnings,omitempty"`
	Features map[string]bool   `yaml:"features,omitempty"`
	Output   string            `yaml:"output,omitempty"`
}

// LoadProject reads a project file. Relative include directories are
// resolved against the file's directory.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, dir := range p.Include {
		if !filepath.IsAbs(dir) {
			p.Include[i] = filepath.Join(base, dir)
		}
	}
	return &p, nil
}

// ApplyProject merges p into c. Unknown warning or feature names are an
// error.
func (c *Config) ApplyProject(p *Project) error {
	for name, on := range p.Warnings {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s' in project file", name)
		}
		c.SetWarning(w, on)
	}
	for name, on := range p.Features {
		f, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("unknown feature '%s' in project file", name)
		}
		c.SetFeature(f, on)
	}
	for name, value := range p.Define {
		if value == "" {
			value = "1"
		}
		c.Defines[name] = value
	}
	c.IncludeDirs = append(c.IncludeDirs, p.Include...)
	if p.Output != "" {
		c.Output = p.Output
	}
	return nil
}
