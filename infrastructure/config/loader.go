package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadFile overlays the YAML file at path onto cfg. Keys absent from the file
// keep their current values.
func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Reload re-reads the overlay this config came from on top of a copy of it,
// then applies the environment again so it keeps priority
func (c *Config) Reload() (*Config, error) {
	if c.ConfigFile == "" {
		return c, nil
	}

	next := *c
	if err := loadFile(c.ConfigFile, &next); err != nil {
		return nil, err
	}
	applyEnv(&next)

	if err := next.Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}
