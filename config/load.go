package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile decodes a YAML override file with unknown-field detection, the
// same dec.KnownFields(true) guard the teacher applies when parsing its
// generator config, so a typo'd key fails startup instead of being ignored.
func LoadFile(path string) (Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var override Config
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&override); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return override, nil
}

// Load resolves the effective configuration: defaults overridden by path's
// contents, if path is non-empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	override, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}

	return Merge(cfg, override), nil
}
