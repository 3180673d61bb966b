package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads, schema-validates and parses a VoiceSession manifest. Fields
// absent from the file keep their Defaults() values and relative file
// references are resolved against the manifest's directory.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.ConfigDir = filepath.Dir(filename)
	cfg.resolvePaths()
	return cfg, nil
}

// Parse validates and decodes manifest bytes without touching the filesystem.
func Parse(data []byte) (*Config, error) {
	if err := ValidateManifest(data, KindVoiceSession); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	manifest := VoiceSessionConfig{Spec: *Defaults()}
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &manifest.Spec
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath joins a relative reference onto the config directory.
func (c *Config) ResolvePath(ref string) string {
	if ref == "" || filepath.IsAbs(ref) || c.ConfigDir == "" {
		return ref
	}
	return filepath.Join(c.ConfigDir, ref)
}

func (c *Config) resolvePaths() {
	for i, f := range c.Tools.Files {
		c.Tools.Files[i] = c.ResolvePath(f)
	}
	c.Prompt.PackFile = c.ResolvePath(c.Prompt.PackFile)
}
