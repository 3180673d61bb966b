package tools

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AltairaLabs/VoiceKit/pkg/config"
)

// ParseDescriptor decodes a Tool manifest (YAML or JSON). filename is used
// only in error messages.
func ParseDescriptor(filename string, data []byte) (Descriptor, error) {
	if err := config.ValidateManifest(data, config.KindTool); err != nil {
		return Descriptor{}, fmt.Errorf("tool manifest %s: %w", filename, err)
	}

	jsonData, err := config.YAMLToJSON(data)
	if err != nil {
		return Descriptor{}, fmt.Errorf("tool manifest %s: %w", filename, err)
	}
	var manifest ToolConfig
	if err := json.Unmarshal(jsonData, &manifest); err != nil {
		return Descriptor{}, fmt.Errorf("failed to unmarshal tool manifest %s: %w", filename, err)
	}

	return Descriptor{
		Name:        manifest.Metadata.Name,
		Description: manifest.Spec.Description,
		Parameters:  manifest.Spec.Parameters,
	}, nil
}

// LoadDescriptor reads and parses a Tool manifest file.
func LoadDescriptor(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to read tool file %s: %w", path, err)
	}
	return ParseDescriptor(path, data)
}

// LoadDescriptors declares every manifest in paths on r without binding
// handlers; the host registers handlers by name afterwards.
func (r *Registry) LoadDescriptors(paths ...string) error {
	for _, p := range paths {
		d, err := LoadDescriptor(p)
		if err != nil {
			return err
		}
		if err := r.RegisterTool(d, nil); err != nil {
			return err
		}
	}
	return nil
}
