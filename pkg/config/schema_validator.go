package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var schemaFiles = map[string]string{
	KindVoiceSession: "schemas/voicesession.json",
	KindTool:         "schemas/tool.json",
	KindPromptPack:   "schemas/promptpack.json",
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*gojsonschema.Schema{}
)

// SchemaValidationError is one violation reported by the JSON schema.
type SchemaValidationError struct {
	Field       string
	Description string
	Value       interface{}
}

// Error implements the error interface
func (e SchemaValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Description, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// SchemaErrors aggregates every violation found in one document.
type SchemaErrors []SchemaValidationError

func (e SchemaErrors) Error() string {
	lines := make([]string, 0, len(e))
	for _, v := range e {
		lines = append(lines, "  - "+v.Error())
	}
	return "manifest does not match schema:\n" + strings.Join(lines, "\n")
}

func schemaFor(kind string) (*gojsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if s, ok := schemaCache[kind]; ok {
		return s, nil
	}
	path, ok := schemaFiles[kind]
	if !ok {
		return nil, fmt.Errorf("no schema for kind %q", kind)
	}
	raw, err := schemaFS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", kind, err)
	}
	schemaCache[kind] = s
	return s, nil
}

// YAMLToJSON converts a YAML document into JSON so it can be fed to the
// schema validator.
func YAMLToJSON(yamlData []byte) ([]byte, error) {
	var data interface{}
	if err := yaml.Unmarshal(yamlData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to JSON: %w", err)
	}
	return jsonData, nil
}

// ValidateManifest checks a YAML or JSON manifest of the given kind against
// its embedded schema. A nil return means the document is valid.
func ValidateManifest(data []byte, kind string) error {
	schema, err := schemaFor(kind)
	if err != nil {
		return err
	}
	jsonData, err := YAMLToJSON(data)
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make(SchemaErrors, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, SchemaValidationError{
			Field:       re.Field(),
			Description: re.Description(),
			Value:       re.Value(),
		})
	}
	return errs
}
