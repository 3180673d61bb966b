// Package template substitutes {{variable}} placeholders in prompt text.
//
// Values may themselves contain placeholders; rendering repeats until the
// text stops changing or a pass limit is reached. Placeholders left after
// the last pass are reported as errors by Render and kept by RenderLenient.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const maxPasses = 3

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Renderer handles variable substitution in templates
type Renderer struct{}

// NewRenderer creates a new template renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render substitutes vars into templateText and fails if any placeholder
// is left unresolved.
func (r *Renderer) Render(templateText string, vars map[string]string) (string, error) {
	result := r.RenderLenient(templateText, vars)
	if unresolved := Placeholders(result); len(unresolved) > 0 {
		return "", fmt.Errorf("unresolved template placeholders: %v", unresolved)
	}
	return result, nil
}

// RenderLenient substitutes vars and leaves unknown placeholders in place.
func (r *Renderer) RenderLenient(templateText string, vars map[string]string) string {
	result := templateText
	for pass := 0; pass < maxPasses; pass++ {
		next := placeholderPattern.ReplaceAllStringFunc(result, func(m string) string {
			name := placeholderPattern.FindStringSubmatch(m)[1]
			if v, ok := vars[name]; ok {
				return v
			}
			return m
		})
		if next == result {
			break
		}
		result = next
	}
	return result
}

// ValidateRequiredVars checks that all required variables are provided and non-empty.
func (r *Renderer) ValidateRequiredVars(requiredVars []string, vars map[string]string) error {
	var missing []string
	for _, required := range requiredVars {
		if value, exists := vars[required]; !exists || value == "" {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required variables: %v", missing)
	}
	return nil
}

// MergeVars merges multiple variable maps with later maps taking precedence.
//
//	defaults := map[string]string{"level": "beginner", "topic": "travel"}
//	overrides := map[string]string{"level": "advanced"}
//	MergeVars(defaults, overrides) // {"level": "advanced", "topic": "travel"}
func (r *Renderer) MergeVars(varMaps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, vars := range varMaps {
		for k, v := range vars {
			result[k] = v
		}
	}
	return result
}

// Placeholders returns the distinct variable names referenced by text, sorted.
func Placeholders(text string) []string {
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		seen[strings.TrimSpace(m[1])] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
