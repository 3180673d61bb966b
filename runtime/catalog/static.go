package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/AltairaLabs/VoiceKit/pkg/config"
)

// Static serves a fixed snapshot, loaded from a file or built in code.
type Static struct {
	snap Snapshot
}

// NewStatic sorts a copy of snap and serves it.
func NewStatic(snap Snapshot) *Static {
	s := Snapshot{
		Categories: slices.Clone(snap.Categories),
		Topics:     slices.Clone(snap.Topics),
		Subtopics:  slices.Clone(snap.Subtopics),
	}
	SortByOrder(s.Categories)
	SortByOrder(s.Topics)
	SortByOrder(s.Subtopics)
	return &Static{snap: s}
}

// LoadStatic reads a YAML or JSON snapshot file with top-level categories,
// topics and subtopics lists.
func LoadStatic(path string) (*Static, error) {
	//nolint:gosec // G304: path comes from trusted configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	jsonData, err := config.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(jsonData, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog file %s: %w", path, err)
	}
	return NewStatic(snap), nil
}

// Categories implements Catalog.
func (s *Static) Categories(context.Context) ([]Record, error) {
	return slices.Clone(s.snap.Categories), nil
}

// Topics implements Catalog.
func (s *Static) Topics(_ context.Context, categoryID string) ([]Record, error) {
	var out []Record
	for _, t := range s.snap.Topics {
		if t.LinksTo(FieldCategory, categoryID) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Topic implements Catalog.
func (s *Static) Topic(_ context.Context, topicID string) (Record, error) {
	for _, t := range s.snap.Topics {
		if t.ID == topicID {
			return t, nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s", ErrTopicNotFound, topicID)
}

// All implements Catalog.
func (s *Static) All(context.Context) (Snapshot, error) {
	return Snapshot{
		Categories: slices.Clone(s.snap.Categories),
		Topics:     slices.Clone(s.snap.Topics),
		Subtopics:  slices.Clone(s.snap.Subtopics),
	}, nil
}
