// Package catalog reads the conversation content catalog: categories, the
// topics inside them and the subtopics of each topic. Records keep every
// field the catalog service returns; the typed accessors cover the fields a
// session uses to build its priming prompt.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"slices"
	"sort"
)

// ErrTopicNotFound is returned when a topic id does not exist.
var ErrTopicNotFound = errors.New("topic not found")

// Well-known record fields.
const (
	FieldName        = "Name"
	FieldDescription = "Description"
	FieldEmoji       = "Emoji"
	FieldOrder       = "Order"
	FieldCategory    = "Category"
	FieldTopic       = "Topic"
)

// Record is one catalog row: an id plus arbitrary fields. It encodes as a
// flat JSON object with the id under "id".
type Record struct {
	ID     string
	Fields map[string]any
}

// MarshalJSON flattens the record.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID
	return json.Marshal(out)
}

// UnmarshalJSON splits "id" from the remaining fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	id, _ := m["id"].(string)
	delete(m, "id")
	r.ID = id
	r.Fields = m
	return nil
}

func (r Record) str(field string) string {
	s, _ := r.Fields[field].(string)
	return s
}

// Name returns the Name field.
func (r Record) Name() string { return r.str(FieldName) }

// Description returns the Description field.
func (r Record) Description() string { return r.str(FieldDescription) }

// Emoji returns the Emoji field.
func (r Record) Emoji() string { return r.str(FieldEmoji) }

// Order returns the sort position. Records without one sort last.
func (r Record) Order() float64 {
	switch v := r.Fields[FieldOrder].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return math.Inf(1)
}

// Links returns the record ids held by a link field. A single string is
// treated as a one-element link.
func (r Record) Links(field string) []string {
	switch v := r.Fields[field].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// LinksTo reports whether field links to id.
func (r Record) LinksTo(field, id string) bool {
	return slices.Contains(r.Links(field), id)
}

// Snapshot is the whole catalog.
type Snapshot struct {
	Categories []Record `json:"categories"`
	Topics     []Record `json:"topics"`
	Subtopics  []Record `json:"subtopics"`
}

// Catalog is the read surface of the content catalog service.
type Catalog interface {
	// Categories lists every category ordered by Order.
	Categories(ctx context.Context) ([]Record, error)
	// Topics lists the topics linked to categoryID ordered by Order.
	Topics(ctx context.Context, categoryID string) ([]Record, error)
	// Topic returns one topic or ErrTopicNotFound.
	Topic(ctx context.Context, topicID string) (Record, error)
	// All returns every table ordered by Order.
	All(ctx context.Context) (Snapshot, error)
}

// SortByOrder sorts records in place by Order, keeping the relative position
// of records with equal order.
func SortByOrder(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Order() < records[j].Order()
	})
}

// TopicInfo is what a session needs to know about its topic.
type TopicInfo struct {
	ID          string
	Name        string
	Description string
	Emoji       string
	Subtopics   []Record
}

// ResolveTopic looks up topicID and collects its subtopics. The full snapshot
// is only fetched when the topic exists.
func ResolveTopic(ctx context.Context, c Catalog, topicID string) (TopicInfo, error) {
	topic, err := c.Topic(ctx, topicID)
	if err != nil {
		return TopicInfo{}, err
	}
	info := TopicInfo{
		ID:          topic.ID,
		Name:        topic.Name(),
		Description: topic.Description(),
		Emoji:       topic.Emoji(),
	}

	snap, err := c.All(ctx)
	if err != nil {
		return TopicInfo{}, err
	}
	for _, sub := range snap.Subtopics {
		if sub.LinksTo(FieldTopic, topicID) {
			info.Subtopics = append(info.Subtopics, sub)
		}
	}
	SortByOrder(info.Subtopics)
	return info, nil
}
