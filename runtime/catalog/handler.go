package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

// OptionsPath is the route the catalog handler serves.
const OptionsPath = "/api/options"

// NewHandler serves the options API from c:
//
//	?type=categories                  {"categories": [...]}
//	?type=topics&categoryId=<id>      {"topics": [...]}
//	?type=topic&topicId=<id>          {"topic": {...}} or 404
//	anything else                     {"categories","topics","subtopics"}
func NewHandler(c Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}

		q := r.URL.Query()
		ctx := r.Context()
		var (
			body any
			err  error
		)
		switch typ := q.Get("type"); {
		case typ == "categories":
			var cats []Record
			cats, err = c.Categories(ctx)
			body = map[string]any{"categories": nonNil(cats)}
		case typ == "topics" && q.Get("categoryId") != "":
			var topics []Record
			topics, err = c.Topics(ctx, q.Get("categoryId"))
			body = map[string]any{"topics": nonNil(topics)}
		case typ == "topic" && q.Get("topicId") != "":
			var topic Record
			topic, err = c.Topic(ctx, q.Get("topicId"))
			if errors.Is(err, ErrTopicNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "Topic not found"})
				return
			}
			body = map[string]any{"topic": topic}
		default:
			var snap Snapshot
			snap, err = c.All(ctx)
			snap.Categories = nonNil(snap.Categories)
			snap.Topics = nonNil(snap.Topics)
			snap.Subtopics = nonNil(snap.Subtopics)
			body = snap
		}

		if err != nil {
			logger.ErrorContext(ctx, "Error fetching catalog data", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch options"})
			return
		}
		writeJSON(w, http.StatusOK, body)
	})
}

func nonNil(r []Record) []Record {
	if r == nil {
		return []Record{}
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
