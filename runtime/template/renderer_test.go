package template

import (
	"reflect"
	"strings"
	"testing"
)

func TestRenderer_BasicSubstitution(t *testing.T) {
	r := NewRenderer()

	result, err := r.Render("Practice {{topic}} at the {{level}} level.", map[string]string{
		"topic": "ordering food",
		"level": "beginner",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := "Practice ordering food at the beginner level."
	if result != expected {
		t.Errorf("Expected %q, got %q", expected, result)
	}
}

func TestRenderer_RecursiveSubstitution(t *testing.T) {
	r := NewRenderer()

	result, err := r.Render("{{intro}}", map[string]string{
		"intro": "Let's talk about {{topic}}.",
		"topic": "airports",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result != "Let's talk about airports." {
		t.Errorf("Unexpected result %q", result)
	}
}

func TestRenderer_EmptyValueRemovesPlaceholder(t *testing.T) {
	r := NewRenderer()

	result, err := r.Render("A\n{{roleplay_context}}\nB", map[string]string{"roleplay_context": ""})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result != "A\n\nB" {
		t.Errorf("Unexpected result %q", result)
	}
}

func TestRenderer_WhitespaceInPlaceholder(t *testing.T) {
	r := NewRenderer()

	result, err := r.Render("Hi {{ name }}!", map[string]string{"name": "Jin"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result != "Hi Jin!" {
		t.Errorf("Unexpected result %q", result)
	}
}

func TestRenderer_UnresolvedPlaceholder(t *testing.T) {
	r := NewRenderer()

	_, err := r.Render("{{topic}} with {{party}}", map[string]string{"topic": "hotel"})
	if err == nil {
		t.Fatal("Expected error for unresolved placeholder")
	}
	if !strings.Contains(err.Error(), "party") {
		t.Errorf("Error should name the placeholder, got %v", err)
	}

	lenient := r.RenderLenient("{{topic}} with {{party}}", map[string]string{"topic": "hotel"})
	if lenient != "hotel with {{party}}" {
		t.Errorf("Unexpected lenient result %q", lenient)
	}
}

func TestRenderer_CircularReference(t *testing.T) {
	r := NewRenderer()

	_, err := r.Render("{{a}}", map[string]string{"a": "{{b}}", "b": "{{a}}"})
	if err == nil {
		t.Error("Expected error for circular reference")
	}
}

func TestRenderer_MaxPassesExceeded(t *testing.T) {
	r := NewRenderer()

	vars := map[string]string{"l1": "{{l2}}", "l2": "{{l3}}", "l3": "{{l4}}", "l4": "done"}
	if _, err := r.Render("{{l1}}", vars); err == nil {
		t.Error("Expected error when nesting exceeds the pass limit")
	}
	if result, err := r.Render("{{l2}}", vars); err != nil || result != "done" {
		t.Errorf("Expected three levels to resolve, got %q, %v", result, err)
	}
}

func TestRenderer_ValidateRequiredVars(t *testing.T) {
	r := NewRenderer()

	if err := r.ValidateRequiredVars([]string{"topic"}, map[string]string{"topic": "x"}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	err := r.ValidateRequiredVars([]string{"topic", "party"}, map[string]string{"topic": ""})
	if err == nil || !strings.Contains(err.Error(), "topic") || !strings.Contains(err.Error(), "party") {
		t.Errorf("Expected both variables reported, got %v", err)
	}
	if err := r.ValidateRequiredVars(nil, nil); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestRenderer_MergeVars(t *testing.T) {
	r := NewRenderer()

	got := r.MergeVars(
		map[string]string{"level": "beginner", "topic": "travel"},
		map[string]string{"level": "advanced"},
		nil,
	)
	want := map[string]string{"level": "advanced", "topic": "travel"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("{{topic}} {{ party }} {{topic}} {{roleplay_context}} {not} {{}}")
	want := []string{"party", "roleplay_context", "topic"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if len(Placeholders("plain text")) != 0 {
		t.Error("Expected no placeholders")
	}
}
