// Package prompt turns a conversation scenario (level, topic, roles) into
// the instruction text and priming messages sent when a session opens.
//
// The text itself is configuration: a PromptPack manifest supplies one
// template per level plus the fragments wrapped around it. A built-in pack
// is embedded; a pack file can override any part of it.
package prompt

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"sync"

	"github.com/Masterminds/semver/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/AltairaLabs/VoiceKit/pkg/config"
	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

// Level is the learner's proficiency.
type Level string

// Supported levels.
const (
	Beginner     Level = "beginner"
	Intermediate Level = "intermediate"
	Advanced     Level = "advanced"
)

//go:embed packs/tutor.yaml
var builtinPack []byte

// Roleplay holds the three roleplay context variants.
type Roleplay struct {
	PartyAndTopic string `json:"partyAndTopic,omitempty"`
	TopicOnly     string `json:"topicOnly,omitempty"`
	PartyOnly     string `json:"partyOnly,omitempty"`
}

// Pack is a parsed PromptPack.
type Pack struct {
	Name    string
	Version *semver.Version

	Levels             map[Level]string
	Roleplay           Roleplay
	SubtopicPrefix     string
	CustomTopicPrefix  string
	CustomOptionPrefix string
	HintsInstruction   string
	PrimingMessage     string
}

type packManifest struct {
	APIVersion string            `json:"apiVersion"`
	Kind       string            `json:"kind"`
	Metadata   metav1.ObjectMeta `json:"metadata"`
	Spec       packSpec          `json:"spec"`
}

type packSpec struct {
	Version            string            `json:"version"`
	Levels             map[string]string `json:"levels"`
	Roleplay           Roleplay          `json:"roleplay"`
	SubtopicPrefix     string            `json:"subtopicPrefix"`
	CustomTopicPrefix  string            `json:"customTopicPrefix"`
	CustomOptionPrefix string            `json:"customOptionPrefix"`
	HintsInstruction   string            `json:"hintsInstruction"`
	PrimingMessage     string            `json:"primingMessage"`
}

// ParsePack decodes a PromptPack manifest (YAML or JSON). filename is used
// only in error messages.
func ParsePack(filename string, data []byte) (*Pack, error) {
	if err := config.ValidateManifest(data, config.KindPromptPack); err != nil {
		return nil, fmt.Errorf("prompt pack %s: %w", filename, err)
	}
	jsonData, err := config.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("prompt pack %s: %w", filename, err)
	}
	var m packManifest
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompt pack %s: %w", filename, err)
	}

	version, err := ParseVersion(m.Spec.Version)
	if err != nil {
		return nil, fmt.Errorf("prompt pack %s: invalid pack version: %w", filename, err)
	}

	p := &Pack{
		Name:               m.Metadata.Name,
		Version:            version,
		Levels:             make(map[Level]string, len(m.Spec.Levels)),
		Roleplay:           m.Spec.Roleplay,
		SubtopicPrefix:     m.Spec.SubtopicPrefix,
		CustomTopicPrefix:  m.Spec.CustomTopicPrefix,
		CustomOptionPrefix: m.Spec.CustomOptionPrefix,
		HintsInstruction:   m.Spec.HintsInstruction,
		PrimingMessage:     m.Spec.PrimingMessage,
	}
	for k, v := range m.Spec.Levels {
		p.Levels[Level(k)] = v
	}
	return p, nil
}

// LoadPack reads and parses a PromptPack file.
func LoadPack(path string) (*Pack, error) {
	//nolint:gosec // G304: path comes from trusted configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt pack %s: %w", path, err)
	}
	return ParsePack(path, data)
}

var defaultPack = sync.OnceValue(func() *Pack {
	p, err := ParsePack("builtin", builtinPack)
	if err != nil {
		panic(fmt.Sprintf("builtin prompt pack is invalid: %v", err))
	}
	return p
})

// DefaultPack returns a copy of the built-in pack.
func DefaultPack() *Pack {
	return defaultPack().clone()
}

func (p *Pack) clone() *Pack {
	c := *p
	c.Levels = maps.Clone(p.Levels)
	return &c
}

// Merge returns base with every non-empty part of override applied on top.
// Levels are merged per key; name and version come from override.
func Merge(base, override *Pack) *Pack {
	out := base.clone()
	out.Name = override.Name
	out.Version = override.Version
	for k, v := range override.Levels {
		out.Levels[k] = v
	}
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&out.Roleplay.PartyAndTopic, override.Roleplay.PartyAndTopic)
	set(&out.Roleplay.TopicOnly, override.Roleplay.TopicOnly)
	set(&out.Roleplay.PartyOnly, override.Roleplay.PartyOnly)
	set(&out.SubtopicPrefix, override.SubtopicPrefix)
	set(&out.CustomTopicPrefix, override.CustomTopicPrefix)
	set(&out.CustomOptionPrefix, override.CustomOptionPrefix)
	set(&out.HintsInstruction, override.HintsInstruction)
	set(&out.PrimingMessage, override.PrimingMessage)
	return out
}

// PackFor returns the pack selected by cfg: the built-in pack, overlaid with
// cfg.PackFile when set. The file's version must satisfy cfg.PackVersion.
func PackFor(cfg config.PromptConfig) (*Pack, error) {
	if cfg.PackFile == "" {
		return DefaultPack(), nil
	}
	override, err := LoadPack(cfg.PackFile)
	if err != nil {
		return nil, err
	}
	if err := CheckVersion(override.Version, cfg.PackVersion); err != nil {
		return nil, fmt.Errorf("prompt pack %s: %w", cfg.PackFile, err)
	}
	logger.Info("Loaded prompt pack", "name", override.Name, "version", override.Version.String(), "path", cfg.PackFile)
	return Merge(DefaultPack(), override), nil
}
