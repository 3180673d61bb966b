package prompt

import (
	"strings"

	"github.com/AltairaLabs/VoiceKit/pkg/config"
	"github.com/AltairaLabs/VoiceKit/runtime/logger"
	"github.com/AltairaLabs/VoiceKit/runtime/realtime"
	"github.com/AltairaLabs/VoiceKit/runtime/template"
)

const defaultPhrase = "conversation"

// Subtopic narrows a topic.
type Subtopic struct {
	Name        string
	Description string
}

// Scenario describes the conversation a session should open with.
type Scenario struct {
	Level Level
	// Topic is the selected catalog topic name.
	Topic string
	// ConversationTopics and Parties come from the roleplay picker; only the
	// first entry of each is used.
	ConversationTopics []string
	Parties            []string
	Subtopic           Subtopic
	// CustomTopic is a topic the user typed in; it adds a focus line ahead of
	// the level template.
	CustomTopic string
	// CustomOption is free text the user typed; it takes priority over Topic
	// in the priming message.
	CustomOption string
	ShowHints    bool
}

// ScenarioFromConfig builds a scenario from the prompt section of the config.
func ScenarioFromConfig(cfg config.PromptConfig) Scenario {
	s := Scenario{
		Level:        Level(cfg.Level),
		Topic:        cfg.Topic,
		Parties:      cfg.Parties,
		Subtopic:     Subtopic{Name: cfg.Subtopic, Description: cfg.SubtopicDescription},
		CustomOption: strings.TrimSpace(cfg.CustomOption),
		ShowHints:    cfg.ShowHints,
	}
	if t := strings.TrimSpace(cfg.CustomTopic); t != "" {
		s.CustomTopic = t
		s.ConversationTopics = []string{t}
	}
	return s
}

// ResolvedTopic returns the effective topic name: Topic, then the first
// conversation topic, then the subtopic name. It is empty when none is set.
func (s Scenario) ResolvedTopic() string {
	if t := strings.TrimSpace(s.Topic); t != "" {
		return t
	}
	if len(s.ConversationTopics) > 0 && s.ConversationTopics[0] != "" {
		return s.ConversationTopics[0]
	}
	return strings.TrimSpace(s.Subtopic.Name)
}

// TopicPhrase is the noun phrase used in the priming message.
func (s Scenario) TopicPhrase() string {
	if s.CustomOption != "" {
		return s.CustomOption + " " + defaultPhrase
	}
	name := s.ResolvedTopic()
	if name == "" || strings.EqualFold(name, defaultPhrase) {
		return defaultPhrase
	}
	return name + " " + defaultPhrase
}

// RoleplayContext renders the roleplay fragment for the scenario's first
// conversation topic and party. It is empty when neither is set.
func (p *Pack) RoleplayContext(s Scenario) string {
	var topic, party string
	if len(s.ConversationTopics) > 0 {
		topic = s.ConversationTopics[0]
	}
	if len(s.Parties) > 0 {
		party = s.Parties[0]
	}

	var tmpl string
	switch {
	case topic != "" && party != "":
		tmpl = p.Roleplay.PartyAndTopic
	case topic != "":
		tmpl = p.Roleplay.TopicOnly
	case party != "":
		tmpl = p.Roleplay.PartyOnly
	default:
		return ""
	}
	return template.NewRenderer().RenderLenient(tmpl, map[string]string{
		"conversation_topic": topic,
		"party":              party,
	})
}

// Instructions renders the system instruction for s. It returns "" when the
// scenario has no topic or the pack has no template for its level.
func (p *Pack) Instructions(s Scenario) (string, error) {
	topic := s.ResolvedTopic()
	if topic == "" {
		return "", nil
	}
	level := s.Level
	if level == "" {
		level = Beginner
	}
	tmpl, ok := p.Levels[level]
	if !ok {
		logger.Warn("No prompt template for level", "level", level, "pack", p.Name)
		return "", nil
	}

	r := template.NewRenderer()
	vars := map[string]string{
		"topic":            topic,
		"roleplay_context": p.RoleplayContext(s),
		"custom_option":    s.CustomOption,
	}
	instruction, err := r.Render(tmpl, vars)
	if err != nil {
		return "", err
	}

	if s.Subtopic.Name != "" || s.Subtopic.Description != "" {
		sub := s.Subtopic.Name
		if s.Subtopic.Description != "" {
			sub += ": " + s.Subtopic.Description
		}
		instruction = r.RenderLenient(p.SubtopicPrefix, map[string]string{"subtopic": sub}) + "\n" + instruction
	}
	if s.CustomTopic != "" && p.CustomTopicPrefix != "" {
		focus := r.RenderLenient(p.CustomTopicPrefix, map[string]string{"topic": s.CustomTopic})
		instruction = focus + "\n\n" + instruction
	}
	if s.CustomOption != "" && p.CustomOptionPrefix != "" {
		instruction = r.RenderLenient(p.CustomOptionPrefix, vars) + "\n\n" + instruction
	}
	if s.ShowHints && p.HintsInstruction != "" {
		instruction = strings.TrimRight(instruction, "\n") + "\n\n" + strings.TrimSpace(p.HintsInstruction)
	}
	return instruction, nil
}

// PrimingText is the first user message, asking the assistant to begin.
func (p *Pack) PrimingText(s Scenario) string {
	return template.NewRenderer().RenderLenient(p.PrimingMessage, map[string]string{
		"topic_phrase": s.TopicPhrase(),
	})
}

// Priming returns the messages sent once the control channel opens, in
// order: session.update carrying session, the system instruction (omitted
// when empty), the priming user message and response.create.
func (p *Pack) Priming(s Scenario, session realtime.SessionConfig) ([]any, error) {
	instruction, err := p.Instructions(s)
	if err != nil {
		return nil, err
	}
	msgs := []any{realtime.NewSessionUpdate(session)}
	if instruction != "" {
		msgs = append(msgs, realtime.NewMessage(realtime.RoleSystem, instruction))
	}
	msgs = append(msgs,
		realtime.NewMessage(realtime.RoleUser, p.PrimingText(s)),
		realtime.NewResponseCreate(),
	)
	return msgs, nil
}
