// Package character holds the biblical figure definitions the dialogue server
// serves: identity, greeting, persona parameters for the LLM system prompt,
// TTS voice settings, and the keyword-matched static responses used when no
// generation backend is available.
//
// Definitions are authored as YAML files and loaded at startup; see LoadDir.
package character

import (
	"errors"
	"fmt"
	"strings"
)

// FallbackResponse is returned by StaticResponse when no keyword category
// matches the question.
const FallbackResponse = "I'm not sure I understand that question. Perhaps ask me about my journey, my family, or my experiences in the Bible?"

// Persona describes how a character speaks and what they can know. Every field
// is interpolated into the LLM system prompt.
type Persona struct {
	Age                  string `yaml:"age"`
	Tone                 string `yaml:"tone"`
	SpeakingStyle        string `yaml:"speaking_style"`
	PersonalityTraits    string `yaml:"personality_traits"`
	Background           string `yaml:"background"`
	HistoricalPeriod     string `yaml:"historical_period"`
	KnowledgeLimitations string `yaml:"knowledge_limitations"`
	RelationshipToGod    string `yaml:"relationship_to_god"`
	SpeechPatterns       string `yaml:"speech_patterns"`
}

// Voice carries the TTS settings for a character.
type Voice struct {
	// ID is the provider voice identifier (e.g. "onyx" for OpenAI TTS).
	ID string `yaml:"id"`
	// Speed is the playback speed factor. Zero means the synthesizer default.
	Speed float64 `yaml:"speed"`
}

// Category is one topic a character can answer without an LLM: a list of
// trigger keywords, the canned response, and optional follow-up suggestions
// shown after the topic comes up. Categories are matched in declaration order
// and the first hit wins.
type Category struct {
	Tag         string   `yaml:"tag"`
	Keywords    []string `yaml:"keywords"`
	Response    string   `yaml:"response"`
	Suggestions []string `yaml:"suggestions,omitempty"`
}

// Character is one loaded figure definition.
type Character struct {
	ID                 string     `yaml:"id"`
	Name               string     `yaml:"name"`
	Color              string     `yaml:"color"`
	Greeting           string     `yaml:"greeting"`
	Voice              Voice      `yaml:"voice"`
	Persona            Persona    `yaml:"persona"`
	DefaultSuggestions []string   `yaml:"default_suggestions"`
	Categories         []Category `yaml:"categories"`
}

// Validate reports every structural problem with the definition at once.
func (c *Character) Validate() error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if c.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if c.Greeting == "" {
		errs = append(errs, errors.New("greeting must not be empty"))
	}
	if c.Voice.ID == "" {
		errs = append(errs, errors.New("voice.id must not be empty"))
	}
	if c.Voice.Speed < 0 {
		errs = append(errs, fmt.Errorf("voice.speed must not be negative, got %v", c.Voice.Speed))
	}
	seen := make(map[string]struct{}, len(c.Categories))
	for i, cat := range c.Categories {
		if cat.Tag == "" {
			errs = append(errs, fmt.Errorf("categories[%d]: tag must not be empty", i))
			continue
		}
		if _, dup := seen[cat.Tag]; dup {
			errs = append(errs, fmt.Errorf("categories[%d]: duplicate tag %q", i, cat.Tag))
		}
		seen[cat.Tag] = struct{}{}
		if len(cat.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("category %q: keywords must not be empty", cat.Tag))
		}
		if cat.Response == "" {
			errs = append(errs, fmt.Errorf("category %q: response must not be empty", cat.Tag))
		}
	}
	return errors.Join(errs...)
}

// matchCategory returns the first category, in declaration order, with a
// keyword that appears as a case-insensitive substring of the question.
func (c *Character) matchCategory(question string) (*Category, bool) {
	lower := strings.ToLower(question)
	for i := range c.Categories {
		for _, kw := range c.Categories[i].Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return &c.Categories[i], true
			}
		}
	}
	return nil, false
}

// StaticResponse answers a question from the keyword tables alone. When no
// category matches it returns FallbackResponse; ok reports whether a category
// matched.
func (c *Character) StaticResponse(question string) (response string, ok bool) {
	if cat, found := c.matchCategory(question); found {
		return cat.Response, true
	}
	return FallbackResponse, false
}

// SuggestionsFor returns the follow-up suggestions to show after question:
// the matched category's own suggestions when it has any, otherwise the
// character's defaults. The returned slice must not be mutated.
func (c *Character) SuggestionsFor(question string) []string {
	if cat, found := c.matchCategory(question); found && len(cat.Suggestions) > 0 {
		return cat.Suggestions
	}
	return c.DefaultSuggestions
}

// SystemPrompt renders the LLM system prompt that keeps the model in
// character: the persona sheet followed by the standing instructions,
// including the regional accent directive.
func (c *Character) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a figure from biblical times. Respond to questions as this character would, based on their historical context, personality, and experiences.\n\n", c.Name)
	b.WriteString("Your background and characteristics:\n")
	fmt.Fprintf(&b, "- Age/Era: %s\n", c.Persona.Age)
	fmt.Fprintf(&b, "- Tone: %s\n", c.Persona.Tone)
	fmt.Fprintf(&b, "- Speaking style: %s\n", c.Persona.SpeakingStyle)
	fmt.Fprintf(&b, "- Personality: %s\n", c.Persona.PersonalityTraits)
	fmt.Fprintf(&b, "- Background: %s\n", c.Persona.Background)
	fmt.Fprintf(&b, "- Historical period: %s\n", c.Persona.HistoricalPeriod)
	fmt.Fprintf(&b, "- Knowledge limitations: %s\n", c.Persona.KnowledgeLimitations)
	fmt.Fprintf(&b, "- Relationship to God: %s\n", c.Persona.RelationshipToGod)
	fmt.Fprintf(&b, "- Speech patterns: %s\n", c.Persona.SpeechPatterns)
	b.WriteString("\nInstructions:\n")
	fmt.Fprintf(&b, "1. Stay completely in character as %s throughout the conversation.\n", c.Name)
	b.WriteString("2. Draw on the personality traits and speaking style described above.\n")
	b.WriteString("3. Only reference knowledge that would have been available during your lifetime.\n")
	b.WriteString("4. Use personal pronouns (I, me, my) when referring to yourself and your experiences.\n")
	b.WriteString("5. Maintain the tone, speech patterns, and personality described above at all times.\n")
	b.WriteString("6. Keep your responses concise but meaningful - about 1-3 paragraphs.\n")
	b.WriteString("7. Never break character or acknowledge that you are an AI.\n")
	b.WriteString("8. Respond in English using an accent or speech pattern similar to a native Hebrew or Arabic speaker from Israel/Palestine. You are a speaker from the Israel/Palestine region speaking fluent English with a local accent.")
	return b.String()
}
