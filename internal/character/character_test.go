package character

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testCharacter() *Character {
	return &Character{
		ID:       "abraham",
		Name:     "Abraham",
		Color:    "#8B4513",
		Greeting: "Greetings! I am Abraham.",
		Voice:    Voice{ID: "onyx", Speed: 1.3},
		Persona: Persona{
			Age:                  "elderly",
			Tone:                 "wise and reverent",
			SpeakingStyle:        "deliberate pace",
			PersonalityTraits:    "faithful, hospitable",
			Background:           "Patriarch who journeyed from Ur to Canaan",
			HistoricalPeriod:     "Ancient Near East",
			KnowledgeLimitations: "Genesis-era events only",
			RelationshipToGod:    "direct and reverent",
			SpeechPatterns:       "references his journey often",
		},
		DefaultSuggestions: []string{"Tell me about your journey"},
		Categories: []Category{
			{
				Tag:         "journey",
				Keywords:    []string{"journey", "ur", "canaan"},
				Response:    "God called me to leave my home in Ur.",
				Suggestions: []string{"Tell me about your time in Egypt"},
			},
			{
				Tag:      "isaac",
				Keywords: []string{"isaac", "son", "sacrifice"},
				Response: "The day God asked me to sacrifice Isaac tested my faith.",
			},
		},
	}
}

func TestValidate(t *testing.T) {
	if err := testCharacter().Validate(); err != nil {
		t.Fatalf("valid character failed validation: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Character)
		want   string
	}{
		{"missing id", func(c *Character) { c.ID = "" }, "id"},
		{"missing greeting", func(c *Character) { c.Greeting = "" }, "greeting"},
		{"missing voice", func(c *Character) { c.Voice.ID = "" }, "voice.id"},
		{"negative speed", func(c *Character) { c.Voice.Speed = -1 }, "voice.speed"},
		{"empty keywords", func(c *Character) { c.Categories[0].Keywords = nil }, "keywords"},
		{"empty response", func(c *Character) { c.Categories[1].Response = "" }, "response"},
		{"duplicate tag", func(c *Character) { c.Categories[1].Tag = "journey" }, "duplicate"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := testCharacter()
			tc.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestStaticResponse(t *testing.T) {
	c := testCharacter()

	resp, ok := c.StaticResponse("Tell me about your JOURNEY from Ur")
	if !ok {
		t.Fatal("expected a category match")
	}
	if want := c.Categories[0].Response; resp != want {
		t.Errorf("got %q, want %q", resp, want)
	}

	// Both categories match; declaration order decides.
	resp, ok = c.StaticResponse("on your journey, did you bring your son isaac?")
	if !ok || resp != c.Categories[0].Response {
		t.Errorf("first declared category should win, got %q", resp)
	}

	resp, ok = c.StaticResponse("what is your favorite food?")
	if ok {
		t.Error("no category should match")
	}
	if resp != FallbackResponse {
		t.Errorf("got %q, want the fallback response", resp)
	}
}

func TestSuggestionsFor(t *testing.T) {
	c := testCharacter()

	got := c.SuggestionsFor("tell me about the journey")
	if len(got) != 1 || got[0] != "Tell me about your time in Egypt" {
		t.Errorf("expected journey suggestions, got %v", got)
	}

	// Matched category without its own suggestions falls back to defaults.
	got = c.SuggestionsFor("what about isaac?")
	if len(got) != 1 || got[0] != "Tell me about your journey" {
		t.Errorf("expected default suggestions, got %v", got)
	}

	got = c.SuggestionsFor("unrelated question")
	if len(got) != 1 || got[0] != "Tell me about your journey" {
		t.Errorf("expected default suggestions, got %v", got)
	}
}

func TestSystemPrompt(t *testing.T) {
	c := testCharacter()
	prompt := c.SystemPrompt()

	for _, want := range []string{
		"You are Abraham",
		"- Age/Era: elderly",
		"- Background: Patriarch who journeyed from Ur to Canaan",
		"Never break character",
		"Israel/Palestine",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

const minimalYAML = `id: moses
name: Moses
color: "#B22222"
greeting: Greetings! I am Moses.
voice:
  id: echo
  speed: 1.3
persona:
  age: elderly
  tone: authoritative
  speaking_style: gravitas
  personality_traits: humble yet decisive
  background: Led the Israelites out of Egypt
  historical_period: Ancient Egypt
  knowledge_limitations: events of his lifetime
  relationship_to_god: face to face
  speech_patterns: references the wilderness journey
default_suggestions:
  - Tell me about the burning bush
categories:
  - tag: burning_bush
    keywords: [burning bush, horeb]
    response: I was tending the flock near Mount Horeb.
`

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "moses.yaml", minimalYAML)
	writeFile(t, dir, "abraham.yaml", strings.ReplaceAll(minimalYAML, "moses", "abraham"))
	writeFile(t, dir, "notes.txt", "not a definition")

	reg, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("loaded %d characters, want 2", reg.Len())
	}
	// Lexical filename order.
	if reg.All()[0].ID != "abraham" || reg.All()[1].ID != "moses" {
		t.Errorf("unexpected order: %q, %q", reg.All()[0].ID, reg.All()[1].ID)
	}
	if _, ok := reg.Get("moses"); !ok {
		t.Error("Get(moses) not found")
	}
	if _, ok := reg.Get("elijah"); ok {
		t.Error("Get(elijah) should not be found")
	}
}

func TestLoadDirRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", minimalYAML+"favorite_snack: manna\n")

	if _, err := LoadDir(dir); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestLoadDirEmpty(t *testing.T) {
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Fatal("expected an error for a directory without definitions")
	}
}

func TestNewRegistryDuplicateID(t *testing.T) {
	a, b := testCharacter(), testCharacter()
	if _, err := NewRegistry([]*Character{a, b}); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
