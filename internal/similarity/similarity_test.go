package similarity

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases", input: "Tell Me About ISAAC", want: "tell me about isaac"},
		{name: "strips punctuation", input: "Who was Isaac's mother?!", want: "who was isaacs mother"},
		{name: "collapses whitespace", input: "  tell \t me\n\nabout   isaac  ", want: "tell me about isaac"},
		{name: "hyphen and underscore removed", input: "first-born son_of Abraham", want: "firstborn sonof abraham"},
		{name: "empty input", input: "", want: ""},
		{name: "punctuation only", input: "?!...", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.input); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestJaccardScore(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "tell me about isaac", b: "tell me about isaac", want: 1},
		{name: "identical after normalization", a: "Tell me about Isaac!", b: "tell me about isaac", want: 1},
		{name: "word order ignored", a: "about isaac tell me", b: "tell me about isaac", want: 1},
		{name: "disjoint", a: "sacrifice on moriah", b: "journey from ur", want: 0},
		{name: "empty left", a: "", b: "tell me about isaac", want: 0},
		{name: "both empty", a: "", b: "", want: 0},
		// 3 shared tokens, 5 in the union: just below the 0.7 default threshold.
		{name: "one token differs", a: "tell me about isaac", b: "tell me about ishmael", want: 0.6},
		{name: "repeated tokens count once", a: "faith faith faith", b: "faith", want: 1},
	}

	var s JaccardScorer
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Score(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Score(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestScorersSymmetricAndBounded(t *testing.T) {
	pairs := [][2]string{
		{"tell me about the covenant", "what was the covenant with god"},
		{"who was sarah", "tell me about sarah your wife"},
		{"", "anything"},
		{"shalom", "shalom"},
	}

	scorers := map[string]Scorer{
		"jaccard":      JaccardScorer{},
		"jaro-winkler": JaroWinklerScorer{},
	}

	for name, s := range scorers {
		for _, p := range pairs {
			ab := s.Score(p[0], p[1])
			ba := s.Score(p[1], p[0])
			if ab != ba {
				t.Errorf("%s: Score(%q, %q) = %v but reversed = %v", name, p[0], p[1], ab, ba)
			}
			if ab < 0 || ab > 1 {
				t.Errorf("%s: Score(%q, %q) = %v, out of [0, 1]", name, p[0], p[1], ab)
			}
		}
	}
}

func TestJaroWinklerIdentity(t *testing.T) {
	var s JaroWinklerScorer
	if got := s.Score("Tell me about the flood", "tell me about the flood?"); got != 1 {
		t.Errorf("Score on normalized-equal inputs = %v, want 1", got)
	}
}

func TestNewScorer(t *testing.T) {
	for _, name := range []string{"", "jaccard", "jaro-winkler"} {
		if _, err := NewScorer(name); err != nil {
			t.Errorf("NewScorer(%q) returned error: %v", name, err)
		}
	}
	if _, err := NewScorer("levenshtein"); err == nil {
		t.Error("NewScorer with unknown name should return an error")
	}
}
