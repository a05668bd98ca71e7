package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Blubaugh09/SacredDialogue/internal/character"
)

// characterView is the public JSON shape of a character.
type characterView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Color       string   `json:"color,omitempty"`
	Greeting    string   `json:"greeting"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func viewOf(char *character.Character) characterView {
	return characterView{
		ID:          char.ID,
		Name:        char.Name,
		Color:       char.Color,
		Greeting:    char.Greeting,
		Suggestions: char.DefaultSuggestions,
	}
}

// ListCharacters returns every available character.
// GET /api/characters
func (s *Server) ListCharacters(c echo.Context) error {
	all := s.characters().All()
	views := make([]characterView, len(all))
	for i, char := range all {
		views[i] = viewOf(char)
	}
	return c.JSON(http.StatusOK, map[string]any{"characters": views})
}

// GetCharacter returns one character by ID.
// GET /api/characters/:id
func (s *Server) GetCharacter(c echo.Context) error {
	char, ok := s.lookup(c)
	if !ok {
		return errJSON(c, http.StatusNotFound, "character not found")
	}
	return c.JSON(http.StatusOK, viewOf(char))
}

// greetingResponse is the JSON body of the greeting endpoint.
type greetingResponse struct {
	Text      string `json:"text"`
	AudioPath string `json:"audio_path,omitempty"`
}

// Greeting returns the character's greeting line together with its narration,
// synthesising and storing the clip on first request.
// GET /api/characters/:id/greeting
func (s *Server) Greeting(c echo.Context) error {
	char, ok := s.lookup(c)
	if !ok {
		return errJSON(c, http.StatusNotFound, "character not found")
	}

	audioPath := s.resolver.PrepareGreeting(c.Request().Context(), char)
	return c.JSON(http.StatusOK, greetingResponse{
		Text:      char.Greeting,
		AudioPath: audioPath,
	})
}
