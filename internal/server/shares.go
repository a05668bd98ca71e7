package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
	"github.com/Blubaugh09/SacredDialogue/internal/observe"
)

// createShareRequest is the request body for creating a share link.
type createShareRequest struct {
	CharacterID string `json:"character_id"`
	Question    string `json:"question"`
	Response    string `json:"response"`
	AudioPath   string `json:"audio_path,omitempty"`
}

// shareView is the public JSON shape of a share.
type shareView struct {
	ID            string `json:"id"`
	CharacterID   string `json:"character_id"`
	CharacterName string `json:"character_name,omitempty"`
	Question      string `json:"question"`
	Response      string `json:"response"`
	AudioPath     string `json:"audio_path,omitempty"`
	URL           string `json:"url"`
}

// CreateShare mints a share link for one question and answer.
// POST /api/shares
func (s *Server) CreateShare(c echo.Context) error {
	var req createShareRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" || req.Response == "" {
		return errJSON(c, http.StatusBadRequest, "question and response are required")
	}
	char, ok := s.characters().Get(req.CharacterID)
	if !ok {
		return errJSON(c, http.StatusNotFound, "character not found")
	}

	ctx := c.Request().Context()
	sh, err := s.shares.Create(ctx, char.ID, req.Question, req.Response, req.AudioPath)
	if err != nil {
		observe.Logger(ctx).Error("share creation failed", "character", char.ID, "err", err)
		return errJSON(c, http.StatusInternalServerError, "failed to create share")
	}

	s.metrics.RecordShareCreated(ctx, char.ID)
	return c.JSON(http.StatusCreated, shareViewOf(sh, char.Name))
}

// GetShare resolves a share link. Unknown or mismatched links yield a plain
// 404 so stale links degrade into the share-not-found page state.
// GET /share/:characterID/:shareID
func (s *Server) GetShare(c echo.Context) error {
	characterID := c.Param("characterID")
	sh, err := s.shares.Resolve(c.Request().Context(), characterID, c.Param("shareID"))
	if err != nil {
		if errors.Is(err, convstore.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, "share not found")
		}
		observe.Logger(c.Request().Context()).Error("share lookup failed", "err", err)
		return errJSON(c, http.StatusInternalServerError, "failed to load share")
	}

	name := ""
	if char, ok := s.characters().Get(characterID); ok {
		name = char.Name
	}
	return c.JSON(http.StatusOK, shareViewOf(sh, name))
}

func shareViewOf(sh *convstore.Share, characterName string) shareView {
	return shareView{
		ID:            sh.ID,
		CharacterID:   sh.CharacterID,
		CharacterName: characterName,
		Question:      sh.Question,
		Response:      sh.Response,
		AudioPath:     sh.AudioPath,
		URL:           "/share/" + sh.CharacterID + "/" + sh.ID,
	}
}
