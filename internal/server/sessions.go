package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
	"github.com/Blubaugh09/SacredDialogue/internal/observe"
	"github.com/Blubaugh09/SacredDialogue/internal/session"
)

// startSessionRequest is the request body for opening a session. The client
// generates the session UUID so the same id can accompany its chat requests;
// an omitted id is minted server-side.
type startSessionRequest struct {
	CharacterID string `json:"character_id"`
	SessionID   string `json:"session_id,omitempty"`
	DeviceInfo  string `json:"device_info,omitempty"`
}

// endSessionRequest is the request body for closing a session.
type endSessionRequest struct {
	MessageCount int `json:"message_count"`
}

// StartSession opens a conversation session for a character.
// POST /api/sessions
func (s *Server) StartSession(c echo.Context) error {
	var req startSessionRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if _, ok := s.characters().Get(req.CharacterID); !ok {
		return errJSON(c, http.StatusNotFound, "character not found")
	}

	ctx := c.Request().Context()
	sess, err := s.sessions.Start(ctx, req.CharacterID, req.SessionID, req.DeviceInfo)
	if err != nil {
		if errors.Is(err, session.ErrInvalidID) {
			return errJSON(c, http.StatusBadRequest, "session_id must be a UUID")
		}
		observe.Logger(ctx).Error("session start failed", "character", req.CharacterID, "err", err)
		return errJSON(c, http.StatusInternalServerError, "failed to start session")
	}

	s.metrics.ActiveSessions.Add(ctx, 1)
	return c.JSON(http.StatusCreated, sess)
}

// EndSession closes a session with its final message count.
// POST /api/sessions/:id/end
func (s *Server) EndSession(c echo.Context) error {
	var req endSessionRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	if err := s.sessions.End(ctx, c.Param("id"), req.MessageCount); err != nil {
		if errors.Is(err, convstore.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, "session not found")
		}
		observe.Logger(ctx).Error("session end failed", "err", err)
		return errJSON(c, http.StatusInternalServerError, "failed to end session")
	}

	s.metrics.ActiveSessions.Add(ctx, -1)
	return c.NoContent(http.StatusNoContent)
}
