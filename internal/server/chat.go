package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Blubaugh09/SacredDialogue/internal/observe"
	"github.com/Blubaugh09/SacredDialogue/internal/resolver"
)

// chatRequest is the request body of the chat endpoint.
type chatRequest struct {
	Question string `json:"question"`
	// SessionID is the client's session UUID; recorded on the persisted
	// conversation when present.
	SessionID string          `json:"session_id,omitempty"`
	History   []resolver.Turn `json:"history,omitempty"`
}

// Chat answers one question in the addressed character's voice.
// POST /api/characters/:id/chat
func (s *Server) Chat(c echo.Context) error {
	char, ok := s.lookup(c)
	if !ok {
		return errJSON(c, http.StatusNotFound, "character not found")
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	start := time.Now()

	result, err := s.resolver.Resolve(ctx, char, req.Question, req.SessionID, req.History)
	if err != nil {
		if errors.Is(err, resolver.ErrEmptyQuestion) {
			return errJSON(c, http.StatusBadRequest, "question is required")
		}
		observe.Logger(ctx).Error("chat resolution failed", "character", char.ID, "err", err)
		return errJSON(c, http.StatusInternalServerError, "failed to answer the question")
	}

	s.metrics.RecordResolution(ctx, char.ID, string(result.Provenance), time.Since(start).Seconds())
	return c.JSON(http.StatusOK, result)
}
