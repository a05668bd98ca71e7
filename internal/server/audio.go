package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
	"github.com/Blubaugh09/SacredDialogue/internal/observe"
)

// Audio serves a stored narration clip. Paths are the store keys handed out
// in resolution results (e.g. "responses/<id>.mp3").
// GET /audio/*
func (s *Server) Audio(c echo.Context) error {
	path := c.Param("*")
	if path == "" {
		return errJSON(c, http.StatusNotFound, "audio not found")
	}

	ctx := c.Request().Context()
	obj, err := s.store.GetAudio(ctx, path)
	if err != nil {
		if errors.Is(err, convstore.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, "audio not found")
		}
		observe.Logger(ctx).Error("audio lookup failed", "path", path, "err", err)
		return errJSON(c, http.StatusInternalServerError, "failed to load audio")
	}

	// Narrations are content-addressed by conversation; safe to cache hard.
	c.Response().Header().Set("Cache-Control", "public, max-age=86400, immutable")
	return c.Blob(http.StatusOK, obj.MIMEType, obj.Data)
}
