// Package server provides the HTTP API of SacredDialogue: character
// listings, chat resolution over REST and WebSocket, voice transcription,
// share links, sessions, and audio delivery.
package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Blubaugh09/SacredDialogue/internal/character"
	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
	"github.com/Blubaugh09/SacredDialogue/internal/health"
	"github.com/Blubaugh09/SacredDialogue/internal/observe"
	"github.com/Blubaugh09/SacredDialogue/internal/resolver"
	"github.com/Blubaugh09/SacredDialogue/internal/session"
	"github.com/Blubaugh09/SacredDialogue/internal/share"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/stt"
)

// Options collects the server's dependencies. Characters, Resolver, Store,
// Shares, Sessions, and Metrics are required; Transcriber and Health are
// optional.
type Options struct {
	// Characters returns the current character registry. It is a function so
	// a reloading watcher can swap definitions under a running server.
	Characters func() *character.Registry

	Resolver *resolver.Resolver
	Store    convstore.Store
	Shares   *share.Service
	Sessions *session.Manager
	Metrics  *observe.Metrics

	// Transcriber handles voice input. When nil, /api/transcribe responds
	// 501.
	Transcriber stt.Provider

	// Health serves the liveness and readiness probes.
	Health *health.Handler
}

// Server handles HTTP requests.
type Server struct {
	characters  func() *character.Registry
	resolver    *resolver.Resolver
	store       convstore.Store
	shares      *share.Service
	sessions    *session.Manager
	metrics     *observe.Metrics
	transcriber stt.Provider
	health      *health.Handler
}

// New creates a new server from opts.
func New(opts Options) *Server {
	return &Server{
		characters:  opts.Characters,
		resolver:    opts.Resolver,
		store:       opts.Store,
		shares:      opts.Shares,
		sessions:    opts.Sessions,
		metrics:     opts.Metrics,
		transcriber: opts.Transcriber,
		health:      opts.Health,
	}
}

// RegisterRoutes registers all routes with the echo server.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/characters", s.ListCharacters)
	e.GET("/api/characters/:id", s.GetCharacter)
	e.GET("/api/characters/:id/greeting", s.Greeting)
	e.POST("/api/characters/:id/chat", s.Chat)
	e.GET("/api/characters/:id/ws", s.ChatSocket)

	e.POST("/api/transcribe", s.Transcribe)

	e.POST("/api/shares", s.CreateShare)
	e.GET("/share/:characterID/:shareID", s.GetShare)

	e.GET("/audio/*", s.Audio)

	e.POST("/api/sessions", s.StartSession)
	e.POST("/api/sessions/:id/end", s.EndSession)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if s.health != nil {
		e.GET("/healthz", echo.WrapHandler(http.HandlerFunc(s.health.Healthz)))
		e.GET("/readyz", echo.WrapHandler(http.HandlerFunc(s.health.Readyz)))
	}
}

// lookup finds the character addressed by the :id route parameter.
func (s *Server) lookup(c echo.Context) (*character.Character, bool) {
	char, ok := s.characters().Get(c.Param("id"))
	return char, ok
}

// errJSON writes a uniform JSON error body.
func errJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
