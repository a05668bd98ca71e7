package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"

	"github.com/Blubaugh09/SacredDialogue/internal/character"
	"github.com/Blubaugh09/SacredDialogue/internal/observe"
	"github.com/Blubaugh09/SacredDialogue/internal/playback"
	"github.com/Blubaugh09/SacredDialogue/internal/resolver"
)

// clientMessage is one inbound WebSocket frame. Type selects which of the
// remaining fields are meaningful.
type clientMessage struct {
	// Type is one of: ask, play, pause, resume, replay, complete,
	// interaction, autoplay_rejected.
	Type      string          `json:"type"`
	Question  string          `json:"question,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	History   []resolver.Turn `json:"history,omitempty"`
	Ticket    uint64          `json:"ticket,omitempty"`
}

// serverMessage is one outbound WebSocket frame.
type serverMessage struct {
	// Type is one of: delta, done, playback, error.
	Type      string           `json:"type"`
	Text      string           `json:"text,omitempty"`
	Result    *resolver.Result `json:"result,omitempty"`
	State     string           `json:"state,omitempty"`
	AudioPath string           `json:"audio_path,omitempty"`
	Ticket    uint64           `json:"ticket,omitempty"`
	Autoplay  bool             `json:"autoplay,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// wsArtifact identifies a stored narration clip inside the playback
// coordinator. The clip itself lives in the audio store, so there is nothing
// to release on Close.
type wsArtifact struct {
	path string
}

func (a *wsArtifact) ID() string   { return a.path }
func (a *wsArtifact) Close() error { return nil }

// ChatSocket runs a streaming conversation over a WebSocket. Questions are
// answered with incremental delta frames followed by a done frame, and a
// per-connection playback coordinator arbitrates which narration clip is
// active.
// GET /api/characters/:id/ws
func (s *Server) ChatSocket(c echo.Context) error {
	char, ok := s.lookup(c)
	if !ok {
		return errJSON(c, http.StatusNotFound, "character not found")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		return nil // Accept already wrote the handshake failure
	}

	ctx := c.Request().Context()
	pc := playback.New()
	defer pc.Close()
	defer conn.Close(websocket.StatusNormalClosure, "session over")

	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return nil // client went away
		}

		switch msg.Type {
		case "ask":
			s.handleAsk(ctx, conn, pc, char, msg)
		case "play":
			pc.MarkInteraction()
			if ticket, err := pc.Replay(); err == nil {
				s.sendPlayback(ctx, conn, pc, ticket, false)
			} else {
				s.sendError(ctx, conn, "nothing to play")
			}
		case "pause":
			if err := pc.Pause(); err == nil {
				s.sendState(ctx, conn, pc)
			}
		case "resume":
			if err := pc.Resume(); err == nil {
				s.sendState(ctx, conn, pc)
			}
		case "replay":
			pc.MarkInteraction()
			if ticket, err := pc.Replay(); err == nil {
				s.sendPlayback(ctx, conn, pc, ticket, false)
			} else {
				s.sendError(ctx, conn, "nothing to replay")
			}
		case "complete":
			pc.Complete(playback.Ticket(msg.Ticket))
			s.sendState(ctx, conn, pc)
		case "interaction":
			pc.MarkInteraction()
		case "autoplay_rejected":
			pc.AutoplayRejected(playback.Ticket(msg.Ticket))
			s.sendState(ctx, conn, pc)
		default:
			s.sendError(ctx, conn, "unknown message type")
		}
	}
}

// handleAsk streams one answer to the client and, when a narration exists,
// offers it to the playback coordinator for autoplay.
func (s *Server) handleAsk(ctx context.Context, conn *websocket.Conn, pc *playback.Coordinator, char *character.Character, msg clientMessage) {
	start := time.Now()

	events, err := s.resolver.ResolveStream(ctx, char, msg.Question, msg.SessionID, msg.History)
	if err != nil {
		if errors.Is(err, resolver.ErrEmptyQuestion) {
			s.sendError(ctx, conn, "question is required")
			return
		}
		observe.Logger(ctx).Error("streamed resolution failed", "character", char.ID, "err", err)
		s.sendError(ctx, conn, "failed to answer the question")
		return
	}

	for ev := range events {
		if ev.Done {
			s.metrics.RecordResolution(ctx, char.ID, string(ev.Result.Provenance), time.Since(start).Seconds())
			wsjson.Write(ctx, conn, serverMessage{Type: "done", Result: ev.Result})
			if ev.Result.AudioPath != "" {
				if ticket, err := pc.Autoplay(&wsArtifact{path: ev.Result.AudioPath}); err == nil {
					s.sendPlayback(ctx, conn, pc, ticket, true)
				}
			}
			return
		}
		wsjson.Write(ctx, conn, serverMessage{Type: "delta", Text: ev.Delta})
	}
}

// sendPlayback announces a newly started playback with its ticket.
func (s *Server) sendPlayback(ctx context.Context, conn *websocket.Conn, pc *playback.Coordinator, ticket playback.Ticket, autoplay bool) {
	state, id := pc.State()
	wsjson.Write(ctx, conn, serverMessage{
		Type:      "playback",
		State:     state.String(),
		AudioPath: id,
		Ticket:    uint64(ticket),
		Autoplay:  autoplay,
	})
}

// sendState announces the coordinator's current state without a new ticket.
func (s *Server) sendState(ctx context.Context, conn *websocket.Conn, pc *playback.Coordinator) {
	state, id := pc.State()
	wsjson.Write(ctx, conn, serverMessage{
		Type:      "playback",
		State:     state.String(),
		AudioPath: id,
	})
}

// sendError reports a recoverable error without closing the socket.
func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, msg string) {
	wsjson.Write(ctx, conn, serverMessage{Type: "error", Error: msg})
}
