package server

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/metric"

	"github.com/Blubaugh09/SacredDialogue/internal/observe"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/stt"
)

// maxRecordingBytes bounds an uploaded voice recording. Chat questions are a
// few seconds of speech; 10 MiB is already generous.
const maxRecordingBytes = 10 << 20

// transcribeResponse is the JSON body of the transcription endpoint.
type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe converts an uploaded voice recording into text. The recording
// arrives as the "audio" part of a multipart form.
// POST /api/transcribe
func (s *Server) Transcribe(c echo.Context) error {
	if s.transcriber == nil {
		return errJSON(c, http.StatusNotImplemented, "voice input is not configured")
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, "missing audio upload")
	}
	if fh.Size > maxRecordingBytes {
		return errJSON(c, http.StatusRequestEntityTooLarge, "recording is too large")
	}

	f, err := fh.Open()
	if err != nil {
		return errJSON(c, http.StatusBadRequest, "unreadable audio upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxRecordingBytes+1))
	if err != nil || len(data) == 0 {
		return errJSON(c, http.StatusBadRequest, "unreadable audio upload")
	}
	if len(data) > maxRecordingBytes {
		return errJSON(c, http.StatusRequestEntityTooLarge, "recording is too large")
	}

	ctx := c.Request().Context()
	start := time.Now()

	text, err := s.transcriber.Transcribe(ctx, stt.Recording{
		Audio:    data,
		MIMEType: fh.Header.Get("Content-Type"),
		Language: c.FormValue("language"),
	})
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		// Transcription failures are transient from the visitor's point of
		// view: surface a retry message instead of failing the conversation.
		observe.Logger(ctx).Warn("transcription failed", "err", err)
		s.metrics.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			observe.Attr("provider", "stt"),
			observe.Attr("kind", "stt"),
		))
		return errJSON(c, http.StatusBadGateway, "could not understand the recording, please try again")
	}

	return c.JSON(http.StatusOK, transcribeResponse{Text: text})
}
