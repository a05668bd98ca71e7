// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., the OpenAI Whisper API
// or a self-hosted whisper-server) and presents a uniform batch interface:
// one recorded utterance in, transcribed text out. Voice input in the chat UI
// is a short single recording, so batch transcription is the natural shape.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Recording is a complete recorded utterance awaiting transcription.
type Recording struct {
	// Audio is the encoded audio payload.
	Audio []byte

	// MIMEType identifies the encoding (e.g., "audio/webm", "audio/wav").
	MIMEType string

	// Language is an optional BCP-47 language hint (e.g., "en").
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts a recorded utterance into text. Returns an error if
	// the provider cannot be reached, rejects the payload, or ctx is cancelled.
	Transcribe(ctx context.Context, rec Recording) (string, error)
}
