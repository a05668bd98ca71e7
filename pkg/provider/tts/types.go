package tts

// VoiceProfile describes a TTS voice configuration for a character.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (e.g., "onyx", "shimmer").
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 1.0 = normal, 0 = provider default).
	SpeedFactor float64

	// Metadata holds provider-specific voice attributes (gender, age, accent, etc.).
	Metadata map[string]string
}
