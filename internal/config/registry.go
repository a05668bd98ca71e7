package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Blubaugh09/SacredDialogue/pkg/provider/embeddings"
	embollama "github.com/Blubaugh09/SacredDialogue/pkg/provider/embeddings/ollama"
	embopenai "github.com/Blubaugh09/SacredDialogue/pkg/provider/embeddings/openai"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/llm"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/llm/anyllm"
	llmopenai "github.com/Blubaugh09/SacredDialogue/pkg/provider/llm/openai"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/stt"
	sttopenai "github.com/Blubaugh09/SacredDialogue/pkg/provider/stt/openai"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/stt/whisperserver"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/tts"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/tts/elevenlabs"
	ttsopenai "github.com/Blubaugh09/SacredDialogue/pkg/provider/tts/openai"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	llm        map[string]func(ProviderEntry) (llm.Provider, error)
	tts        map[string]func(ProviderEntry) (tts.Provider, error)
	stt        map[string]func(ProviderEntry) (stt.Provider, error)
	embeddings map[string]func(ProviderEntry) (embeddings.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:        make(map[string]func(ProviderEntry) (llm.Provider, error)),
		tts:        make(map[string]func(ProviderEntry) (tts.Provider, error)),
		stt:        make(map[string]func(ProviderEntry) (stt.Provider, error)),
		embeddings: make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
	}
}

// DefaultRegistry returns a [Registry] with every built-in provider
// registered under the names listed in [ValidProviderNames].
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterLLM("openai", func(e ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if e.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(e.BaseURL))
		}
		return llmopenai.New(e.APIKey, e.Model, opts...)
	})
	// Everything else the chat pipeline can talk to goes through any-llm.
	for _, name := range []string{"anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		r.RegisterLLM(name, func(e ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if e.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
			}
			if e.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
			}
			return anyllm.New(e.Name, e.Model, opts...)
		})
	}

	r.RegisterTTS("openai", func(e ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if e.Model != "" {
			opts = append(opts, ttsopenai.WithModel(e.Model))
		}
		return ttsopenai.New(e.APIKey, opts...)
	})
	r.RegisterTTS("elevenlabs", func(e ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if e.Model != "" {
			opts = append(opts, elevenlabs.WithModel(e.Model))
		}
		return elevenlabs.New(e.APIKey, opts...)
	})

	r.RegisterSTT("openai", func(e ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if e.Model != "" {
			opts = append(opts, sttopenai.WithModel(e.Model))
		}
		return sttopenai.New(e.APIKey, opts...)
	})
	r.RegisterSTT("whisper-server", func(e ProviderEntry) (stt.Provider, error) {
		var opts []whisperserver.Option
		if e.Model != "" {
			opts = append(opts, whisperserver.WithModel(e.Model))
		}
		return whisperserver.New(e.BaseURL, opts...)
	})

	r.RegisterEmbeddings("openai", func(e ProviderEntry) (embeddings.Provider, error) {
		var opts []embopenai.Option
		if e.BaseURL != "" {
			opts = append(opts, embopenai.WithBaseURL(e.BaseURL))
		}
		return embopenai.New(e.APIKey, e.Model, opts...)
	})
	r.RegisterEmbeddings("ollama", func(e ProviderEntry) (embeddings.Provider, error) {
		return embollama.New(e.BaseURL, e.Model)
	})

	return r
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateEmbeddings instantiates an embeddings provider using the factory registered under entry.Name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
