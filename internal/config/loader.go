package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":        {"openai", "elevenlabs"},
	"stt":        {"openai", "whisper-server"},
	"embeddings": {"openai", "ollama"},
}

// ValidScorers lists the similarity scorers accepted by resolver.scorer.
var ValidScorers = []string{"jaccard", "jaro-winkler"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandSecrets(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandSecrets resolves ${VAR} references in provider API keys against the
// process environment, so keys can stay out of the config file.
func expandSecrets(cfg *Config) {
	for kind, chain := range map[string]*ProviderChain{
		"llm": &cfg.Providers.LLM,
		"tts": &cfg.Providers.TTS,
		"stt": &cfg.Providers.STT,
	} {
		expandAPIKey(kind, &chain.ProviderEntry)
		for i := range chain.Fallbacks {
			expandAPIKey(kind, &chain.Fallbacks[i])
		}
	}
	expandAPIKey("embeddings", &cfg.Providers.Embeddings)
}

func expandAPIKey(kind string, e *ProviderEntry) {
	if !strings.Contains(e.APIKey, "$") {
		return
	}
	expanded := os.ExpandEnv(e.APIKey)
	if expanded == "" {
		slog.Warn("api_key references an environment variable that is not set",
			"kind", kind, "provider", e.Name)
	}
	e.APIKey = expanded
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Provider name validation: warn for unknown provider names.
	errs = append(errs, validateChain("llm", cfg.Providers.LLM)...)
	errs = append(errs, validateChain("tts", cfg.Providers.TTS)...)
	errs = append(errs, validateChain("stt", cfg.Providers.STT)...)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Provider availability warnings
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; answers will come from the characters' static response tables only")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; answers will be text-only")
	}

	// Embeddings and store dimensions must agree.
	if cfg.Providers.Embeddings.Name != "" && cfg.Store.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but store.embedding_dimensions is not set; semantic question matching stays disabled")
	}
	if cfg.Store.EmbeddingDimensions > 0 && cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, errors.New("store.embedding_dimensions is set but providers.embeddings is not configured"))
	}
	if cfg.Store.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("store.embedding_dimensions %d must not be negative", cfg.Store.EmbeddingDimensions))
	}

	// Store availability
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; conversations are kept in memory and lost on restart")
	}

	// Resolver
	if cfg.Resolver.Threshold < 0 || cfg.Resolver.Threshold > 1 {
		errs = append(errs, fmt.Errorf("resolver.threshold %.2f is out of range [0, 1]", cfg.Resolver.Threshold))
	}
	if cfg.Resolver.Scorer != "" && !slices.Contains(ValidScorers, cfg.Resolver.Scorer) {
		errs = append(errs, fmt.Errorf("resolver.scorer %q is invalid; valid values: jaccard, jaro-winkler", cfg.Resolver.Scorer))
	}
	if cfg.Resolver.RecentWindow < 0 {
		errs = append(errs, fmt.Errorf("resolver.recent_window %d must not be negative", cfg.Resolver.RecentWindow))
	}
	if cfg.Resolver.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("resolver.max_tokens %d must not be negative", cfg.Resolver.MaxTokens))
	}
	if cfg.Resolver.Temperature < 0 || cfg.Resolver.Temperature > 2 {
		errs = append(errs, fmt.Errorf("resolver.temperature %.2f is out of range [0, 2]", cfg.Resolver.Temperature))
	}

	// Speech
	if cfg.Speech.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("speech.timeout_seconds %d must not be negative", cfg.Speech.TimeoutSeconds))
	}
	if cfg.Speech.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("speech.cache_size %d must not be negative", cfg.Speech.CacheSize))
	}

	// Characters
	if cfg.Characters.ReloadSeconds < 0 {
		errs = append(errs, fmt.Errorf("characters.reload_seconds %d must not be negative", cfg.Characters.ReloadSeconds))
	}

	return errors.Join(errs...)
}

// validateChain checks a provider chain: fallbacks without a primary are a
// configuration error, and every name is checked against the known list.
func validateChain(kind string, chain ProviderChain) []error {
	var errs []error
	if chain.Name == "" && len(chain.Fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("providers.%s.fallbacks is set but providers.%s.name is empty", kind, kind))
	}
	validateProviderName(kind, chain.Name)
	for i, e := range chain.Fallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d].name is required", kind, i))
			continue
		}
		validateProviderName(kind, e.Name)
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
