package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/Blubaugh09/SacredDialogue/internal/config"
)

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info

providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o
    fallbacks:
      - name: anthropic
        api_key: sk-ant-test
        model: claude-3-5-sonnet-latest
  tts:
    name: openai
    api_key: sk-test
    model: tts-1
    fallbacks:
      - name: elevenlabs
        api_key: el-test
  stt:
    name: openai
    api_key: sk-test
  embeddings:
    name: openai
    api_key: sk-test
    model: text-embedding-3-small

characters:
  dir: characters
  reload_seconds: 30

store:
  postgres_dsn: postgres://localhost:5432/sacreddialogue
  embedding_dimensions: 1536

resolver:
  threshold: 0.7
  scorer: jaccard
  recent_window: 100
  max_tokens: 1000
  temperature: 0.7

speech:
  timeout_seconds: 8
  cache_size: 256
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q", cfg.Server.LogLevel)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o" {
		t.Errorf("llm entry = %+v", cfg.Providers.LLM.ProviderEntry)
	}
	if got := cfg.Providers.LLM.Entries(); len(got) != 2 || got[1].Name != "anthropic" {
		t.Errorf("llm entries = %+v", got)
	}
	if cfg.Resolver.Threshold != 0.7 || cfg.Resolver.Scorer != "jaccard" {
		t.Errorf("resolver = %+v", cfg.Resolver)
	}
	if cfg.Store.EmbeddingDimensions != 1536 {
		t.Errorf("embedding_dimensions = %d", cfg.Store.EmbeddingDimensions)
	}
	if cfg.Characters.Dir != "characters" || cfg.Characters.ReloadSeconds != 30 {
		t.Errorf("characters = %+v", cfg.Characters)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_adr: \":8080\"\n"))
	if err == nil {
		t.Fatal("misspelled key was accepted")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Server.TLS = &config.TLSConfig{}
	cfg.Resolver.Threshold = 1.5
	cfg.Resolver.Scorer = "levenshtein"
	cfg.Resolver.Temperature = 3
	cfg.Store.EmbeddingDimensions = 768 // without an embeddings provider
	cfg.Speech.CacheSize = -1

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted a broken config")
	}
	for _, want := range []string{
		"server.log_level",
		"server.tls.cert_file",
		"server.tls.key_file",
		"resolver.threshold",
		"resolver.scorer",
		"resolver.temperature",
		"store.embedding_dimensions",
		"speech.cache_size",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error is missing %q: %v", want, err)
		}
	}
}

func TestValidateFallbacksNeedPrimary(t *testing.T) {
	cfg := &config.Config{}
	cfg.Providers.TTS.Fallbacks = []config.ProviderEntry{{Name: "elevenlabs"}}

	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "providers.tts.fallbacks") {
		t.Fatalf("err = %v, want fallbacks-without-primary error", err)
	}
}

func TestEntriesSkipUnnamed(t *testing.T) {
	chain := config.ProviderChain{
		Fallbacks: []config.ProviderEntry{{Name: "elevenlabs"}},
	}
	if got := chain.Entries(); len(got) != 1 || got[0].Name != "elevenlabs" {
		t.Errorf("entries = %+v", got)
	}
}

func TestDefaultRegistryCreatesBuiltins(t *testing.T) {
	r := config.DefaultRegistry()

	if _, err := r.CreateLLM(config.ProviderEntry{Name: "openai", APIKey: "sk-test", Model: "gpt-4o"}); err != nil {
		t.Errorf("CreateLLM(openai): %v", err)
	}
	if _, err := r.CreateTTS(config.ProviderEntry{Name: "elevenlabs", APIKey: "el-test"}); err != nil {
		t.Errorf("CreateTTS(elevenlabs): %v", err)
	}
	if _, err := r.CreateSTT(config.ProviderEntry{Name: "whisper-server", BaseURL: "http://localhost:9000"}); err != nil {
		t.Errorf("CreateSTT(whisper-server): %v", err)
	}
	if _, err := r.CreateEmbeddings(config.ProviderEntry{Name: "openai", APIKey: "sk-test"}); err != nil {
		t.Errorf("CreateEmbeddings(openai): %v", err)
	}

	if _, err := r.CreateLLM(config.ProviderEntry{Name: "markov-chain"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("unknown provider: err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestLoadExpandsAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("SD_TEST_OPENAI_KEY", "sk-from-env")

	const yml = `
providers:
  llm:
    name: openai
    api_key: ${SD_TEST_OPENAI_KEY}
    model: gpt-4o
    fallbacks:
      - name: anthropic
        api_key: ${SD_TEST_ANTHROPIC_KEY}
`
	cfg, err := config.LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want the environment value", cfg.Providers.LLM.APIKey)
	}
	// An unset variable expands to empty rather than failing the load.
	if got := cfg.Providers.LLM.Fallbacks[0].APIKey; got != "" {
		t.Errorf("fallback api_key = %q, want empty for an unset variable", got)
	}

	// Literal keys pass through untouched.
	cfg, err = config.LoadFromReader(strings.NewReader("providers:\n  llm:\n    name: openai\n    api_key: sk-literal\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "sk-literal" {
		t.Errorf("api_key = %q", cfg.Providers.LLM.APIKey)
	}
}
