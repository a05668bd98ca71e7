// Command sacreddialogue is the main entry point for the SacredDialogue
// conversation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Blubaugh09/SacredDialogue/internal/character"
	"github.com/Blubaugh09/SacredDialogue/internal/config"
	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
	"github.com/Blubaugh09/SacredDialogue/internal/convstore/memstore"
	"github.com/Blubaugh09/SacredDialogue/internal/convstore/postgres"
	"github.com/Blubaugh09/SacredDialogue/internal/health"
	"github.com/Blubaugh09/SacredDialogue/internal/observe"
	"github.com/Blubaugh09/SacredDialogue/internal/resilience"
	"github.com/Blubaugh09/SacredDialogue/internal/resolver"
	"github.com/Blubaugh09/SacredDialogue/internal/server"
	"github.com/Blubaugh09/SacredDialogue/internal/session"
	"github.com/Blubaugh09/SacredDialogue/internal/share"
	"github.com/Blubaugh09/SacredDialogue/internal/similarity"
	"github.com/Blubaugh09/SacredDialogue/internal/speech"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sacreddialogue: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sacreddialogue: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("sacreddialogue starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry first so everything below records into the real providers.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// Characters, optionally hot-reloaded.
	charactersDir := cfg.Characters.Dir
	if charactersDir == "" {
		charactersDir = "characters"
	}
	currentRegistry, stopWatching, err := loadCharacters(charactersDir, cfg.Characters.ReloadSeconds)
	if err != nil {
		slog.Error("failed to load characters", "dir", charactersDir, "err", err)
		return 1
	}
	defer stopWatching()
	slog.Info("characters loaded", "dir", charactersDir, "count", currentRegistry().Len())

	// Conversation store.
	store, pgStore, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open conversation store", "err", err)
		return 1
	}
	if pgStore != nil {
		defer pgStore.Close()
	}

	// Providers.
	reg := config.DefaultRegistry()

	res, transcriber, err := buildPipeline(cfg, reg, store, pgStore)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// HTTP server.
	checkers := []health.Checker{
		health.Characters(func() int { return currentRegistry().Len() }),
	}
	if pgStore != nil {
		checkers = append(checkers, health.Database(pgStore))
	}

	srvOpts := server.Options{
		Characters: currentRegistry,
		Resolver:   res,
		Store:      store,
		Shares:     share.NewService(store),
		Sessions:   session.NewManager(store),
		Metrics:    metrics,
		Health:     health.New(checkers...),
	}
	if transcriber != nil {
		srvOpts.Transcriber = transcriber
	}
	srv := server.New(srvOpts)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echo.WrapMiddleware(observe.Middleware(metrics)))
	srv.RegisterRoutes(e)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.TLS != nil {
			err = e.StartTLS(listenAddr, cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = e.Start(listenAddr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server ready", "listen_addr", listenAddr, "tls", cfg.Server.TLS != nil)

	select {
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadCharacters loads the character directory, with a polling watcher when
// reloading is enabled. The returned function always yields the latest
// registry.
func loadCharacters(dir string, reloadSeconds int) (func() *character.Registry, func(), error) {
	if reloadSeconds <= 0 {
		reg, err := character.LoadDir(dir)
		if err != nil {
			return nil, nil, err
		}
		return func() *character.Registry { return reg }, func() {}, nil
	}

	w, err := character.NewWatcher(dir, nil,
		character.WithInterval(time.Duration(reloadSeconds)*time.Second))
	if err != nil {
		return nil, nil, err
	}
	return w.Current, w.Stop, nil
}

// buildStore opens the configured conversation store. The second return value
// is non-nil only for PostgreSQL, where it additionally serves as the
// semantic index and health check target.
func buildStore(ctx context.Context, cfg *config.Config) (convstore.Store, *postgres.Store, error) {
	if cfg.Store.PostgresDSN == "" {
		slog.Info("using in-memory conversation store")
		return memstore.New(), nil, nil
	}

	var opts []postgres.Option
	if cfg.Store.EmbeddingDimensions > 0 {
		opts = append(opts, postgres.WithSemanticIndex(cfg.Store.EmbeddingDimensions))
	}
	pg, err := postgres.NewStore(ctx, cfg.Store.PostgresDSN, opts...)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("postgres conversation store ready",
		"semantic_index", pg.SemanticIndexEnabled())
	return pg, pg, nil
}

// buildPipeline instantiates the configured providers, wraps the staged ones
// in failover chains, and assembles the resolver.
func buildPipeline(cfg *config.Config, reg *config.Registry, store convstore.Store, pgStore *postgres.Store) (*resolver.Resolver, *resilience.STT, error) {
	var opts []resolver.Option

	// LLM chain.
	if entries := cfg.Providers.LLM.Entries(); len(entries) > 0 {
		chain := resilience.NewLLM(resilience.BreakerConfig{Label: "llm"})
		for _, entry := range entries {
			p, err := reg.CreateLLM(entry)
			if err != nil {
				return nil, nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
			}
			chain.Add(entry.Name, p)
			slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
		}
		opts = append(opts, resolver.WithLLM(chain))
	}

	// TTS chain feeding the synthesizer.
	var synth *speech.Synthesizer
	if entries := cfg.Providers.TTS.Entries(); len(entries) > 0 {
		chain := resilience.NewTTS(resilience.BreakerConfig{Label: "tts"})
		for _, entry := range entries {
			p, err := reg.CreateTTS(entry)
			if err != nil {
				return nil, nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
			}
			chain.Add(entry.Name, p)
			slog.Info("provider created", "kind", "tts", "name", entry.Name, "model", entry.Model)
		}

		var speechOpts []speech.Option
		if cfg.Speech.TimeoutSeconds > 0 {
			speechOpts = append(speechOpts, speech.WithTimeout(time.Duration(cfg.Speech.TimeoutSeconds)*time.Second))
		}
		if cfg.Speech.CacheSize > 0 {
			speechOpts = append(speechOpts, speech.WithCacheSize(cfg.Speech.CacheSize))
		}
		synth = speech.New(chain, speechOpts...)
		opts = append(opts, resolver.WithSynthesizer(synth))
	}

	// STT chain.
	var transcriber *resilience.STT
	if entries := cfg.Providers.STT.Entries(); len(entries) > 0 {
		transcriber = resilience.NewSTT(resilience.BreakerConfig{Label: "stt"})
		for _, entry := range entries {
			p, err := reg.CreateSTT(entry)
			if err != nil {
				return nil, nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
			}
			transcriber.Add(entry.Name, p)
			slog.Info("provider created", "kind", "stt", "name", entry.Name, "model", entry.Model)
		}
	}

	// Embeddings power the semantic question index, which needs the
	// PostgreSQL store.
	if cfg.Providers.Embeddings.Name != "" && pgStore != nil && pgStore.SemanticIndexEnabled() {
		embedder, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, nil, fmt.Errorf("create embeddings provider %q: %w", cfg.Providers.Embeddings.Name, err)
		}
		opts = append(opts, resolver.WithSemanticIndex(pgStore, embedder))
		slog.Info("provider created", "kind", "embeddings", "name", cfg.Providers.Embeddings.Name)
	}

	// Resolver tuning.
	scorer, err := similarity.NewScorer(cfg.Resolver.Scorer)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, resolver.WithScorer(scorer))
	if cfg.Resolver.Threshold > 0 {
		opts = append(opts, resolver.WithThreshold(cfg.Resolver.Threshold))
	}
	if cfg.Resolver.RecentWindow > 0 {
		opts = append(opts, resolver.WithRecentWindow(cfg.Resolver.RecentWindow))
	}
	if cfg.Resolver.MaxTokens > 0 || cfg.Resolver.Temperature > 0 {
		maxTokens := cfg.Resolver.MaxTokens
		if maxTokens == 0 {
			maxTokens = resolver.DefaultMaxTokens
		}
		temperature := cfg.Resolver.Temperature
		if temperature == 0 {
			temperature = resolver.DefaultTemperature
		}
		opts = append(opts, resolver.WithCompletionLimits(maxTokens, temperature))
	}

	return resolver.New(store, opts...), transcriber, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
