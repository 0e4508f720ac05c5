package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/reverie-ai/reverie/internal/api"
	"github.com/reverie-ai/reverie/internal/bus"
	"github.com/reverie-ai/reverie/internal/config"
	"github.com/reverie-ai/reverie/internal/embedding"
	"github.com/reverie-ai/reverie/internal/engine"
	"github.com/reverie-ai/reverie/internal/extractor"
	"github.com/reverie-ai/reverie/internal/memory"
	"github.com/reverie-ai/reverie/internal/provider"
	"github.com/reverie-ai/reverie/internal/session"
	"github.com/reverie-ai/reverie/internal/speech"
	pgstore "github.com/reverie-ai/reverie/internal/store"
	"github.com/reverie-ai/reverie/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Reverie...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/reverie.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// PostgreSQL: persona profiles, memory catalog, transcripts
	pg, err := pgstore.New(cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("postgres unavailable", zap.Error(err))
	}
	if err := pg.Migrate(context.Background(), "migrations"); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Embedding provider
	var embedder memory.Embedder
	switch cfg.Embedding.Provider {
	case "local":
		embedder = embedding.NewLocalProvider(embedding.Config{
			Endpoint:  cfg.Embedding.Endpoint,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
		})
	default:
		embedder = embedding.NewAPIProvider(embedding.Config{
			Endpoint:  cfg.Embedding.Endpoint,
			Model:     cfg.Embedding.Model,
			APIKey:    cfg.Embedding.APIKey,
			Dimension: cfg.Embedding.Dimension,
		})
	}

	// Qdrant vector index
	index, err := vectorstore.NewClient(vectorstore.Config{
		Host:      cfg.Database.Qdrant.Host,
		Port:      cfg.Database.Qdrant.Port,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		logger.Fatal("qdrant unavailable", zap.Error(err))
	}

	memStore := memory.NewStore(pg, index, embedder, logger)
	ext := extractor.New(memStore, cfg.Memory.DedupThreshold, logger)

	// Generation providers
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey, Model: pc.Model,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}

	// Speech synthesis (optional)
	var synth speech.Synthesizer
	if cfg.Speech.Enabled && cfg.Speech.Endpoint != "" {
		synth = speech.NewHTTPSynthesizer(speech.Config{
			Endpoint: cfg.Speech.Endpoint,
			APIKey:   cfg.Speech.APIKey,
			Timeout:  cfg.Speech.Timeout,
		})
	}

	eng := engine.NewEngine(memStore, router, synth, engine.Config{
		RetrievalThreshold: cfg.Memory.RetrievalThreshold,
		RetrievalLimit:     cfg.Memory.RetrievalLimit,
		GenerationTimeout:  time.Duration(cfg.Conversation.GenerationTimeoutSeconds) * time.Second,
	}, logger)

	// Session event bus (optional)
	var publisher session.Publisher
	eventBus, busErr := bus.New(cfg.Database.Redis.URL, logger)
	if busErr != nil {
		logger.Warn("Redis unavailable, running without event stream", zap.Error(busErr))
	} else {
		publisher = eventBus
	}

	sessions := session.NewManager(eng, pg, pg, publisher, session.Config{
		MaxRecentTurns: cfg.Conversation.MaxRecentTurns,
		MinConfidence:  cfg.Conversation.MinConfidence,
	}, logger)

	handler := api.NewHandler(sessions, memStore, ext, pg, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Reverie listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Reverie...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	if eventBus != nil {
		eventBus.Close()
	}
	index.Close()
	pg.Close()
}
