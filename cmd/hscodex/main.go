package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tradekit/hscodex/internal/config"
	"github.com/tradekit/hscodex/internal/corpus"
	"github.com/tradekit/hscodex/internal/domain"
	"github.com/tradekit/hscodex/internal/engine"
	"github.com/tradekit/hscodex/internal/index"
	logpkg "github.com/tradekit/hscodex/internal/logger"
	"github.com/tradekit/hscodex/internal/metrics"
	"github.com/tradekit/hscodex/internal/snapshot"
	bedrockEmb "github.com/tradekit/hscodex/internal/transport/bedrock"
	chiTransport "github.com/tradekit/hscodex/internal/transport/chi"
	openaiEmb "github.com/tradekit/hscodex/internal/transport/openai"
	"github.com/tradekit/hscodex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting hscodex search service",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("corpus", cfg.Corpus.Path),
		zap.String("embedding_driver", cfg.Embedding.Driver),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	ctx := context.Background()

	var sink snapshot.Sink
	// One-time barrier: corpus load, index build and dimension validation
	// happen exactly once; a failure here is fatal.
	eng, err := engine.Initialize(func() (*engine.Engine, error) {
		var buildErr error
		sink, buildErr = buildSink(cfg)
		if buildErr != nil {
			return nil, buildErr
		}
		return buildEngine(ctx, cfg, sink, logger)
	})
	if err != nil {
		logger.Fatal("Failed to initialize search engine", zap.Error(err))
	}
	defer func() { _ = sink.Close() }()

	logger.Info("Search engine ready",
		zap.Int("records", eng.Size()),
		zap.Int("default_k", eng.DefaultK()),
	)

	server := chiTransport.NewServer(eng, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEngine loads the corpus, builds the index and assembles the engine.
func buildEngine(
	ctx context.Context, cfg config.Config, sink snapshot.Sink, logger *zap.Logger,
) (*engine.Engine, error) {
	c, err := corpus.Load(cfg.Corpus.Path)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	logger.Info("Corpus loaded",
		zap.Int("records", c.Len()),
		zap.Int("dimension", c.Dim),
	)

	idx, err := index.Build(c.Vectors)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	embedder, err := buildEmbedder(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return engine.New(engine.Params{
		Records:      c.Records,
		Index:        idx,
		Embedder:     embedder,
		Sink:         sink,
		Logger:       logger,
		DefaultK:     cfg.Search.DefaultK,
		EmbedTimeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		ExpectedDim:  cfg.Embedding.Dimensions,
	})
}

// buildEmbedder selects the embedding provider driver.
func buildEmbedder(ctx context.Context, cfg config.Config, logger *zap.Logger) (domain.Embedder, error) {
	switch cfg.Embedding.Driver {
	case "openai":
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.OpenAI.APIKey,
			BaseURL:    cfg.Embedding.OpenAI.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     logger,
		}), nil
	case "bedrock":
		emb, err := bedrockEmb.NewEmbedder(ctx, &bedrockEmb.Config{
			Region:    cfg.Embedding.Bedrock.Region,
			Model:     cfg.Embedding.Model,
			InputType: cfg.Embedding.InputType,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create bedrock embedder: %w", err)
		}
		return emb, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding driver %q", domain.ErrConfig, cfg.Embedding.Driver)
	}
}

// buildSink selects the snapshot sink driver.
func buildSink(cfg config.Config) (snapshot.Sink, error) {
	switch cfg.Snapshot.Driver {
	case "file":
		sink, err := snapshot.NewFileSink(cfg.Snapshot.Path, snapshot.Mode(cfg.Snapshot.Mode))
		if err != nil {
			return nil, fmt.Errorf("create file snapshot sink: %w", err)
		}
		return sink, nil
	case "redis":
		sink, err := snapshot.NewRedisSink(snapshot.RedisConfig{
			Addrs:    cfg.Snapshot.Redis.Addrs,
			Password: cfg.Snapshot.Redis.Password,
			Key:      cfg.Snapshot.Redis.Key,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis snapshot sink: %w", err)
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("%w: unknown snapshot driver %q", domain.ErrConfig, cfg.Snapshot.Driver)
	}
}
