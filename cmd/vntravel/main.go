package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vntravel/internal/cache"
	"github.com/kailas-cloud/vntravel/internal/config"
	"github.com/kailas-cloud/vntravel/internal/db"
	"github.com/kailas-cloud/vntravel/internal/db/falkordb"
	"github.com/kailas-cloud/vntravel/internal/db/pinecone"
	"github.com/kailas-cloud/vntravel/internal/db/qdrant"
	"github.com/kailas-cloud/vntravel/internal/db/valkey"
	"github.com/kailas-cloud/vntravel/internal/domain"
	logpkg "github.com/kailas-cloud/vntravel/internal/logger"
	"github.com/kailas-cloud/vntravel/internal/metrics"
	graphrepo "github.com/kailas-cloud/vntravel/internal/repository/graph"
	vectorrepo "github.com/kailas-cloud/vntravel/internal/repository/vector"
	"github.com/kailas-cloud/vntravel/internal/shell"
	chiTransport "github.com/kailas-cloud/vntravel/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/vntravel/internal/transport/openai"
	answeruc "github.com/kailas-cloud/vntravel/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/vntravel/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/vntravel/internal/usecase/health"
	"github.com/kailas-cloud/vntravel/internal/usecase/location"
	"github.com/kailas-cloud/vntravel/internal/usecase/retrieval"
	"github.com/kailas-cloud/vntravel/internal/version"
)

const usage = `Usage: vntravel [flags] [chat|serve|version]

Commands:
  chat     interactive travel assistant (default)
  serve    HTTP API server
  version  print build information

Flags:
`

func main() {
	configPath := flag.String("config", "", "config file (default: config/<ENV>.yaml)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd := "chat"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}
	if cmd == "version" {
		fmt.Println(version.String())
		return
	}
	if cmd != "chat" && cmd != "serve" {
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration based on ENV
	env := config.GetEnv()
	var (
		cfg config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env,
		logpkg.WithLevel(cfg.Logging.Level),
		logpkg.WithOutput(cfg.Logging.Output),
	)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting vntravel",
		zap.String("command", cmd),
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("vector_driver", cfg.Vector.Driver),
		zap.String("vector_index", cfg.Vector.Index),
		zap.Strings("graph_addrs", cfg.Graph.Addrs),
		zap.String("graph", cfg.Graph.Name),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer app.Close()

	if cfg.Pipeline.Prewarm.OnStart && len(cfg.Pipeline.Prewarm.Queries) > 0 {
		go prewarm(ctx, app.answers, cfg.Pipeline.Prewarm, logger)
	}

	switch cmd {
	case "serve":
		serve(ctx, cfg, app, logger)
	default:
		if err := shell.New(app.answers, os.Stdin, os.Stdout, logger).Run(ctx); err != nil {
			logger.Error("Shell stopped", zap.Error(err))
		}
	}
}

// app is the composition root: one cache layer, one pipeline.
type app struct {
	answers *answeruc.Service
	health  *healthuc.Service
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	// Register metrics explicitly; HTTP metrics register themselves.
	metrics.RegisterProviderMetrics()
	metrics.RegisterPipelineMetrics()

	index, err := openVectorIndex(cfg.Vector, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, index.Close)
	if w, ok := index.(db.ReadyWaiter); ok {
		if err := w.WaitForReady(ctx, time.Duration(cfg.Vector.ReadinessTimeout)*time.Second); err != nil {
			a.Close()
			return nil, fmt.Errorf("vector index not ready: %w", err)
		}
	}
	logger.Info("Connected to vector index", zap.String("driver", cfg.Vector.Driver))

	graphStore, err := falkordb.NewStore(falkordb.Config{
		Addrs:    cfg.Graph.Addrs,
		Username: cfg.Graph.Username,
		Password: cfg.Graph.Password,
		Graph:    cfg.Graph.Name,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create graph store: %w", err)
	}
	a.closers = append(a.closers, graphStore.Close)
	if err := graphStore.WaitForReady(ctx, time.Duration(cfg.Graph.ReadinessTimeout)*time.Second); err != nil {
		a.Close()
		return nil, fmt.Errorf("graph database not ready: %w", err)
	}
	logger.Info("Connected to graph database", zap.String("graph", graphStore.Graph()))

	layer := cache.NewLayer()

	// Provider -> instruction prefix -> cache + dimension check
	var provider domain.Embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	if cfg.Embedding.Instruction != "" {
		provider = domain.NewInstructionEmbedder(provider, cfg.Embedding.Instruction)
	}
	embedder, err := embeddinguc.NewAdapter(
		provider, layer.Embeddings, cfg.Embedding.Dimensions, metrics.EmbeddingCacheTotal, logger,
		embeddinguc.WithCallTimeout(config.Duration(cfg.Pipeline.Timeouts.EmbedMs)),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create embedding adapter: %w", err)
	}

	generator := openaiTransport.NewGenerator(&openaiTransport.Config{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		Provider:    cfg.Generation.Provider,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Logger:      logger,
	})

	vectors := retrieval.NewVectorRetriever(vectorrepo.New(index, vectorrepo.Config{
		Index:        cfg.Vector.Index,
		KeyPrefix:    cfg.Vector.KeyPrefix,
		ReturnFields: cfg.Vector.ReturnFields,
	}), logger)
	graph := retrieval.NewGraphRetriever(graphrepo.New(graphStore, graphrepo.Config{
		MaxRelated: cfg.Graph.MaxRelated,
		NodeTypes:  cfg.Graph.NodeTypes,
	}), logger)
	extractor := location.NewExtractor(gazetteer(cfg.Pipeline.Gazetteer), cfg.Pipeline.DefaultRegion)

	retry := cfg.Generation.Retry
	a.answers, err = answeruc.New(
		answeruc.Deps{
			Embedder:  embedder,
			Vector:    vectors,
			Locations: extractor,
			Graph:     graph,
			Generator: generator,
		},
		layer,
		answeruc.Config{
			TopK:     cfg.Pipeline.TopK,
			MaxNodes: cfg.Pipeline.MaxNodes,
			MaxItems: cfg.Pipeline.MaxItems,
			Timeouts: answeruc.Timeouts{
				Embed:    config.Duration(cfg.Pipeline.Timeouts.EmbedMs),
				Vector:   config.Duration(cfg.Pipeline.Timeouts.VectorMs),
				Graph:    config.Duration(cfg.Pipeline.Timeouts.GraphMs),
				Generate: config.Duration(cfg.Pipeline.Timeouts.GenerateMs),
			},
			Retry: answeruc.RetryPolicy{
				MaxAttempts:  retry.MaxAttempts,
				InitialDelay: config.Duration(retry.InitialDelayMs),
				MaxDelay:     config.Duration(retry.MaxDelayMs),
				Multiplier:   retry.Multiplier,
				Jitter:       retry.Jitter != nil && *retry.Jitter,
			},
			Info: answeruc.Info{
				VectorIndex: cfg.Vector.Index,
				Graph:       cfg.Graph.Name,
				Model:       generator.Model(),
			},
		},
		answeruc.Metrics{
			StageDuration: metrics.StageDuration,
			Degraded:      metrics.DegradedTotal,
			AnswerCache:   metrics.AnswerCacheTotal,
		},
		logger,
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create answer service: %w", err)
	}

	a.health = healthuc.New(index, graphStore, embedder)
	return a, nil
}

func openVectorIndex(cfg config.VectorConfig, logger *zap.Logger) (db.VectorIndex, error) {
	switch cfg.Driver {
	case config.DriverValkey, config.DriverRedis:
		s, err := valkey.NewStore(valkey.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		return s, nil
	case config.DriverQdrant:
		s, err := qdrant.NewStore(qdrant.Config{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			APIKey: cfg.Qdrant.APIKey,
			UseTLS: cfg.Qdrant.UseTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("create qdrant store: %w", err)
		}
		return s, nil
	case config.DriverPinecone:
		s, err := pinecone.NewStore(pinecone.Config{
			APIKey:        cfg.Pinecone.APIKey,
			Index:         cfg.Index,
			BaseURL:       cfg.Pinecone.Host,
			Namespace:     cfg.Pinecone.Namespace,
			ControllerURL: cfg.Pinecone.ControllerURL,
			Timeout:       time.Duration(cfg.Pinecone.TimeoutSec) * time.Second,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create pinecone store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector driver %q", cfg.Driver)
	}
}

func gazetteer(entries []config.GazetteerEntry) []location.Entry {
	if len(entries) == 0 {
		return location.DefaultGazetteer
	}
	out := make([]location.Entry, len(entries))
	for i, e := range entries {
		out[i] = location.Entry{Name: e.Name, Aliases: e.Aliases}
	}
	return out
}

func prewarm(ctx context.Context, answers *answeruc.Service, cfg config.PrewarmConfig, logger *zap.Logger) {
	report, err := answers.Prewarm(ctx, cfg.Queries, answeruc.PrewarmOptions{
		Concurrency: cfg.Concurrency,
		RatePerSec:  cfg.RatePerSec,
	})
	if err != nil {
		logger.Warn("Cache pre-warm interrupted", zap.Error(err))
		return
	}
	for _, f := range report.Failed {
		logger.Warn("Pre-warm query failed", zap.String("query", f.Query), zap.Error(f.Err))
	}
}

func serve(ctx context.Context, cfg config.Config, a *app, logger *zap.Logger) {
	server := chiTransport.NewServer(a.answers, a.health, answeruc.PrewarmOptions{
		Concurrency: cfg.Pipeline.Prewarm.Concurrency,
		RatePerSec:  cfg.Pipeline.Prewarm.RatePerSec,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
