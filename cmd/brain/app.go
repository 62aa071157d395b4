package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/magicfolder/brain/classify"
	"github.com/magicfolder/brain/config"
	"github.com/magicfolder/brain/escalate"
	"github.com/magicfolder/brain/extract"
	"github.com/magicfolder/brain/llm"
	"github.com/magicfolder/brain/pipeline"
	"github.com/magicfolder/brain/rag"
	"github.com/magicfolder/brain/search"
	"github.com/magicfolder/brain/server"
	"github.com/magicfolder/brain/watcher"
)

// embeddedPort is where the embedded NATS server listens so external
// clients have a known address to reach.
const embeddedPort = 4222

// App wires together all components for the serve command.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	embeddedServer *natsserver.Server
	natsConn       *nats.Conn

	// Core pipeline
	model *llm.Client
	pipe  *pipeline.Pipeline
	srv   *server.Server

	// Semantic index (only when rag is enabled)
	redisClient *redis.Client
	indexer     *rag.Indexer
	searcher    *search.Searcher

	// Optional extras
	metricsServer *http.Server
	watch         *watcher.Watcher
}

// NewApp builds the classification pipeline from config. Nothing external
// is touched until Start.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rules, err := cfg.Rules.Build()
	if err != nil {
		return nil, fmt.Errorf("build rules: %w", err)
	}

	ocrOpts := []extract.TesseractOption{
		extract.WithOCRPageLimit(cfg.Extract.PDFPages),
		extract.WithOCRLogger(logger),
	}
	if cfg.Extract.TesseractBin != "" {
		ocrOpts = append(ocrOpts, extract.WithTesseractBinary(cfg.Extract.TesseractBin))
	}
	if cfg.Extract.PdftoppmBin != "" {
		ocrOpts = append(ocrOpts, extract.WithPdftoppmBinary(cfg.Extract.PdftoppmBin))
	}
	ocr := extract.NewTesseract(ocrOpts...)

	extractor := extract.NewExtractor(rules, ocr,
		extract.WithMaxBytes(cfg.Extract.MaxBytes),
		extract.WithPDFPageLimit(cfg.Extract.PDFPages),
		extract.WithLogger(logger),
	)

	model := llm.NewClient(llm.Endpoint{
		Provider:       cfg.LLM.Provider,
		URL:            cfg.LLM.URL,
		Model:          cfg.LLM.Model,
		EmbedModel:     cfg.LLM.EmbedModel,
		EmbedDimension: cfg.LLM.EmbedDimension,
	},
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout}),
		llm.WithLogger(logger),
	)
	if !model.Available() {
		logger.Warn("LLM not available, uncertain files will stay Misc",
			slog.String("provider", cfg.LLM.Provider))
	}

	escalator := escalate.NewLLMClassifier(model,
		escalate.WithTemperature(cfg.LLM.Temperature),
		escalate.WithMaxTokens(cfg.LLM.MaxTokens),
		escalate.WithLLMLogger(logger),
	)

	pipe := pipeline.New(extractor, classify.NewClassifier(rules, logger), escalator, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		model:  model,
		pipe:   pipe,
	}, nil
}

// Start brings up NATS, the classification endpoint and the optional
// index, metrics and watch components.
func (a *App) Start(ctx context.Context) error {
	if err := a.startNATS(); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	a.srv = server.New(a.natsConn, a.cfg.Server.Subject, a.pipe, a.logger)
	if err := a.srv.Start(); err != nil {
		return err
	}

	if a.cfg.RAG.Enabled {
		if err := a.startRAG(ctx); err != nil {
			return fmt.Errorf("start rag: %w", err)
		}
	}

	if a.cfg.Server.MetricsAddr != "" {
		a.startMetrics()
	}

	if a.cfg.Watch.Dir != "" {
		if err := a.startWatcher(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
	}

	return nil
}

func (a *App) startNATS() error {
	if a.cfg.Server.NATSURL != "" && !a.cfg.Server.Embedded {
		a.logger.Info("Connecting to NATS", slog.String("url", a.cfg.Server.NATSURL))
		conn, err := nats.Connect(a.cfg.Server.NATSURL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
		return nil
	}

	a.logger.Info("Starting embedded NATS server")
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   embeddedPort,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := natsserver.NewServer(opts)
	if err != nil {
		return fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return fmt.Errorf("embedded NATS server failed to start")
	}
	a.embeddedServer = ns

	conn, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return fmt.Errorf("connect to embedded NATS: %w", err)
	}
	a.natsConn = conn

	a.logger.Info("Embedded NATS ready", slog.String("url", ns.ClientURL()))
	return nil
}

func (a *App) startRAG(ctx context.Context) error {
	a.redisClient = redis.NewClient(&redis.Options{Addr: a.cfg.RAG.RedisAddr})

	store := rag.NewRedisStore(a.redisClient, a.cfg.RAG.Index, a.logger)
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("redis at %s: %w", a.cfg.RAG.RedisAddr, err)
	}

	a.indexer = rag.NewIndexer(a.model, store,
		rag.WithMinContentLength(a.cfg.RAG.MinContentLength),
		rag.WithSummaryWords(a.cfg.RAG.SummaryWords),
		rag.WithIndexerLogger(a.logger),
	)
	a.searcher = search.New(a.model, store, a.cfg.Search.ResultDir,
		search.WithTopK(a.cfg.Search.TopK),
		search.WithThreshold(a.cfg.Search.Threshold),
		search.WithLogger(a.logger),
	)

	a.logger.Info("Semantic index ready",
		slog.String("redis", a.cfg.RAG.RedisAddr),
		slog.String("index", a.cfg.RAG.Index))
	return nil
}

func (a *App) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	a.metricsServer = &http.Server{Addr: a.cfg.Server.MetricsAddr, Handler: mux}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()
	a.logger.Info("Metrics listening", slog.String("addr", a.cfg.Server.MetricsAddr))
}

func (a *App) startWatcher(ctx context.Context) error {
	w, err := watcher.New(a.cfg.Watch.Dir,
		watcher.WithDebounce(a.cfg.Watch.Debounce),
		watcher.WithIgnore(a.cfg.Watch.Ignore),
		watcher.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	a.watch = w

	go a.processWatchBatches(ctx)
	return nil
}

// processWatchBatches classifies every debounced batch from the watcher
// and feeds extracted content into the index when it is enabled.
func (a *App) processWatchBatches(ctx context.Context) {
	for batch := range a.watch.Batches() {
		results := a.pipe.Process(ctx, batch)
		for _, r := range results {
			a.logger.Info("watched file classified",
				slog.String("path", r.Path),
				slog.String("category", r.Category.String()))

			if a.indexer == nil {
				continue
			}
			if err := a.indexer.Index(ctx, r.Path, r.Content, r.Category.String()); err != nil {
				a.logger.Warn("indexing failed",
					slog.String("path", r.Path),
					slog.String("error", err.Error()))
			}
		}
	}
}

// Shutdown stops components in reverse dependency order.
func (a *App) Shutdown(timeout time.Duration) {
	if a.watch != nil {
		if err := a.watch.Stop(); err != nil {
			a.logger.Warn("watcher stop", slog.String("error", err.Error()))
		}
	}

	if a.srv != nil {
		if err := a.srv.Stop(); err != nil {
			a.logger.Warn("server stop", slog.String("error", err.Error()))
		}
	}

	if a.natsConn != nil {
		a.natsConn.Drain()
		a.natsConn.Close()
	}

	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server stop", slog.String("error", err.Error()))
		}
	}

	if a.redisClient != nil {
		a.redisClient.Close()
	}

	a.logger.Info("Shutdown complete")
}
