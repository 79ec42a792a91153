package di

import (
	"context"
	"errors"
	"fmt"

	"research-agent/internal/application/port/input"
	"research-agent/internal/application/port/output"
	"research-agent/internal/infrastructure/browser/rod"
	"research-agent/internal/infrastructure/config"
	"research-agent/internal/infrastructure/llm/openrouter"
	"research-agent/internal/infrastructure/logger"
	"research-agent/internal/infrastructure/metrics"
	"research-agent/internal/infrastructure/scraper"
	"research-agent/internal/infrastructure/userinteraction"
	"research-agent/internal/infrastructure/vectorstore"
	"research-agent/internal/usecase/agents/compiler"
	"research-agent/internal/usecase/agents/extraction"
	"research-agent/internal/usecase/agents/navigation"
	"research-agent/internal/usecase/agents/planner"
	"research-agent/internal/usecase/capture"
	"research-agent/internal/usecase/evaluator"
	"research-agent/internal/usecase/executor"
	"research-agent/internal/usecase/orchestrator"
	"research-agent/internal/usecase/scheduler"
	"research-agent/internal/usecase/sensing"
	"research-agent/internal/usecase/structured"
	"research-agent/internal/usecase/stuck"

	"github.com/tmc/langchaingo/embeddings"
)

type Container struct {
	Config   *config.Config
	Browser  output.BrowserPort
	LLM      output.LLMPort
	Logger   output.LoggerPort
	Index    output.RetrievalIndex
	Progress output.ProgressPort
	Research input.ResearchExecutor

	store       *vectorstore.Store
	stopMetrics context.CancelFunc
	metricsErr  chan error
}

type Secrets struct {
	OpenRouterAPIKey string
	OpenRouterModel  string
}

// NewContainer builds every adapter and use case for one research goal.
// The goal only names the log file.
func NewContainer(ctx context.Context, cfg *config.Config, secrets Secrets, goal string) (_ *Container, err error) {
	c := &Container{Config: cfg}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	log, err := logger.NewLoggerAdapter(goal, logger.Config{Dir: cfg.Log.Dir, Level: cfg.Log.Level})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	c.Logger = log

	recorder := metrics.NewRecorder()
	if cfg.Metrics.Addr != "" {
		c.startMetrics(ctx, cfg.Metrics.Addr)
	}

	llm := openrouter.NewOpenRouterAdapter(openrouter.Config{
		APIKey:            secrets.OpenRouterAPIKey,
		Model:             secrets.OpenRouterModel,
		ProModel:          cfg.LLM.ProModel,
		EmbeddingModel:    cfg.LLM.EmbeddingModel,
		BaseURL:           cfg.LLM.BaseURL,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Logger:            log,
	})
	c.LLM = llm

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	store, err := vectorstore.Open(ctx, cfg.Index.Path, cfg.Index.Collection, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	c.store = store
	if n, err := store.Count(ctx); err != nil {
		log.Warn("Failed to count indexed chunks", "error", err)
	} else if n > 0 {
		log.Info("Index holds chunks from an earlier run", "chunks", n, "path", cfg.Index.Path)
	}
	index := vectorstore.NewIndex(store)
	c.Index = index

	browserCfg := rod.DefaultConfig()
	browserCfg.Headless = cfg.Browser.Headless
	browserCfg.SlowMotion = cfg.Browser.SlowMotion
	browserCfg.NoSandbox = cfg.Browser.NoSandbox
	browserCfg.SearchURL = cfg.Browser.SearchURL
	browser, err := rod.NewBrowserAdapter(ctx, browserCfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}
	c.Browser = browser

	progress := userinteraction.NewConsoleProgress()
	c.Progress = progress

	extractor := scraper.New(scraper.Config{
		MinTextLength: cfg.Capture.MinTextLength,
		HTTPTimeout:   cfg.Capture.HTTPTimeout,
		UserAgent:     cfg.Capture.UserAgent,
	}, log)

	caller := structured.NewCaller(llm, log, recorder, cfg.LLM.MaxAttempts, cfg.LLM.Temperature)

	execCfg := executor.DefaultConfig()
	execCfg.SearchURL = cfg.Browser.SearchURL
	execCfg.ScreenshotDir = cfg.Debug.ScreenshotDir

	review := evaluator.New(caller, index, log, recorder, evaluator.Config{
		K:             cfg.Review.K,
		MaxIterations: cfg.Review.MaxIterations,
		MaxDuration:   cfg.Review.MaxDuration,
		MaxActions:    cfg.Review.MaxActions,
	})

	c.Research = orchestrator.New(orchestrator.Deps{
		Browser:    browser,
		Scheduler:  scheduler.New(caller, log, cfg.Run.ModelScheduler),
		Navigator:  navigation.New(caller, log, progress, cfg.Browser.SearchURL, execCfg.NavTimeout),
		Sensor:     sensing.New(log, sensing.DefaultSettle),
		Planner:    planner.New(caller, log, progress),
		Executor:   executor.New(browser, log, recorder, execCfg),
		Capture:    capture.New(extractor, index, browser, log, recorder, cfg.Index.ChunkSize, cfg.Index.ChunkOverlap),
		Evaluator:  review,
		Extraction: extraction.New(caller, index, log, recorder, cfg.Review.SynthesisK),
		Compiler:   compiler.New(caller, log),
		Stuck:      stuck.New(stuck.DefaultWindow, stuck.DefaultThreshold),
		Logger:     log,
		Progress:   progress,
		Metrics:    recorder,
	}, orchestrator.Config{
		StartURL: cfg.Browser.StartURL,
		MaxSteps: cfg.Run.MaxSteps,
	})

	return c, nil
}

func (c *Container) startMetrics(ctx context.Context, addr string) {
	ctx, cancel := context.WithCancel(ctx)
	c.stopMetrics = cancel
	c.metricsErr = make(chan error, 1)
	go func() {
		err := metrics.Serve(ctx, addr, c.Logger)
		if err != nil {
			c.Logger.Warn("Metrics server stopped", "error", err)
		}
		c.metricsErr <- err
	}()
}

func (c *Container) Close() error {
	var errs []error
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index: %w", err))
		}
	}
	if c.stopMetrics != nil {
		c.stopMetrics()
		<-c.metricsErr
	}
	if c.Logger != nil {
		if err := c.Logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
