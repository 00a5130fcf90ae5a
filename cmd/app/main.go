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
    "github.com/rs/zerolog/log"

    "github.com/torijune/Survey-AI-sub000/internal/ai"
    cfgpkg "github.com/torijune/Survey-AI-sub000/internal/config"
    "github.com/torijune/Survey-AI-sub000/internal/extract"
    "github.com/torijune/Survey-AI-sub000/internal/limiter"
    logpkg "github.com/torijune/Survey-AI-sub000/internal/logger"
    "github.com/torijune/Survey-AI-sub000/internal/metrics"
    "github.com/torijune/Survey-AI-sub000/internal/orchestrator"
    "github.com/torijune/Survey-AI-sub000/internal/publisher"
    "github.com/torijune/Survey-AI-sub000/internal/queue"
    "github.com/torijune/Survey-AI-sub000/internal/registry"
    "github.com/torijune/Survey-AI-sub000/internal/runner"
    "github.com/torijune/Survey-AI-sub000/internal/statuscheck"
    "github.com/torijune/Survey-AI-sub000/internal/store"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level:        cfg.Logging.Level,
        Pretty:       cfg.Logging.Pretty,
        File:         cfg.Logging.File,
        MaxSizeMB:    cfg.Logging.MaxSizeMB,
        MaxBackups:   cfg.Logging.MaxBackups,
        MaxAgeDays:   cfg.Logging.MaxAgeDays,
        Compress:     cfg.Logging.Compress,
        SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey:  cfg.Axiom.APIKey,
        AxiomOrgID:   cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush:   cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    metrics.Init()

    // Job store
    jobs, err := store.NewRedisJobs(cfg.Queue.RedisURL)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init redis job store")
    }
    defer jobs.Close()

    // Queue
    q, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to connect to redis")
    }
    defer q.Close()

    // Rate limiting / circuit breaker
    lim, err := limiter.New(limiter.Options{
        RedisURL:    cfg.Queue.RedisURL,
        MaxInflight: cfg.Worker.MaxInflightPerModel,
        BaseBackoff: cfg.Worker.BreakerBaseBackoff,
        MaxBackoff:  cfg.Worker.BreakerMaxBackoff,
    })
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init limiter")
    }
    defer lim.CloseClient()

    // Providers
    openai := ai.NewOpenAIClient()
    anthropic := ai.NewAnthropicClient()
    llm := ai.NewFailover(cfg.Providers, cfg.Pipeline.LLMTimeout, lim, openai, anthropic)

    pub := publisher.New(jobs)
    reg := registry.New()
    extractor := extract.NewService(openai)

    orch := orchestrator.New(orchestrator.Dependencies{
        Publisher: pub,
        Store:     jobs,
        Registry:  reg,
        Queue:     q,
        Extractor: extractor,
        LLM:       llm,
        Cfg:       cfg,
    })

    mux := http.NewServeMux()
    orch.RegisterRoutes(mux)
    orch.RegisterWS(mux)
    mux.Handle("/metrics", metrics.Handler())

    checker := statuscheck.New(statuscheck.Options{
        Redis:        jobs,
        S3Bucket:     os.Getenv("AWS_S3_BUCKET"),
        OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
        AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
    })
    mux.Handle("/health/deps", checker.Handler())

    // Runner pool (optional, on by default)
    runRunner := os.Getenv("RUN_RUNNER")
    if runRunner == "" || runRunner == "1" || runRunner == "true" {
        rn := runner.New(runner.Config{
            Concurrency:  cfg.Worker.Concurrency,
            PollInterval: cfg.Queue.PollInterval,
        }, q, orch)
        rn.Start()
        defer func() {
            ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
            defer cancel()
            _ = rn.Stop(ctx)
        }()
    }

    // Periodic temp cleanup for downloaded artifacts
    go func() {
        ticker := time.NewTicker(time.Hour)
        defer ticker.Stop()
        for range ticker.C {
            extract.CleanupTemps(24 * time.Hour)
        }
    }()

    srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}

    go func() {
        log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    _ = srv.Shutdown(ctx)
    fmt.Println("shutdown complete")
}
