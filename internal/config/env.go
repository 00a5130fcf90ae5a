package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// ProviderModels defines the model pair for a provider.
type ProviderModels struct {
    Primary   string
    Secondary string
}

// ProvidersConfig defines engines and models per provider.
type ProvidersConfig struct {
    PrimaryEngine   string // "openai"|"anthropic"
    SecondaryEngine string // "anthropic"|"openai"
    OpenAI          ProviderModels
    Anthropic       ProviderModels
}

// PipelineConfig defines chunking and summarization behavior.
type PipelineConfig struct {
    MaxChunkLen int
    GroupSize   int
    LLMTimeout  time.Duration
    UploadDir   string
}

// WorkerConfig defines runner behavior and limits.
type WorkerConfig struct {
    Concurrency         int
    MaxInflightPerModel int
    BreakerBaseBackoff  time.Duration
    BreakerMaxBackoff   time.Duration
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
    RedisURL     string
    Stream       string
    Group        string
    PollInterval time.Duration
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
    Port string
}

// Config is the top-level configuration.
type Config struct {
    Logging   LoggingConfig
    Axiom     AxiomConfig
    Providers ProvidersConfig
    Pipeline  PipelineConfig
    Worker    WorkerConfig
    Queue     QueueConfig
    Server    ServerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/surveyai.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_surveyai",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    // Providers defaults
    cfg.Providers = ProvidersConfig{
        PrimaryEngine:   getEnv("PRIMARY_ENGINE", "openai"),
        SecondaryEngine: getEnv("SECONDARY_ENGINE", "anthropic"),
        OpenAI: ProviderModels{
            Primary:   getEnv("OPENAI_PRIMARY_MODEL", "gpt-4.1"),
            Secondary: getEnv("OPENAI_SECONDARY_MODEL", "gpt-4o"),
        },
        Anthropic: ProviderModels{
            Primary:   getEnv("ANTHROPIC_PRIMARY_MODEL", "claude-3-5-sonnet"),
            Secondary: getEnv("ANTHROPIC_SECONDARY_MODEL", "claude-3-opus"),
        },
    }

    // Pipeline defaults
    cfg.Pipeline = PipelineConfig{
        MaxChunkLen: parseInt(getEnv("MAX_CHUNK_LEN", "2000"), 2000),
        GroupSize:   parseInt(getEnv("CHUNK_GROUP_SIZE", "3"), 3),
        LLMTimeout:  parseDuration(getEnv("LLM_TIMEOUT", "60s"), 60*time.Second),
        UploadDir:   getEnv("UPLOAD_DIR", os.TempDir()),
    }

    // Worker defaults
    cfg.Worker = WorkerConfig{
        Concurrency:         parseInt(getEnv("WORKER_CONCURRENCY", "4"), 4),
        MaxInflightPerModel: parseInt(getEnv("MAX_INFLIGHT_PER_MODEL", "2"), 2),
        BreakerBaseBackoff:  parseDuration(getEnv("BREAKER_BASE_BACKOFF", "30s"), 30*time.Second),
        BreakerMaxBackoff:   parseDuration(getEnv("BREAKER_MAX_BACKOFF", "5m"), 5*time.Minute),
    }

    // Queue defaults
    cfg.Queue = QueueConfig{
        RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
        Stream:       getEnv("QUEUE_STREAM", "jobs:analysis"),
        Group:        getEnv("QUEUE_GROUP", "workers:analysis"),
        PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "2s"), 2*time.Second),
    }

    // Server defaults
    cfg.Server = ServerConfig{
        Port: getEnv("PORT", "8080"),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
