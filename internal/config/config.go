package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/parser"
	"github.com/dgallion1/docchunk/internal/retry"
	"github.com/dgallion1/docchunk/internal/store"
)

// ErrInvalid marks a configuration that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Chat model used for metadata extraction
	ExtractProvider string `yaml:"extract_provider"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	OpenAIModel     string `yaml:"openai_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`

	// Embeddings; empty key and URL fall back to the OpenAI chat values
	EmbeddingAPIKey    string `yaml:"embedding_api_key"`
	EmbeddingBaseURL   string `yaml:"embedding_base_url"`
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingBatchSize int    `yaml:"embedding_batch_size"`
	EmbeddingCacheSize int    `yaml:"embedding_cache_size"`

	// Chunking
	MaxDynamicSize      int `yaml:"max_dynamic_size"`
	MinDynamicSize      int `yaml:"min_dynamic_size"`
	LongParagraphLength int `yaml:"long_paragraph_length"`

	// Enrichment and retries
	EnrichBatchSize int           `yaml:"enrich_batch_size"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`

	// Worker pool
	MaxConcurrentDocs int `yaml:"max_concurrent_docs"`
	WorkerCount       int `yaml:"worker_count"`
	MaxQueueSize      int `yaml:"max_queue_size"`

	// Output
	StoreBackend    string `yaml:"store_backend"`
	ChunksDir       string `yaml:"chunks_dir"`
	SQLitePath      string `yaml:"sqlite_path"`
	PathstoreURL    string `yaml:"pathstore_url"`
	PathstoreAPIKey string `yaml:"pathstore_api_key"`
	PathstoreRoot   string `yaml:"pathstore_root"`

	// Input
	InputDir             string `yaml:"input_dir"`
	MaxUploadBytes       int64  `yaml:"max_upload_bytes"`
	PDFFallbackPdftotext bool   `yaml:"pdf_fallback_pdftotext"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	LogLevel string `yaml:"log_level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port: "8090",

		ExtractProvider: "openai",
		OpenAIBaseURL:   "https://api.openai.com/v1",
		OpenAIModel:     "gpt-4o",
		AnthropicModel:  "claude-sonnet-4-5-20250929",

		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingBatchSize: 100,
		EmbeddingCacheSize: 4096,

		MaxDynamicSize:      2000,
		MinDynamicSize:      300,
		LongParagraphLength: 500,

		EnrichBatchSize: 10,
		MaxRetries:      3,
		RetryDelay:      time.Second,
		RetryMaxElapsed: 2 * time.Minute,

		MaxConcurrentDocs: 4,
		WorkerCount:       4,
		MaxQueueSize:      100,

		StoreBackend:  "json",
		ChunksDir:     "chunks",
		SQLitePath:    "docchunk.db",
		PathstoreURL:  "http://localhost:8080",
		PathstoreRoot: "docchunk",

		InputDir:             "output",
		MaxUploadBytes:       52428800, // 50MB
		PDFFallbackPdftotext: true,

		JobTTL: time.Hour,

		LogLevel: "info",
	}
}

// Load layers defaults, the YAML file at path (or $DOCCHUNK_CONFIG when path
// is empty) and environment variables, in that order.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("DOCCHUNK_CONFIG")
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()

	if cfg.EmbeddingAPIKey == "" {
		cfg.EmbeddingAPIKey = cfg.OpenAIAPIKey
	}
	if cfg.EmbeddingBaseURL == "" {
		cfg.EmbeddingBaseURL = cfg.OpenAIBaseURL
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.APIKey = envOr("DOCCHUNK_API_KEY", c.APIKey)

	c.ExtractProvider = strings.ToLower(envOr("EXTRACT_PROVIDER", c.ExtractProvider))
	c.OpenAIAPIKey = envOr("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = envOr("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIModel = envOr("OPENAI_MODEL", c.OpenAIModel)
	c.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.AnthropicModel = envOr("ANTHROPIC_MODEL", c.AnthropicModel)

	c.EmbeddingAPIKey = envOr("OPENAI_EMBEDDING_API_KEY", c.EmbeddingAPIKey)
	c.EmbeddingBaseURL = envOr("OPENAI_EMBEDDING_BASE_URL", c.EmbeddingBaseURL)
	c.EmbeddingModel = envOr("OPENAI_EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbeddingBatchSize = envInt("EMBEDDING_BATCH_SIZE", c.EmbeddingBatchSize)
	c.EmbeddingCacheSize = envInt("EMBEDDING_CACHE_SIZE", c.EmbeddingCacheSize)

	c.MaxDynamicSize = envInt("MAX_DYNAMIC_SIZE", c.MaxDynamicSize)
	c.MinDynamicSize = envInt("MIN_DYNAMIC_SIZE", c.MinDynamicSize)
	c.LongParagraphLength = envInt("LONG_PARAGRAPH_LENGTH", c.LongParagraphLength)

	c.EnrichBatchSize = envInt("ENRICH_BATCH_SIZE", c.EnrichBatchSize)
	c.MaxRetries = envInt("MAX_RETRIES", c.MaxRetries)
	c.RetryDelay = envDuration("RETRY_DELAY", c.RetryDelay)
	c.RetryMaxElapsed = envDuration("RETRY_MAX_ELAPSED", c.RetryMaxElapsed)

	c.MaxConcurrentDocs = envInt("MAX_CONCURRENT_DOCS", c.MaxConcurrentDocs)
	c.WorkerCount = envInt("WORKER_COUNT", c.WorkerCount)
	c.MaxQueueSize = envInt("MAX_QUEUE_SIZE", c.MaxQueueSize)

	c.StoreBackend = strings.ToLower(envOr("STORE_BACKEND", c.StoreBackend))
	c.ChunksDir = envOr("CHUNKS_DIR", c.ChunksDir)
	c.SQLitePath = envOr("SQLITE_PATH", c.SQLitePath)
	c.PathstoreURL = envOr("PATHSTORE_URL", c.PathstoreURL)
	c.PathstoreAPIKey = envOr("PATHSTORE_API_KEY", c.PathstoreAPIKey)
	c.PathstoreRoot = envOr("PATHSTORE_ROOT", c.PathstoreRoot)

	c.InputDir = envOr("INPUT_DIR", c.InputDir)
	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", c.PDFFallbackPdftotext)

	c.JobTTL = envDuration("JOB_TTL", c.JobTTL)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
}

// Validate checks everything a batch run needs.
func (c Config) Validate() error {
	if err := c.ChunkerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("%w: EMBEDDING_BATCH_SIZE must be positive", ErrInvalid)
	}
	if c.EnrichBatchSize <= 0 {
		return fmt.Errorf("%w: ENRICH_BATCH_SIZE must be positive", ErrInvalid)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: MAX_RETRIES must be positive", ErrInvalid)
	}
	if c.MaxConcurrentDocs <= 0 {
		return fmt.Errorf("%w: MAX_CONCURRENT_DOCS must be positive", ErrInvalid)
	}
	if c.EmbeddingAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY or OPENAI_EMBEDDING_API_KEY is required", ErrInvalid)
	}

	switch c.ExtractProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required", ErrInvalid)
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown EXTRACT_PROVIDER %q", ErrInvalid, c.ExtractProvider)
	}

	switch c.StoreBackend {
	case "json", "sqlite":
	case "pathstore":
		if c.PathstoreAPIKey == "" {
			return fmt.Errorf("%w: PATHSTORE_API_KEY is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown STORE_BACKEND %q", ErrInvalid, c.StoreBackend)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ValidateServer adds the checks only the HTTP service needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: DOCCHUNK_API_KEY is required", ErrInvalid)
	}
	if c.WorkerCount <= 0 || c.MaxQueueSize <= 0 {
		return fmt.Errorf("%w: WORKER_COUNT and MAX_QUEUE_SIZE must be positive", ErrInvalid)
	}
	return nil
}

func (c Config) ChunkerConfig() chunker.Config {
	return chunker.Config{
		MinSize:       c.MinDynamicSize,
		MaxSize:       c.MaxDynamicSize,
		LongParagraph: c.LongParagraphLength,
	}
}

// RetryPolicy is the policy applied to every external call.
func (c Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.MaxRetries
	p.Delay = c.RetryDelay
	p.MaxElapsed = c.RetryMaxElapsed
	return p
}

func (c Config) StoreOptions() store.Options {
	return store.Options{
		Backend:         c.StoreBackend,
		ChunksDir:       c.ChunksDir,
		SQLitePath:      c.SQLitePath,
		PathstoreURL:    c.PathstoreURL,
		PathstoreAPIKey: c.PathstoreAPIKey,
		PathstoreRoot:   c.PathstoreRoot,
	}
}

func (c Config) ParserOptions() parser.Options {
	return parser.Options{FallbackPdftotext: c.PDFFallbackPdftotext}
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown LOG_LEVEL %q", ErrInvalid, s)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
