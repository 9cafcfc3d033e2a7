package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"

	"github.com/xxxsen/docqa/internal/chunker"
)

const (
	DefaultDimension         = 768
	DefaultEmbedBatchSize    = 100
	DefaultEmbedBatchDelayMs = 100
	DefaultInsertBatchSize   = 100
	DefaultMaxUploadMB       = 20
	DefaultTopK              = 3
	DefaultAITimeoutSeconds  = 60
	DefaultEmbedCacheLRUSize = 1024
	DefaultEmbedCacheTTLMin  = 60
	DefaultCacheMaxAgeDays   = 30
	DefaultCacheCleanupCron  = "0 3 * * *"
	DefaultJWTTTLHours       = 72
)

type Config struct {
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	JWTTTLHours   int              `json:"jwt_ttl_hours"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	FileStore     FileStoreConfig  `json:"file_store"`
	AI            AIConfig         `json:"ai"`
	Ingest        IngestConfig     `json:"ingest"`
	Query         QueryConfig      `json:"query"`
	EmbedCache    EmbedCacheConfig `json:"embed_cache"`
	CORSAllowlist []string         `json:"cors_allowlist"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// FileStoreConfig selects a registered store; Data is passed to its factory.
type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Embed     []AIProviderConfig `json:"embed"`
	Generate  AIProviderConfig   `json:"generate"`
	Dimension int                `json:"dimension"`
	Timeout   int                `json:"timeout"`
}

type IngestConfig struct {
	EmbedBatchSize    int            `json:"embed_batch_size"`
	EmbedBatchDelayMs int            `json:"embed_batch_delay_ms"`
	InsertBatchSize   int            `json:"insert_batch_size"`
	Chunk             chunker.Config `json:"chunk"`
	MaxUploadMB       int            `json:"max_upload_mb"`
}

type QueryConfig struct {
	TopK             int    `json:"top_k"`
	SystemRole       string `json:"system_role"`
	RateLimitSeconds int    `json:"rate_limit_seconds"`
}

type EmbedCacheConfig struct {
	LRUSize       int    `json:"lru_size"`
	LRUTTLMinutes int    `json:"lru_ttl_minutes"`
	DBEnabled     bool   `json:"db_enabled"`
	MaxAgeDays    int    `json:"max_age_days"`
	CleanupCron   string `json:"cleanup_cron"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if len(c.AI.Embed) == 0 {
		return fmt.Errorf("ai.embed requires at least one provider")
	}
	for i, item := range c.AI.Embed {
		if strings.TrimSpace(item.Provider) == "" || strings.TrimSpace(item.Model) == "" {
			return fmt.Errorf("ai.embed[%d] provider and model are required", i)
		}
	}
	if strings.TrimSpace(c.AI.Generate.Provider) == "" || strings.TrimSpace(c.AI.Generate.Model) == "" {
		return fmt.Errorf("ai.generate provider and model are required")
	}
	if c.Ingest.Chunk.WindowSize > 0 && c.Ingest.Chunk.WindowOverlap >= c.Ingest.Chunk.WindowSize {
		return fmt.Errorf("ingest.chunk.window_overlap must be smaller than window_size")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.JWTTTLHours <= 0 {
		c.JWTTTLHours = DefaultJWTTTLHours
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	if c.AI.Dimension <= 0 {
		c.AI.Dimension = DefaultDimension
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = DefaultAITimeoutSeconds
	}
	if c.Ingest.EmbedBatchSize <= 0 {
		c.Ingest.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if c.Ingest.EmbedBatchDelayMs < 0 {
		c.Ingest.EmbedBatchDelayMs = 0
	} else if c.Ingest.EmbedBatchDelayMs == 0 {
		c.Ingest.EmbedBatchDelayMs = DefaultEmbedBatchDelayMs
	}
	if c.Ingest.InsertBatchSize <= 0 {
		c.Ingest.InsertBatchSize = DefaultInsertBatchSize
	}
	if c.Ingest.MaxUploadMB <= 0 {
		c.Ingest.MaxUploadMB = DefaultMaxUploadMB
	}
	defaults := chunker.DefaultConfig()
	if c.Ingest.Chunk.MaxTokens <= 0 {
		c.Ingest.Chunk.MaxTokens = defaults.MaxTokens
	}
	if c.Ingest.Chunk.WindowSize <= 0 {
		c.Ingest.Chunk.WindowSize = defaults.WindowSize
	}
	if c.Ingest.Chunk.WindowOverlap <= 0 {
		c.Ingest.Chunk.WindowOverlap = defaults.WindowOverlap
		if c.Ingest.Chunk.WindowOverlap >= c.Ingest.Chunk.WindowSize {
			c.Ingest.Chunk.WindowOverlap = 0
		}
	}
	if c.Query.TopK <= 0 {
		c.Query.TopK = DefaultTopK
	}
	if c.EmbedCache.LRUSize == 0 {
		c.EmbedCache.LRUSize = DefaultEmbedCacheLRUSize
	}
	if c.EmbedCache.LRUTTLMinutes == 0 {
		c.EmbedCache.LRUTTLMinutes = DefaultEmbedCacheTTLMin
	}
	if c.EmbedCache.MaxAgeDays <= 0 {
		c.EmbedCache.MaxAgeDays = DefaultCacheMaxAgeDays
	}
	if c.EmbedCache.CleanupCron == "" {
		c.EmbedCache.CleanupCron = DefaultCacheCleanupCron
	}
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}
