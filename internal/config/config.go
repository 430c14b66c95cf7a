package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/xxxsen/common/logger"
)

const envPrefix = "PAPERSEARCH"

type Config struct {
	Port        int              `json:"port"`
	Database    DatabaseConfig   `json:"database"`
	LogConfig   logger.LogConfig `json:"log_config"`
	AI          AIConfig         `json:"ai"`
	Search      SearchConfig     `json:"search"`
	FileStore   FileStoreConfig  `json:"file_store"`
	Admin       AdminConfig      `json:"admin"`
	Schedule    ScheduleConfig   `json:"schedule"`
	RateLimit   RateLimitConfig  `json:"rate_limit"`
	Tracing     TracingConfig    `json:"tracing"`
	CORSOrigins []string         `json:"cors_origins"`
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

type AIProviderConfig struct {
	Name string                 `json:"name"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type AIModelConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type AIConfig struct {
	APIKey         string             `json:"api_key"`
	Providers      []AIProviderConfig `json:"providers"`
	Expand         []AIModelConfig    `json:"expand"`
	Embed          []AIModelConfig    `json:"embed"`
	Timeout        int                `json:"timeout"`
	Dimension      int                `json:"dimension"`
	EmbedRPS       float64            `json:"embed_rps"`
	EmbedCacheSize int                `json:"embed_cache_size"`
	EmbedCacheTTL  int                `json:"embed_cache_ttl"`
}

type SearchConfig struct {
	VariantCount      int     `json:"variant_count"`
	WorkshopLimit     int     `json:"workshop_limit"`
	PaperLimit        int     `json:"paper_limit"`
	WorkshopThreshold float64 `json:"workshop_threshold"`
	PaperThreshold    float64 `json:"paper_threshold"`
	MaxResults        int     `json:"max_results"`
	Timeout           int     `json:"timeout"`
	Parallelism       int     `json:"parallelism"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AdminConfig struct {
	JWTSecret    string `json:"jwt_secret"`
	PasswordHash string `json:"password_hash"`
	TTLHours     int    `json:"ttl_hours"`
}

type ScheduleConfig struct {
	EnrichSpec       string `json:"enrich_spec"`
	EnrichBatch      int    `json:"enrich_batch"`
	CacheCleanupSpec string `json:"cache_cleanup_spec"`
	CacheMaxAgeDays  int    `json:"cache_max_age_days"`
}

type RateLimitConfig struct {
	RPS     float64 `json:"rps"`
	Burst   int     `json:"burst"`
	MaxKeys int     `json:"max_keys"`
}

type TracingConfig struct {
	Enabled     bool    `json:"enabled"`
	SampleRatio float64 `json:"sample_ratio"`
}

// secrets that are commonly injected through the environment instead of
// being written into the config file.
var envKeys = []string{
	"database.dsn",
	"database.password",
	"ai.api_key",
	"admin.jwt_secret",
	"admin.password_hash",
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if len(c.AI.Providers) == 0 {
		return fmt.Errorf("ai.providers is required")
	}
	if len(c.AI.Embed) == 0 {
		return fmt.Errorf("ai.embed is required")
	}
	model := c.AI.Embed[0].Model
	for _, item := range c.AI.Embed {
		if item.Model != model {
			return fmt.Errorf("ai.embed entries must share one model, got %s and %s", model, item.Model)
		}
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 10
	}
	if c.AI.Dimension <= 0 {
		c.AI.Dimension = 768
	}
	if c.AI.EmbedRPS <= 0 {
		c.AI.EmbedRPS = 1
	}
	if c.AI.EmbedCacheSize <= 0 {
		c.AI.EmbedCacheSize = 10000
	}
	if c.AI.EmbedCacheTTL <= 0 {
		c.AI.EmbedCacheTTL = 120
	}
	c.Search.applyDefaults()
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	switch c.FileStore.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("file_store.type must be local or s3")
	}
	if c.Admin.TTLHours <= 0 {
		c.Admin.TTLHours = 12
	}
	if c.Schedule.EnrichBatch <= 0 {
		c.Schedule.EnrichBatch = 100
	}
	if c.Schedule.CacheMaxAgeDays <= 0 {
		c.Schedule.CacheMaxAgeDays = 30
	}
	if c.RateLimit.MaxKeys <= 0 {
		c.RateLimit.MaxKeys = 10000
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
	return nil
}

func (s *SearchConfig) applyDefaults() {
	if s.VariantCount <= 0 {
		s.VariantCount = 9
	}
	if s.WorkshopLimit <= 0 {
		s.WorkshopLimit = 20
	}
	if s.PaperLimit <= 0 {
		s.PaperLimit = 50
	}
	if s.WorkshopThreshold <= 0 {
		s.WorkshopThreshold = 0.6
	}
	if s.PaperThreshold <= 0 {
		s.PaperThreshold = 0.5
	}
	if s.MaxResults <= 0 {
		s.MaxResults = 20
	}
	if s.Timeout <= 0 {
		s.Timeout = 15
	}
	if s.Parallelism <= 0 {
		s.Parallelism = 4
	}
}
