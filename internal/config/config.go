package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logger"
)

const (
	EnvDatabaseDSN = "COACHRAG_DATABASE_DSN"
	EnvGeminiKey   = "GEMINI_API_KEY"
	EnvJWTSecret   = "COACHRAG_JWT_SECRET"
	EnvPort        = "COACHRAG_PORT"
)

type Config struct {
	Port         int                 `json:"port"`
	JWTSecret    string              `json:"jwt_secret"`
	AllowOrigins []string            `json:"allow_origins"`
	Database     DatabaseConfig      `json:"database"`
	LogConfig    logger.LogConfig    `json:"log_config"`
	FileStore    FileStoreConfig     `json:"file_store"`
	AI           AIConfig            `json:"ai"`
	Chunking     ChunkingConfig      `json:"chunking"`
	Search       SearchConfig        `json:"search"`
	EmbedCache   EmbedCacheConfig    `json:"embed_cache"`
	Jobs         JobsConfig          `json:"jobs"`
	CoachGroups  map[string][]string `json:"coach_groups"`
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

func (c DatabaseConfig) Configured() bool {
	return c.DSN != "" || c.Host != ""
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type EmbedProviderConfig struct {
	Name  string      `json:"name"`
	Model string      `json:"model"`
	Data  interface{} `json:"data"`
}

type AIConfig struct {
	Providers         []EmbedProviderConfig `json:"providers"`
	Dimension         int                   `json:"dimension"`
	RequestsPerMinute int                   `json:"requests_per_minute"`
	MaxRetries        int                   `json:"max_retries"`
	RetryDelayMs      int                   `json:"retry_delay_ms"`
	Timeout           int                   `json:"timeout"`
}

type ChunkingConfig struct {
	MaxTokens int `json:"max_tokens"`
}

type SearchConfig struct {
	DefaultLimit     int     `json:"default_limit"`
	MaxLimit         int     `json:"max_limit"`
	DefaultThreshold float64 `json:"default_threshold"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	EnableDB      bool `json:"enable_db"`
	MaxAgeDays    int  `json:"max_age_days"`
}

type JobsConfig struct {
	ReconcileSpec      string `json:"reconcile_spec"`
	StaleAfterMinutes  int    `json:"stale_after_minutes"`
	CacheCleanupSpec   string `json:"cache_cleanup_spec"`
	SearchRateWindowMs int    `json:"search_rate_window_ms"`
}

// Load reads the JSON config at path. An empty path starts from defaults so
// the CLI can run from environment variables alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup(EnvDatabaseDSN); ok && strings.TrimSpace(v) != "" {
		c.Database.DSN = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvJWTSecret); ok && v != "" {
		c.JWTSecret = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be a number: %w", EnvPort, err)
		}
		c.Port = port
	}
	if v, ok := lookup(EnvGeminiKey); ok && strings.TrimSpace(v) != "" {
		key := strings.TrimSpace(v)
		found := false
		for i := range c.AI.Providers {
			if strings.EqualFold(c.AI.Providers[i].Name, "gemini") {
				c.AI.Providers[i].Data = mergeAPIKey(c.AI.Providers[i].Data, key)
				found = true
			}
		}
		if !found {
			c.AI.Providers = append([]EmbedProviderConfig{{
				Name: "gemini",
				Data: map[string]interface{}{"api_key": key},
			}}, c.AI.Providers...)
		}
	}
	return nil
}

func mergeAPIKey(data interface{}, key string) interface{} {
	m, ok := data.(map[string]interface{})
	if !ok || m == nil {
		m = map[string]interface{}{}
	}
	if existing, _ := m["api_key"].(string); strings.TrimSpace(existing) == "" {
		m["api_key"] = key
	}
	return m
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.LogConfig.File == "" {
		c.LogConfig.Console = true
	}
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	for i := range c.AI.Providers {
		if c.AI.Providers[i].Model == "" && strings.EqualFold(c.AI.Providers[i].Name, "gemini") {
			c.AI.Providers[i].Model = "gemini-embedding-001"
		}
	}
	if c.AI.Dimension == 0 {
		c.AI.Dimension = 768
	}
	if c.AI.RequestsPerMinute == 0 {
		c.AI.RequestsPerMinute = 1500
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 30
	}
	if c.Chunking.MaxTokens == 0 {
		c.Chunking.MaxTokens = 6000
	}
	if c.Search.DefaultLimit == 0 {
		c.Search.DefaultLimit = 5
	}
	if c.Search.MaxLimit == 0 {
		c.Search.MaxLimit = 50
	}
	if c.Search.DefaultThreshold == 0 {
		c.Search.DefaultThreshold = 0.7
	}
	if c.EmbedCache.LRUSize == 0 {
		c.EmbedCache.LRUSize = 2048
	}
	if c.EmbedCache.LRUTTLSeconds == 0 {
		c.EmbedCache.LRUTTLSeconds = 3600
	}
	if c.EmbedCache.MaxAgeDays == 0 {
		c.EmbedCache.MaxAgeDays = 30
	}
	if c.Jobs.ReconcileSpec == "" {
		c.Jobs.ReconcileSpec = "*/10 * * * *"
	}
	if c.Jobs.StaleAfterMinutes == 0 {
		c.Jobs.StaleAfterMinutes = 60
	}
	if c.Jobs.CacheCleanupSpec == "" {
		c.Jobs.CacheCleanupSpec = "30 3 * * *"
	}
	if c.Jobs.SearchRateWindowMs == 0 {
		c.Jobs.SearchRateWindowMs = 200
	}
}

func (c *Config) validate() error {
	if c.AI.Dimension < 0 {
		return fmt.Errorf("ai.dimension must be positive")
	}
	if c.AI.RequestsPerMinute < 0 {
		return fmt.Errorf("ai.requests_per_minute must not be negative")
	}
	if c.Chunking.MaxTokens < 0 {
		return fmt.Errorf("chunking.max_tokens must be positive")
	}
	if c.Search.DefaultThreshold < -1 || c.Search.DefaultThreshold > 1 {
		return fmt.Errorf("search.default_threshold must be within [-1,1]")
	}
	switch strings.ToLower(c.FileStore.Type) {
	case "local", "s3":
	default:
		return fmt.Errorf("file_store.type must be local or s3")
	}
	for _, p := range c.AI.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("ai.providers[].name is required")
		}
	}
	return nil
}

// RequireCredentials fails when the storage endpoint or the embedding key is
// missing. The CLI treats this as a fatal startup condition.
func (c *Config) RequireCredentials() error {
	if !c.Database.Configured() {
		return fmt.Errorf("database is not configured: set %s or database.dsn", EnvDatabaseDSN)
	}
	for _, p := range c.AI.Providers {
		m, _ := p.Data.(map[string]interface{})
		if key, _ := m["api_key"].(string); strings.TrimSpace(key) != "" {
			return nil
		}
	}
	return fmt.Errorf("embedding provider is not configured: set %s or ai.providers[].data.api_key", EnvGeminiKey)
}
