package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port             int              `json:"port"`
	DBPath           string           `json:"db_path"`
	MigrationsDir    string           `json:"migrations_dir"`
	JWTSecret        string           `json:"jwt_secret"`
	SessionTTLHours  int              `json:"session_ttl_hours"`
	SessionSweepSpec string           `json:"session_sweep_spec"`
	LogConfig        logger.LogConfig `json:"log_config"`
	Bootstrap        BootstrapConfig  `json:"bootstrap"`
	AI               AIConfig         `json:"ai"`
	Index            IndexConfig      `json:"index"`
	Search           SearchConfig     `json:"search"`
	EmbedCache       EmbedCacheConfig `json:"embed_cache"`
}

type BootstrapConfig struct {
	URL string   `json:"url"`
	S3  S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
}

type AIConfig struct {
	Provider      string      `json:"provider"`
	Model         string      `json:"model"`
	EmbedModel    string      `json:"embed_model"`
	EmbedDim      int         `json:"embed_dim"`
	Timeout       int         `json:"timeout"`
	MaxInputChars int         `json:"max_input_chars"`
	Data          interface{} `json:"data"`
}

type IndexConfig struct {
	APIKey      string `json:"api_key"`
	Host        string `json:"host"`
	ControlURL  string `json:"control_url"`
	SparseModel string `json:"sparse_model"`
	Dimension   int    `json:"dimension"`
	Timeout     int    `json:"timeout"`
}

type SearchConfig struct {
	DefaultTopK  int `json:"default_top_k"`
	MaxTopK      int `json:"max_top_k"`
	ContextTurns int `json:"context_turns"`
	// RateLimitMS throttles /search per client and session; 0 disables.
	RateLimitMS int `json:"rate_limit_ms"`
}

type EmbedCacheConfig struct {
	Size       int `json:"size"`
	TTLMinutes int `json:"ttl_minutes"`
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
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "migrations"
	}
	if cfg.SessionTTLHours == 0 {
		cfg.SessionTTLHours = 12
	}
	if cfg.SessionSweepSpec == "" {
		cfg.SessionSweepSpec = "*/30 * * * *"
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-2.5-flash-lite"
	}
	if cfg.AI.EmbedModel == "" {
		cfg.AI.EmbedModel = "gemini-embedding-001"
	}
	if cfg.AI.EmbedDim == 0 {
		cfg.AI.EmbedDim = 1536
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 30
	}
	if cfg.AI.Data == nil {
		return nil, fmt.Errorf("ai.data is required")
	}
	if cfg.Index.APIKey == "" {
		return nil, fmt.Errorf("index.api_key is required")
	}
	if cfg.Index.Host == "" {
		return nil, fmt.Errorf("index.host is required")
	}
	if cfg.Index.ControlURL == "" {
		cfg.Index.ControlURL = "https://api.pinecone.io"
	}
	if cfg.Index.SparseModel == "" {
		cfg.Index.SparseModel = "pinecone-sparse-english-v0"
	}
	if cfg.Index.Dimension == 0 {
		cfg.Index.Dimension = cfg.AI.EmbedDim
	}
	if cfg.Index.Dimension != cfg.AI.EmbedDim {
		return nil, fmt.Errorf("index.dimension (%d) must equal ai.embed_dim (%d)", cfg.Index.Dimension, cfg.AI.EmbedDim)
	}
	if cfg.Index.Timeout == 0 {
		cfg.Index.Timeout = 20
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 20
	}
	if cfg.Search.DefaultTopK > cfg.Search.MaxTopK {
		return nil, fmt.Errorf("search.default_top_k must not exceed search.max_top_k")
	}
	if cfg.Search.ContextTurns == 0 {
		cfg.Search.ContextTurns = 6
	}
	if cfg.EmbedCache.Size == 0 {
		cfg.EmbedCache.Size = 4096
	}
	if cfg.EmbedCache.TTLMinutes == 0 {
		cfg.EmbedCache.TTLMinutes = 120
	}
	return &cfg, nil
}
