package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	OpenAIKey          string        `yaml:"openai_key"`
	GeminiKey          string        `yaml:"gemini_key"`
	GeminiURL          string        `yaml:"gemini_url"`
	DefaultModel       string        `yaml:"default_model"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	HistoryMessages    int           `yaml:"history_messages"`
	HistoryTokenBudget int           `yaml:"history_token_budget"`
	EntryContextLimit  int           `yaml:"entry_context_limit"`
	ConcurrentLimit    int           `yaml:"concurrent_limit"` // max concurrent AI calls
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"` // mailto: contact for VAPID
}

type QueueConfig struct {
	URL          string `yaml:"url"`          // task queue service endpoint
	Token        string `yaml:"token"`        // bearer token for enqueue
	CallbackURL  string `yaml:"callback_url"` // where the queue calls back
	SigningKey   string `yaml:"signing_key"`  // HMAC key for callback JWTs
	Verification string `yaml:"verification"` // enforced | disabled
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type PipelineConfig struct {
	ClaimInterval       time.Duration `yaml:"claim_interval"`
	NotifyDelay         time.Duration `yaml:"notify_delay"`
	EventInterval       time.Duration `yaml:"event_interval"`
	EventWindow         time.Duration `yaml:"event_window"`
	ProcessingTimeout   time.Duration `yaml:"processing_timeout"`
	MaxAttempts         int           `yaml:"max_attempts"`
	BufferFlushInterval time.Duration `yaml:"buffer_flush_interval"`
	Workers             int           `yaml:"workers"`
	SubmitRateLimit     int           `yaml:"submit_rate_limit"`
	SubmitRateWindow    time.Duration `yaml:"submit_rate_window"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Push     PushConfig     `yaml:"push"`
	Queue    QueueConfig    `yaml:"queue"`
	Auth     AuthConfig     `yaml:"auth"`
	Pipeline PipelineConfig `yaml:"pipeline"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads and validates the YAML config at path.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.RequestTimeout <= 0 {
		cfg.AI.RequestTimeout = 60 * time.Second
	}
	if cfg.AI.HistoryMessages <= 0 {
		cfg.AI.HistoryMessages = 30
	}
	if cfg.AI.HistoryTokenBudget <= 0 {
		cfg.AI.HistoryTokenBudget = 6000
	}
	if cfg.AI.EntryContextLimit <= 0 {
		cfg.AI.EntryContextLimit = 5
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.Queue.Verification == "" {
		cfg.Queue.Verification = "enforced"
	}
	if cfg.Pipeline.ClaimInterval <= 0 {
		cfg.Pipeline.ClaimInterval = 30 * time.Second
	}
	if cfg.Pipeline.NotifyDelay <= 0 {
		cfg.Pipeline.NotifyDelay = 30 * time.Second
	}
	if cfg.Pipeline.EventInterval <= 0 {
		cfg.Pipeline.EventInterval = 5 * time.Minute
	}
	if cfg.Pipeline.EventWindow <= 0 {
		cfg.Pipeline.EventWindow = cfg.Pipeline.EventInterval
	}
	if cfg.Pipeline.ProcessingTimeout <= 0 {
		cfg.Pipeline.ProcessingTimeout = 10 * time.Minute
	}
	if cfg.Pipeline.MaxAttempts <= 0 {
		cfg.Pipeline.MaxAttempts = 3
	}
	if cfg.Pipeline.BufferFlushInterval <= 0 {
		cfg.Pipeline.BufferFlushInterval = 750 * time.Millisecond
	}
	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = 4
	}
	if cfg.Pipeline.SubmitRateLimit <= 0 {
		cfg.Pipeline.SubmitRateLimit = 20
	}
	if cfg.Pipeline.SubmitRateWindow <= 0 {
		cfg.Pipeline.SubmitRateWindow = time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if v := cfg.Queue.Verification; v != "enforced" && v != "disabled" {
		return nil, fmt.Errorf("queue.verification must be enforced or disabled, got %q", v)
	}
	if cfg.Queue.Verification == "enforced" && cfg.Queue.SigningKey == "" {
		return nil, errors.New("queue.signing_key is required when verification is enforced")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
