package config

import (
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Router     RouterConfig     `yaml:"router"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Generation GenerationConfig `yaml:"generation"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + strconv.Itoa(d.Port) + "/" + d.Name + "?sslmode=disable"
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

// RouterConfig holds the routing thresholds and the secondary-classifier
// quota. The thresholds are part of the documented decision tree; changing
// them changes which requests pay for a clarification round-trip.
type RouterConfig struct {
	ClarityHigh        int                  `yaml:"clarity_high"`
	ClarityMedium      int                  `yaml:"clarity_medium"`
	LocalClarityCutoff int                  `yaml:"local_clarity_cutoff"`
	DailyQuotaLimit    int64                `yaml:"daily_quota_limit"`
	CircuitBreaker     CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	FailureThreshold      int           `yaml:"failure_threshold"`
	RecoveryProbeInterval time.Duration `yaml:"recovery_probe_interval"`
}

// ClassifierConfig configures the quota-limited secondary classifier.
// An empty APIKey means no secondary classifier; the chain then degrades
// to the local heuristic.
type ClassifierConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Temperature     float64       `yaml:"temperature"`
}

// GenerationConfig configures the answer-generation API.
type GenerationConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     180 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "conseil",
			User:            "conseil",
			MaxOpenConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:       0,
			PoolSize: 50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Router: RouterConfig{
			ClarityHigh:        7,
			ClarityMedium:      4,
			LocalClarityCutoff: 9,
			DailyQuotaLimit:    1500,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:      5,
				RecoveryProbeInterval: 15 * time.Second,
			},
		},
		Classifier: ClassifierConfig{
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Model:           "gemini-2.0-flash-exp",
			Timeout:         10 * time.Second,
			MaxOutputTokens: 500,
			Temperature:     0.1,
		},
		Generation: GenerationConfig{
			BaseURL: "https://api.perplexity.ai",
			Model:   "sonar-pro",
			Timeout: 120 * time.Second,
		},
	}
}
