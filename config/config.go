// Package config loads service configuration from a JSON file with
// environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Model     ModelConfig     `json:"model"`
	Training  TrainingConfig  `json:"training"`
	Forecast  ForecastConfig  `json:"forecast"`
	Cache     CacheConfig     `json:"cache"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         string   `json:"port"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
	IdleTimeout  Duration `json:"idle_timeout"`
}

// ModelConfig describes the persisted model artifact and the variable it
// predicts.
type ModelConfig struct {
	ArtifactPath string `json:"artifact_path"`
	Variable     string `json:"variable"`
	Location     string `json:"location"`
}

// TrainingConfig controls synthetic-data training runs.
type TrainingConfig struct {
	Days            int     `json:"days"`
	HoldoutFraction float64 `json:"holdout_fraction"`
	Seed            int64   `json:"seed"`
}

// ForecastConfig contains forecast request defaults.
type ForecastConfig struct {
	DefaultDays int `json:"default_days"`
}

// CacheConfig controls the optional Redis prediction cache.
type CacheConfig struct {
	Enabled  bool     `json:"enabled"`
	Addr     string   `json:"addr"`
	Password string   `json:"password"`
	DB       int      `json:"db"`
	TTL      Duration `json:"ttl"`
}

// AuthConfig guards the model management endpoints. When enabled, requests
// must carry a bearer token signed with the shared secret.
type AuthConfig struct {
	Enabled bool   `json:"enabled"`
	Secret  string `json:"secret"`
}

// RateLimitConfig throttles the prediction endpoints.
type RateLimitConfig struct {
	Enabled           bool    `json:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "text" or "json"
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			ReadTimeout:  Duration{30 * time.Second},
			WriteTimeout: Duration{30 * time.Second},
			IdleTimeout:  Duration{120 * time.Second},
		},
		Model: ModelConfig{
			ArtifactPath: "./data/arima_model.json",
			Variable:     "precipitation_mm",
			Location:     "Papallacta, Ecuador",
		},
		Training: TrainingConfig{
			Days:            365 * 3,
			HoldoutFraction: 0.2,
			Seed:            42,
		},
		Forecast: ForecastConfig{
			DefaultDays: 7,
		},
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     Duration{5 * time.Minute},
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	return config, nil
}

// ApplyEnv overrides configuration from PFS_* environment variables.
func (c *Config) ApplyEnv() {
	if port := os.Getenv("PFS_PORT"); port != "" {
		c.Server.Port = port
	}
	if path := os.Getenv("PFS_MODEL_PATH"); path != "" {
		c.Model.ArtifactPath = path
	}
	if variable := os.Getenv("PFS_MODEL_VARIABLE"); variable != "" {
		c.Model.Variable = variable
	}
	if addr := os.Getenv("PFS_REDIS_ADDR"); addr != "" {
		c.Cache.Enabled = true
		c.Cache.Addr = addr
	}
	if secret := os.Getenv("PFS_AUTH_SECRET"); secret != "" {
		c.Auth.Enabled = true
		c.Auth.Secret = secret
	}
	if level := os.Getenv("PFS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if days := os.Getenv("PFS_TRAINING_DAYS"); days != "" {
		if val, err := strconv.Atoi(days); err == nil {
			c.Training.Days = val
		}
	}
	if seed := os.Getenv("PFS_TRAINING_SEED"); seed != "" {
		if val, err := strconv.ParseInt(seed, 10, 64); err == nil {
			c.Training.Seed = val
		}
	}
}

// Load reads configuration from filename when it exists, otherwise starts
// from defaults, then applies environment overrides and validates.
func Load(filename string) (*Config, error) {
	var config *Config
	var err error

	if filename != "" && fileExists(filename) {
		config, err = LoadFromFile(filename)
		if err != nil {
			return nil, err
		}
	} else {
		config = DefaultConfig()
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Model.ArtifactPath == "" {
		return fmt.Errorf("model artifact path cannot be empty")
	}
	if c.Model.Variable == "" {
		return fmt.Errorf("model variable cannot be empty")
	}
	if c.Training.Days <= 0 {
		return fmt.Errorf("training days must be positive")
	}
	if c.Training.HoldoutFraction < 0 || c.Training.HoldoutFraction >= 1 {
		return fmt.Errorf("training holdout fraction must be in [0, 1)")
	}
	if c.Forecast.DefaultDays <= 0 {
		return fmt.Errorf("forecast default days must be positive")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache address cannot be empty when cache is enabled")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("auth secret cannot be empty when auth is enabled")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit requests per second must be positive")
	}
	return nil
}

// SaveToFile writes the configuration as indented JSON.
func (c *Config) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filename, err)
	}
	return nil
}

func fileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}
