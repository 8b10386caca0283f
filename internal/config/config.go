package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the gateway
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	SES      SESConfig      `yaml:"ses"`
	Tracking TrackingConfig `yaml:"tracking"`
	Sending  SendingConfig  `yaml:"sending"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the suppression cache connection settings
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TrackingConfig holds open/click tracking settings
type TrackingConfig struct {
	BaseURL             string `yaml:"base_url"`
	FallbackRedirectURL string `yaml:"fallback_redirect_url"`
}

// SendingConfig holds outbound send-path settings
type SendingConfig struct {
	AllowedDomains    []string `yaml:"allowed_domains"`
	RatePerHour       int      `yaml:"rate_per_hour"`
	UnsubscribeSecret string   `yaml:"unsubscribe_secret"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Tracking.FallbackRedirectURL == "" {
		cfg.Tracking.FallbackRedirectURL = "https://example.com"
	}
	if cfg.Sending.RatePerHour == 0 {
		cfg.Sending.RatePerHour = 1000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}
	if set := os.Getenv("AWS_SES_CONFIGURATION_SET"); set != "" {
		cfg.SES.ConfigurationSet = set
	}
	if baseURL := os.Getenv("TRACKING_BASE_URL"); baseURL != "" {
		cfg.Tracking.BaseURL = baseURL
	}
	if secret := os.Getenv("UNSUBSCRIBE_SECRET"); secret != "" {
		cfg.Sending.UnsubscribeSecret = secret
	}
	if domains := os.Getenv("ALLOWED_DOMAINS"); domains != "" {
		cfg.Sending.AllowedDomains = splitList(domains)
	}
	if rate := os.Getenv("SEND_RATE_PER_HOUR"); rate != "" {
		if n, err := strconv.Atoi(rate); err == nil {
			cfg.Sending.RatePerHour = n
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = n
		}
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
