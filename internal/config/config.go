package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	logFormatJSON    = "json"
	logFormatConsole = "console"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Log      LogConfig      `yaml:"log"`
	CORS     CORSConfig     `yaml:"cors"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Host                string        `yaml:"host"`
	Port                int           `yaml:"port"`
	ReadTimeout         time.Duration `yaml:"read_timeout"`
	IdleTimeout         time.Duration `yaml:"idle_timeout"`
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period"`
	MaxBodyBytes        int64         `yaml:"max_body_bytes"`
}

// UpstreamConfig describes the Ollama server being proxied.
type UpstreamConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	ModelsTimeout time.Duration `yaml:"models_timeout"`
	HealthTimeout time.Duration `yaml:"health_timeout"`
	// StreamIdleTimeout bounds the gap between two reads of a generation
	// stream. Zero means Timeout.
	StreamIdleTimeout time.Duration `yaml:"stream_idle_timeout"`
	MaxIdleConns      int           `yaml:"max_idle_conns"`
}

// LogConfig controls the zap logger and optional file rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// CORSConfig controls cross-origin access to the API.
type CORSConfig struct {
	Enabled      bool     `yaml:"enabled"`
	AllowOrigins []string `yaml:"allow_origins"`
	// AllowHeaders lists preflight headers to accept. Empty accepts
	// whatever the browser asks for.
	AllowHeaders []string `yaml:"allow_headers"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8000,
			ReadTimeout:         30 * time.Second,
			IdleTimeout:         120 * time.Second,
			ShutdownGracePeriod: 10 * time.Second,
			MaxBodyBytes:        1 << 20,
		},
		Upstream: UpstreamConfig{
			BaseURL:       "http://localhost:11434",
			Timeout:       60 * time.Second,
			ModelsTimeout: 10 * time.Second,
			HealthTimeout: 5 * time.Second,
			MaxIdleConns:  50,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     logFormatJSON,
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		CORS: CORSConfig{
			Enabled:      true,
			AllowOrigins: []string{"*"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional dotenv file and the process environment, then validates it.
// Empty paths are skipped; a missing dotenv file is not an error.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %q: %w", envFile, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", absPath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %q: %w", absPath, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v, ok := lookupEnv("OLLAMA_BASE_URL"); ok {
		cfg.Upstream.BaseURL = v
	}
	if v, ok := lookupEnv("OLLAMA_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("OLLAMA_TIMEOUT: %w", err)
		}
		cfg.Upstream.Timeout = d
	}
	if v, ok := lookupEnv("PROXY_HOST"); ok {
		cfg.Server.Host = v
	}
	if v, ok := lookupEnv("PROXY_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PROXY_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := lookupEnv("LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}
	if v, ok := lookupEnv("LOG_FILE"); ok {
		cfg.Log.File = v
	}
	if v, ok := lookupEnv("METRICS_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = enabled
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}

	if err := validateBaseURL(c.Upstream.BaseURL); err != nil {
		return err
	}

	timeouts := map[string]time.Duration{
		"upstream.timeout":        c.Upstream.Timeout,
		"upstream.models_timeout": c.Upstream.ModelsTimeout,
		"upstream.health_timeout": c.Upstream.HealthTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Upstream.StreamIdleTimeout < 0 {
		return fmt.Errorf("upstream.stream_idle_timeout must not be negative, got %s", c.Upstream.StreamIdleTimeout)
	}

	switch c.Log.Format {
	case logFormatJSON, logFormatConsole:
	default:
		return fmt.Errorf("log.format must be one of %q or %q, got %q", logFormatJSON, logFormatConsole, c.Log.Format)
	}

	if c.CORS.Enabled && len(c.CORS.AllowOrigins) == 0 {
		return errors.New("cors.allow_origins must not be empty when cors is enabled")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}

	return nil
}

// Address returns the listen address for the HTTP server.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StreamIdle returns the effective gap allowed between stream reads.
func (c UpstreamConfig) StreamIdle() time.Duration {
	if c.StreamIdleTimeout > 0 {
		return c.StreamIdleTimeout
	}
	return c.Timeout
}

func validateBaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("upstream.base_url must be provided")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("upstream.base_url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream.base_url %q must include a host", raw)
	}
	return nil
}
