package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all the configuration for the application
type Config struct {
	BotToken     string `yaml:"bot_token"`
	BaseURL      string `yaml:"base_url"`
	DatabasePath string `yaml:"database_path"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	LogLevel     string `yaml:"log_level"`
	ServiceName  string `yaml:"service_name"`
}

// Load reads the optional YAML file at path (CONFIG_FILE when path is empty)
// and then applies environment variables on top of it.
func Load(path string) (*Config, error) {
	cfg := &Config{
		BaseURL:      "http://localhost:8000/",
		DatabasePath: "./data/mathpractice.db",
		LogLevel:     "info",
		ServiceName:  "mathpracticebot",
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	override(&cfg.BotToken, "BOT_TOKEN")
	override(&cfg.BaseURL, "APP_BASE_URL")
	override(&cfg.DatabasePath, "DB_PATH")
	override(&cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	override(&cfg.LogLevel, "LOG_LEVEL")
	override(&cfg.ServiceName, "APP_NAME")

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("base url %q must be an absolute URL", cfg.BaseURL)
	}

	return cfg, nil
}

func override(field *string, env string) {
	if v := os.Getenv(env); v != "" {
		*field = v
	}
}

// RequireBotToken fails when no telegram token is configured
func (c *Config) RequireBotToken() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN environment variable is required")
	}
	return nil
}

// Level maps LogLevel onto a slog level, defaulting to info
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
