// Package config provides application configuration loaded with Viper from
// an optional config.yaml plus FORKFUL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	AI       AIConfig       `mapstructure:"ai"`
	Images   ImagesConfig   `mapstructure:"images"`
	Log      LogConfig      `mapstructure:"log"`
	// Categories optionally replaces the built-in ingredient keyword table.
	// Empty means use the defaults.
	Categories []CategoryRule `mapstructure:"categories"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	CORSMaxAge     time.Duration `mapstructure:"cors_max_age"`
}

// DatabaseConfig contains the Postgres connection string.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// AIConfig configures the extraction/translation collaborators.
type AIConfig struct {
	GeminiAPIKey  string `mapstructure:"gemini_api_key"`
	GeminiModel   string `mapstructure:"gemini_model"`
	LocalLLMURL   string `mapstructure:"local_llm_url"`
	LocalLLMModel string `mapstructure:"local_llm_model"`
	// Provider selects which collaborator serves extraction and translation:
	// "gemini" or "local".
	Provider string `mapstructure:"provider"`
}

// ImagesConfig configures the recipe image cache.
type ImagesConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// CategoryRule is one entry of the classifier keyword table.
type CategoryRule struct {
	Category string `mapstructure:"category"`
	Pattern  string `mapstructure:"pattern"`
}

// Load reads config.yaml from the working directory (if present) and applies
// environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FORKFUL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8081"})
	v.SetDefault("server.cors_max_age", 12*time.Hour)
	v.SetDefault("database.url", "")
	v.SetDefault("ai.gemini_api_key", "")
	v.SetDefault("ai.gemini_model", "gemini-1.5-flash")
	v.SetDefault("ai.local_llm_url", "http://localhost:1234/v1/chat/completions")
	v.SetDefault("ai.local_llm_model", "gemma-3-12b-it:2")
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("images.dir", "images")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
