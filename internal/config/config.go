// Package config handles configuration loading for reviewq. It supports
// XDG config paths, a project-level override file, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for reviewq.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig holds the PostgreSQL connection settings. An empty URL
// switches the server to its in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// QueueConfig holds queue view defaults.
type QueueConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// AnalysisConfig holds pattern-analysis defaults and the client-side
// polling bounds.
type AnalysisConfig struct {
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	PollTimeout         time.Duration `mapstructure:"poll_timeout"`
	LookbackDays        int           `mapstructure:"lookback_days"`
	MinPatternSize      int           `mapstructure:"min_pattern_size"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
}

// Load reads configuration from defaults, config files, and REVIEWQ_*
// environment variables, in increasing precedence.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.url", "")
	v.SetDefault("queue.page_size", 20)
	v.SetDefault("analysis.poll_interval", 2*time.Second)
	v.SetDefault("analysis.poll_timeout", 15*time.Minute)
	v.SetDefault("analysis.lookback_days", 30)
	v.SetDefault("analysis.min_pattern_size", 3)
	v.SetDefault("analysis.similarity_threshold", 0.6)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "reviewq"))
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Project-level override next to the working directory.
	project := viper.New()
	project.SetConfigFile(".reviewq.yaml")
	if err := project.ReadInConfig(); err == nil {
		if err := v.MergeConfigMap(project.AllSettings()); err != nil {
			return nil, fmt.Errorf("merge project config: %w", err)
		}
	}

	v.SetEnvPrefix("REVIEWQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
