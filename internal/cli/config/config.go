package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the grt tool configuration
type Config struct {
	Structs   []string        `mapstructure:"structs"`
	Undo      UndoConfig      `mapstructure:"undo"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Clipboard ClipboardConfig `mapstructure:"clipboard"`
	Server    ServerConfig    `mapstructure:"server"`
}

// UndoConfig represents undo history configuration
type UndoConfig struct {
	Limit int `mapstructure:"limit"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StoreConfig represents document database configuration
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
}

// ClipboardConfig represents clipboard configuration
type ClipboardConfig struct {
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load loads the configuration from grt.yml or grt.yaml in the working
// directory. GRT_* environment variables override file values.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom loads the configuration from grt.yml or grt.yaml in dir
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("structs", []string{})
	v.SetDefault("undo.limit", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("store.driver", "sqlite3")
	v.SetDefault("store.dsn", "grt.db")
	v.SetDefault("store.table", "grt_documents")
	v.SetDefault("clipboard.backend", "memory")
	v.SetDefault("clipboard.redis_addr", "localhost:6379")
	v.SetDefault("clipboard.redis_password", "")
	v.SetDefault("clipboard.redis_db", 0)
	v.SetDefault("clipboard.prefix", "grt:clipboard:")
	v.SetDefault("clipboard.ttl", time.Hour)
	v.SetDefault("server.addr", "localhost:8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetConfigName("grt")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("GRT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// struct paths are relative to the config file
	for i, p := range config.Structs {
		if !filepath.IsAbs(p) {
			config.Structs[i] = filepath.Join(dir, p)
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// InProject checks if dir holds a grt configuration file
func InProject(dir string) bool {
	for _, name := range []string{"grt.yml", "grt.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Undo.Limit < 0 {
		return fmt.Errorf("undo.limit must not be negative, got: %d", cfg.Undo.Limit)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got: %s", cfg.Log.Level)
	}

	switch cfg.Store.Driver {
	case "sqlite3", "postgres", "pgx":
	default:
		return fmt.Errorf("store.driver must be one of sqlite3, postgres, pgx, got: %s", cfg.Store.Driver)
	}
	if cfg.Store.DSN == "" {
		return fmt.Errorf("store.dsn must be set")
	}

	switch cfg.Clipboard.Backend {
	case "memory":
	case "redis":
		if cfg.Clipboard.RedisAddr == "" {
			return fmt.Errorf("clipboard.redis_addr must be set for the redis backend")
		}
	default:
		return fmt.Errorf("clipboard.backend must be memory or redis, got: %s", cfg.Clipboard.Backend)
	}
	if cfg.Clipboard.TTL < 0 {
		return fmt.Errorf("clipboard.ttl must not be negative, got: %s", cfg.Clipboard.TTL)
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	return nil
}
